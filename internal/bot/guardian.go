package bot

import (
	"fmt"
	"math"

	"statarb/internal/models"
	"statarb/internal/stats"
)

// CacheInterval - полный OLS+ADF пересчёт выполняется раз в N вызовов
// diagnose(). Ограничивает стоимость тяжёлой статистики при высокой
// частоте тиков; между пересчётами отдаётся кэш.
const CacheInterval = 5

// Минимум точек окна для осмысленной диагностики
const guardianMinPoints = 20

// Diagnosis - итог диагностики: светофор и причина
type Diagnosis struct {
	Status string
	Reason string
}

// Guardian следит за здоровьем коинтеграционной связи пары:
// дрейф беты и стационарность остатков на скользящем окне.
//
// НЕ потокобезопасен: владелец - горутина-воркер пары.
type Guardian struct {
	lookback int
	historyY []float64
	historyX []float64

	initialBeta float64
	redCounter  int

	diagnosisCount int
	cached         *Diagnosis
	lastBeta       float64
	lastPValue     float64
}

// NewGuardian создаёт стража с окном по умолчанию 60 точек
func NewGuardian(lookback int) *Guardian {
	if lookback <= 0 {
		lookback = 60
	}
	return &Guardian{lookback: lookback}
}

// Calibrate фиксирует базовую бету и сбрасывает счётчики
func (g *Guardian) Calibrate(beta float64) {
	g.initialBeta = beta
	g.redCounter = 0
	g.cached = nil
	g.diagnosisCount = 0
}

// UpdateData добавляет точку цен, отбрасывая мусор (NaN/Inf/ноль).
// Окно ограничено lookback, старые точки вытесняются.
func (g *Guardian) UpdateData(priceY, priceX float64) {
	if !isUsablePrice(priceY) || !isUsablePrice(priceX) {
		return
	}
	g.historyY = append(g.historyY, priceY)
	g.historyX = append(g.historyX, priceX)
	if len(g.historyY) > g.lookback {
		g.historyY = g.historyY[1:]
		g.historyX = g.historyX[1:]
	}
}

func isUsablePrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p != 0
}

// Diagnose возвращает (статус, причину) здоровья пары.
// Полный пересчёт только на каждом CacheInterval-м вызове,
// между ними отдаётся кэшированный результат.
func (g *Guardian) Diagnose() Diagnosis {
	g.diagnosisCount++

	if len(g.historyY) < guardianMinPoints {
		return Diagnosis{models.HealthYellow, "Initializing"}
	}

	if g.diagnosisCount%CacheInterval != 0 && g.cached != nil {
		return *g.cached
	}

	result := g.runFullDiagnosis()
	g.cached = &result
	return result
}

// runFullDiagnosis - тяжёлая часть: OLS по окну + ADF остатков
func (g *Guardian) runFullDiagnosis() Diagnosis {
	reg, err := stats.Fit(g.historyY, g.historyX)
	if err != nil {
		// Падение математики не должно убивать систему
		return Diagnosis{models.HealthYellow, "Math Computation Skip"}
	}
	g.lastBeta = reg.Beta

	denom := g.initialBeta
	if denom == 0 {
		denom = 0.001
	}
	drift := math.Abs((reg.Beta - g.initialBeta) / denom)

	var pValue float64
	if reg.ResidualStd < 1e-6 {
		pValue = 0.0 // идеальная стационарность
	} else {
		adf, err := stats.ADF(reg.Residuals)
		if err != nil {
			return Diagnosis{models.HealthYellow, "Math Computation Skip"}
		}
		pValue = adf.PValue
	}
	g.lastPValue = pValue

	if drift > 0.50 {
		g.redCounter++
		return Diagnosis{models.HealthRed, fmt.Sprintf("Beta Drift (%.0f%%)", drift*100)}
	}
	if pValue > 0.30 {
		g.redCounter++
		return Diagnosis{models.HealthRed, fmt.Sprintf("Broken Link (P=%.2f)", pValue)}
	}

	g.redCounter = 0

	if drift > 0.25 || pValue > 0.15 {
		return Diagnosis{models.HealthYellow, "Weak Signal"}
	}
	return Diagnosis{models.HealthGreen, "Healthy"}
}

// NeedsRecalibration - true после более чем 5 подряд RED диагнозов.
// Позиции при этом не закрываются: решение за политикой выше.
func (g *Guardian) NeedsRecalibration() bool {
	return g.redCounter > 5
}

// RefitCurrent пересчитывает регрессию по текущему окну, делает её
// бету новой базой и сбрасывает счётчики с кэшем. Регрессия целиком
// отдаётся наверх: трекер живёт на тех же бете/интерсепте/сигме,
// что и страж.
func (g *Guardian) RefitCurrent() (*stats.Regression, error) {
	if len(g.historyY) < guardianMinPoints {
		return nil, fmt.Errorf("guardian: window too short (%d points)", len(g.historyY))
	}
	reg, err := stats.Fit(g.historyY, g.historyX)
	if err != nil {
		return nil, err
	}
	g.initialBeta = reg.Beta
	g.redCounter = 0
	g.cached = nil
	return reg, nil
}

// ForceRecalibrateToCurrent - как RefitCurrent, но возвращает только
// бету; окно короче минимума оставляет старую базу.
func (g *Guardian) ForceRecalibrateToCurrent() float64 {
	reg, err := g.RefitCurrent()
	if err != nil {
		return g.initialBeta
	}
	return reg.Beta
}

// DetectRegimeChange - независимая классификация режима по ADF
// на хвосте окна. Подтверждающий сигнал, не замена диагностике.
func (g *Guardian) DetectRegimeChange(windowSize int) string {
	if windowSize <= 0 || windowSize > len(g.historyY) {
		windowSize = len(g.historyY)
	}
	if windowSize < guardianMinPoints {
		return models.RegimeInitializing
	}

	y := g.historyY[len(g.historyY)-windowSize:]
	x := g.historyX[len(g.historyX)-windowSize:]

	reg, err := stats.Fit(y, x)
	if err != nil {
		return models.RegimeInitializing
	}
	if reg.ResidualStd < 1e-6 {
		return models.RegimeStable
	}
	adf, err := stats.ADF(reg.Residuals)
	if err != nil {
		return models.RegimeInitializing
	}

	switch {
	case adf.PValue <= 0.10:
		return models.RegimeStable
	case adf.PValue <= 0.30:
		return models.RegimeWeakening
	default:
		return models.RegimeBroken
	}
}

// InvalidateCache заставляет следующий Diagnose() пересчитать всё
func (g *Guardian) InvalidateCache() {
	g.cached = nil
}

// Stats - диагностические счётчики для наблюдаемости
func (g *Guardian) Stats() map[string]interface{} {
	status := ""
	if g.cached != nil {
		status = g.cached.Status
	}
	return map[string]interface{}{
		"diagnosis_count":   g.diagnosisCount,
		"cache_interval":    CacheInterval,
		"red_light_counter": g.redCounter,
		"last_beta":         g.lastBeta,
		"last_pvalue":       g.lastPValue,
		"cached_status":     status,
	}
}

// WindowLen возвращает текущий размер окна
func (g *Guardian) WindowLen() int {
	return len(g.historyY)
}
