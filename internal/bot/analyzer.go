// Package bot содержит торговое ядро: калибровка пар, генерация
// сигналов, исполнение, учёт позиций и контроль рисков.
package bot

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"statarb/internal/broker"
	"statarb/internal/models"
	"statarb/internal/stats"
)

// PairAnalyzer калибрует пару: выбор направления регрессии, тесты
// стационарности, метрики возврата к среднему и фиксированная сигма.
type PairAnalyzer struct {
	log *zap.Logger
}

// NewPairAnalyzer создаёт анализатор
func NewPairAnalyzer(log *zap.Logger) *PairAnalyzer {
	return &PairAnalyzer{log: log}
}

// Analyze выполняет полную калибровку пары.
//
// Порядок: выбор направления -> регрессия -> ADF -> half-life/Hurst ->
// фиксированная сигма -> текущий z-score -> тир качества.
// Ошибки данных не фатальны: пара просто не торгуется.
func (a *PairAnalyzer) Analyze(stockA, stockB models.StockSeries) (*models.PairAnalysis, error) {
	dir, err := stats.SelectDirection(stockA.Symbol, stockA.Prices, stockB.Symbol, stockB.Prices)
	if err != nil {
		return nil, fmt.Errorf("pair %s-%s: direction: %w", stockA.Symbol, stockB.Symbol, err)
	}
	reg := dir.Regression

	adf, err := stats.ADF(reg.Residuals)
	if err != nil {
		return nil, fmt.Errorf("pair %s-%s: adf: %w", stockA.Symbol, stockB.Symbol, err)
	}

	halfLife := stats.HalfLife(reg.Residuals)
	hurst := stats.HurstExponent(reg.Residuals)

	// Фиксированная сигма: популяционное отклонение остатков на
	// момент калибровки. НЕ скользящее окно: сигма калибровки
	// исключает look-ahead при живом обновлении z-score.
	mean, sigma := residualMoments(reg.Residuals)

	currentResidual := reg.Residuals[len(reg.Residuals)-1]
	z := 0.0
	if sigma > 0 {
		z = currentResidual / sigma
	}

	quality, confidence := classifyQuality(adf.PValue, dir.ErrorRatio)

	analysis := &models.PairAnalysis{
		StockY:          dir.StockY,
		StockX:          dir.StockX,
		Sector:          stockA.Sector,
		Intercept:       reg.Intercept,
		Beta:            reg.Beta,
		ErrorRatio:      dir.ErrorRatio,
		ADFValue:        adf.PValue,
		IsStationary:    adf.IsStationary,
		ResidualMean:    mean,
		ResidualStd:     sigma,
		HalfLife:        halfLife,
		Hurst:           hurst,
		IsValidHalfLife: stats.IsValidHalfLife(halfLife),
		CurrentResidual: currentResidual,
		ZScore:          z,
		Quality:         quality,
		Confidence:      confidence,
	}

	a.log.Info("pair calibrated",
		zap.String("pair", analysis.PairKey()),
		zap.Float64("beta", reg.Beta),
		zap.Float64("adf_p", adf.PValue),
		zap.Float64("half_life", halfLife),
		zap.String("quality", quality))
	return analysis, nil
}

// Минимум дневных свечей для калибровки по истории брокера
const calibrationMinCandles = 30

// CalibrateFromBroker калибрует пару по дневным свечам брокера.
// Ноги запрашиваются за days календарных дней, ряды выравниваются
// по короткому. Смена направления регрессии относительно конфига
// отклоняется: lot_size и токены ног привязаны к Y/X.
func (a *PairAnalyzer) CalibrateFromBroker(ctx context.Context, b broker.Broker, cfg models.PairConfig, days int) (*models.PairAnalysis, error) {
	if days <= 0 {
		days = 90
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	candlesY, err := b.HistoricalData(ctx, cfg.TokenY, from, to, broker.IntervalDay)
	if err != nil {
		return nil, fmt.Errorf("pair %s: history %s: %w", cfg.PairKey(), cfg.LegY, err)
	}
	candlesX, err := b.HistoricalData(ctx, cfg.TokenX, from, to, broker.IntervalDay)
	if err != nil {
		return nil, fmt.Errorf("pair %s: history %s: %w", cfg.PairKey(), cfg.LegX, err)
	}

	n := len(candlesY)
	if len(candlesX) < n {
		n = len(candlesX)
	}
	if n < calibrationMinCandles {
		return nil, fmt.Errorf("pair %s: %d candles, need %d", cfg.PairKey(), n, calibrationMinCandles)
	}

	seriesY := models.StockSeries{Symbol: cfg.LegY, Sector: cfg.Sector, LotSize: cfg.LotSizeY}
	seriesX := models.StockSeries{Symbol: cfg.LegX, Sector: cfg.Sector, LotSize: cfg.LotSizeX}
	for _, c := range candlesY[len(candlesY)-n:] {
		seriesY.Prices = append(seriesY.Prices, c.Close)
		seriesY.Timestamps = append(seriesY.Timestamps, c.Timestamp)
	}
	for _, c := range candlesX[len(candlesX)-n:] {
		seriesX.Prices = append(seriesX.Prices, c.Close)
		seriesX.Timestamps = append(seriesX.Timestamps, c.Timestamp)
	}

	analysis, err := a.Analyze(seriesY, seriesX)
	if err != nil {
		return nil, err
	}
	if analysis.StockY != cfg.LegY {
		return nil, fmt.Errorf("pair %s: regression direction flipped to %s/%s, recalibrate config manually",
			cfg.PairKey(), analysis.StockY, analysis.StockX)
	}
	return analysis, nil
}

// UpdateZScore пересчитывает остаток и z-score по свежим ценам,
// переиспользуя beta/intercept/sigma существующей калибровки.
// Чистая функция: вход не мутируется, возвращается НОВОЕ значение.
func UpdateZScore(pair models.PairAnalysis, priceY, priceX float64) models.PairAnalysis {
	residual := priceY - (pair.Beta*priceX + pair.Intercept)

	z := 0.0
	if pair.ResidualStd > 0 {
		z = residual / pair.ResidualStd
	}

	out := pair
	out.CurrentResidual = residual
	out.ZScore = z
	return out
}

// residualMoments - среднее и популяционное отклонение остатков
func residualMoments(residuals []float64) (mean, std float64) {
	n := float64(len(residuals))
	if n == 0 {
		return 0, 0
	}
	for _, r := range residuals {
		mean += r
	}
	mean /= n

	var ss float64
	for _, r := range residuals {
		d := r - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}

// classifyQuality определяет тир качества пары.
// Границы включающие для adf_p и исключающие для error_ratio.
func classifyQuality(adfP, errorRatio float64) (string, float64) {
	switch {
	case adfP <= 0.01 && errorRatio < 0.15:
		return models.QualityExcellent, 95
	case adfP <= 0.05 && errorRatio < 0.25:
		return models.QualityGood, 85
	case adfP <= 0.10 && errorRatio < 0.40:
		return models.QualityFair, 70
	default:
		return models.QualityPoor, 40
	}
}
