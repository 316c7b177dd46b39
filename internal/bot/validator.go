package bot

import (
	"fmt"
	"math"

	"statarb/internal/models"
)

// Баллы 100-балльной оценки пригодности пары
const (
	scoreADF       = 25
	scoreZScore    = 20
	scoreIntercept = 30
	scorePosition  = 25
	scoreMax       = scoreADF + scoreZScore + scoreIntercept + scorePosition
)

// Пороги классов intercept-риска, % от цены Y
const (
	interceptLow      = 10.0
	interceptModerate = 25.0
	interceptElevated = 50.0
	interceptHigh     = 70.0
)

// RiskValidator оценивает пригодность пары к входу по четырём
// проверкам: стационарность, сила сигнала, intercept-риск и
// достижимость бета-нейтральности.
type RiskValidator struct {
	ADFThreshold   float64
	EntryThreshold float64
	StopThreshold  float64
}

// NewRiskValidator создаёт валидатор с порогами стратегии
func NewRiskValidator(entry, stop float64) *RiskValidator {
	return &RiskValidator{
		ADFThreshold:   0.05,
		EntryThreshold: entry,
		StopThreshold:  stop,
	}
}

// AssessInterceptRisk классифицирует риск свободного члена.
// Чем больший кусок цены Y объясняет intercept вместо beta*X,
// тем меньше модель описывает реальную связь бумаг.
func AssessInterceptRisk(intercept, beta, priceY, priceX float64) (interceptPct, explainedPct float64, risk string) {
	if priceY <= 0 {
		return 100.0, 0.0, models.RiskVeryHigh
	}

	explainedPct = math.Abs(beta*priceX) / priceY * 100
	interceptPct = math.Abs(intercept/priceY) * 100

	switch {
	case interceptPct < interceptLow:
		risk = models.RiskLow
	case interceptPct < interceptModerate:
		risk = models.RiskModerate
	case interceptPct < interceptElevated:
		risk = models.RiskElevated
	case interceptPct < interceptHigh:
		risk = models.RiskHigh
	default:
		risk = models.RiskVeryHigh
	}
	return interceptPct, explainedPct, risk
}

// interceptScore переводит класс intercept-риска в баллы
func interceptScore(risk string) int {
	switch risk {
	case models.RiskLow:
		return scoreIntercept
	case models.RiskModerate:
		return 25
	case models.RiskElevated:
		return 15
	default:
		return 0
	}
}

// Validate собирает 100-балльную оценку пары.
// Каждая проваленная проверка добавляет человекочитаемое предупреждение.
func (v *RiskValidator) Validate(pair models.PairAnalysis, sizing *models.PositionSizing, priceY, priceX float64) *models.RiskAssessment {
	warnings := []string{}
	total := 0

	// Проверка 1: стационарность остатков (25)
	adfScore := 0
	if pair.ADFValue <= v.ADFThreshold {
		adfScore = scoreADF
	} else {
		warnings = append(warnings, fmt.Sprintf("Residuals NOT stationary (ADF=%.4f)", pair.ADFValue))
	}
	total += adfScore

	// Проверка 2: сила сигнала (20)
	absZ := math.Abs(pair.ZScore)
	zScore := 0
	switch {
	case absZ >= v.EntryThreshold && absZ <= v.StopThreshold:
		zScore = scoreZScore
	case absZ > v.StopThreshold:
		zScore = 10
		warnings = append(warnings, fmt.Sprintf("Z-Score beyond %.1f - extreme entry", v.StopThreshold))
	default:
		warnings = append(warnings, fmt.Sprintf("No trading signal (Z=%.2f)", pair.ZScore))
	}
	total += zScore

	// Проверка 3: intercept-риск (30)
	interceptPct, explainedPct, risk := AssessInterceptRisk(pair.Intercept, pair.Beta, priceY, priceX)
	iScore := interceptScore(risk)
	if iScore == 0 {
		warnings = append(warnings, fmt.Sprintf("High intercept risk: %.1f%% unexplained", interceptPct))
	}
	total += iScore

	// Проверка 4: достижимость бета-нейтральности (25)
	betaDev := 100.0
	if sizing != nil {
		betaDev = math.Abs(sizing.BetaDeviation)
	}
	posScore := 0
	switch {
	case betaDev < betaDeviationAcceptable:
		posScore = scorePosition
	case betaDev < betaDeviationMarginal:
		posScore = 15
		warnings = append(warnings, fmt.Sprintf("Beta deviation: %.1f%%", betaDev))
	default:
		warnings = append(warnings, "Cannot achieve beta neutrality")
	}
	total += posScore

	if sizing != nil && sizing.SpotNeeded {
		warnings = append(warnings, fmt.Sprintf("Requires spot market: %d shares", sizing.SpotShares))
	}

	recommendation, tradable := scoreDecision(total)
	return &models.RiskAssessment{
		InterceptPercent: interceptPct,
		ExplainedPercent: explainedPct,
		InterceptRisk:    risk,
		ADFScore:         adfScore,
		ZScoreScore:      zScore,
		InterceptScore:   iScore,
		PositionScore:    posScore,
		TotalScore:       total,
		MaxScore:         scoreMax,
		Tradable:         tradable,
		Recommendation:   recommendation,
		Warnings:         warnings,
	}
}

// scoreDecision переводит сумму баллов в вердикт
func scoreDecision(total int) (string, bool) {
	switch {
	case total >= 80:
		return "EXCELLENT - Highly recommended", true
	case total >= 60:
		return "GOOD - Recommended", true
	case total >= 40:
		return "MARGINAL - Not recommended", false
	default:
		return "POOR - Avoid", false
	}
}
