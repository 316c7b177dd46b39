package models

// Классы риска свободного члена (intercept).
// Чем больше intercept объясняет цену Y вместо beta*X,
// тем меньше модель реально описывает связь между бумагами.
const (
	RiskLow      = "LOW"       // intercept < 10% цены Y
	RiskModerate = "MODERATE"  // < 25%
	RiskElevated = "ELEVATED"  // < 50%
	RiskHigh     = "HIGH"      // < 70%
	RiskVeryHigh = "VERY_HIGH" // >= 70%
)

// RiskAssessment - результат 100-балльной оценки пригодности пары.
//
// Компоненты: ADF 25 + z-score 20 + intercept 30 + sizing 25 = 100.
// score >= 80 - EXCELLENT, >= 60 - GOOD (торгуемые);
// >= 40 - MARGINAL, иначе POOR (не торгуемые).
type RiskAssessment struct {
	InterceptPercent float64 `json:"intercept_percent"` // |intercept/priceY| * 100
	ExplainedPercent float64 `json:"explained_percent"` // |beta*priceX/priceY| * 100
	InterceptRisk    string  `json:"intercept_risk"`

	ADFScore       int `json:"adf_score"`
	ZScoreScore    int `json:"z_score_score"`
	InterceptScore int `json:"intercept_score"`
	PositionScore  int `json:"position_score"`
	TotalScore     int `json:"total_score"`
	MaxScore       int `json:"max_score"`

	Tradable       bool     `json:"tradable"`
	Recommendation string   `json:"recommendation"`
	Warnings       []string `json:"warnings"`
}

// PositionSizing - результат подбора бета-нейтральных лотов
type PositionSizing struct {
	LotsY   int `json:"lots_y"`
	LotsX   int `json:"lots_x"`
	SharesY int `json:"shares_y"`
	SharesX int `json:"shares_x"`

	// Бета-нейтральность
	TargetBeta    float64 `json:"target_beta"`
	ActualBeta    float64 `json:"actual_beta"`
	BetaDeviation float64 `json:"beta_deviation"` // % отклонения от цели

	// Капитал
	NotionalY    float64 `json:"notional_y"`
	NotionalX    float64 `json:"notional_x"`
	TotalCapital float64 `json:"total_capital"`

	// Корректировка спотом, если гранулярность лотов не даёт
	// уложиться в допустимое отклонение беты
	SpotNeeded bool `json:"spot_needed"`
	SpotShares int  `json:"spot_shares"`
}

// IsValid сообщает, достигнута ли бета-нейтральность (отклонение <= 5%)
func (s PositionSizing) IsValid() bool {
	dev := s.BetaDeviation
	if dev < 0 {
		dev = -dev
	}
	return dev <= 5.0
}
