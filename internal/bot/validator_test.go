package bot

import (
	"strings"
	"testing"

	"statarb/internal/models"
)

func validatorPair(adfP, z, intercept float64) models.PairAnalysis {
	return models.PairAnalysis{
		StockY:    "HDFCBANK",
		StockX:    "ICICIBANK",
		Beta:      1.4,
		Intercept: intercept,
		ADFValue:  adfP,
		ZScore:    z,
	}
}

func perfectSizing() *models.PositionSizing {
	return &models.PositionSizing{
		LotsY: 1, LotsX: 1,
		SharesY: 550, SharesX: 770,
		TargetBeta: 1.4, ActualBeta: 1.4,
		BetaDeviation: 0,
	}
}

func TestAssessInterceptRisk(t *testing.T) {
	tests := []struct {
		name      string
		intercept float64
		priceY    float64
		wantRisk  string
	}{
		{"low", 50, 1500, models.RiskLow},
		{"moderate", 300, 1500, models.RiskModerate},
		{"elevated", 600, 1500, models.RiskElevated},
		{"high", 900, 1500, models.RiskHigh},
		{"very high", 1200, 1500, models.RiskVeryHigh},
		{"negative intercept uses magnitude", -300, 1500, models.RiskModerate},
		{"degenerate price", 50, 0, models.RiskVeryHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, risk := AssessInterceptRisk(tt.intercept, 1.4, tt.priceY, 1000)
			if risk != tt.wantRisk {
				t.Errorf("risk = %s, want %s", risk, tt.wantRisk)
			}
		})
	}
}

func TestValidatePerfectPair(t *testing.T) {
	v := NewRiskValidator(2.5, 3.0)

	// Стационарная пара, сигнал в рабочей зоне, малый intercept,
	// точная бета: полный балл
	a := v.Validate(validatorPair(0.01, -2.7, 50), perfectSizing(), 1500, 1000)

	if a.TotalScore != scoreMax {
		t.Errorf("score = %d, want %d (warnings: %v)", a.TotalScore, scoreMax, a.Warnings)
	}
	if !a.Tradable {
		t.Error("perfect pair must be tradable")
	}
	if !strings.HasPrefix(a.Recommendation, "EXCELLENT") {
		t.Errorf("recommendation = %s", a.Recommendation)
	}
	if len(a.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", a.Warnings)
	}
}

func TestValidateScoring(t *testing.T) {
	v := NewRiskValidator(2.5, 3.0)

	tests := []struct {
		name         string
		pair         models.PairAnalysis
		sizing       *models.PositionSizing
		wantScore    int
		wantTradable bool
		wantWarning  string
	}{
		{
			name:        "non stationary",
			pair:        validatorPair(0.20, -2.7, 50),
			sizing:      perfectSizing(),
			wantScore:   scoreMax - scoreADF,
			wantWarning: "NOT stationary",
			// 75 >= 60: торгуется с предупреждением
			wantTradable: true,
		},
		{
			name:         "no signal",
			pair:         validatorPair(0.01, -1.0, 50),
			sizing:       perfectSizing(),
			wantScore:    scoreMax - scoreZScore,
			wantWarning:  "No trading signal",
			wantTradable: true,
		},
		{
			name:         "extreme entry keeps half points",
			pair:         validatorPair(0.01, -3.5, 50),
			sizing:       perfectSizing(),
			wantScore:    scoreMax - scoreZScore + 10,
			wantWarning:  "extreme entry",
			wantTradable: true,
		},
		{
			name:         "no sizing kills beta neutrality",
			pair:         validatorPair(0.01, -2.7, 50),
			sizing:       nil,
			wantScore:    scoreMax - scorePosition,
			wantWarning:  "Cannot achieve beta neutrality",
			wantTradable: true,
		},
		{
			name:         "everything wrong",
			pair:         validatorPair(0.50, 0.1, 1200),
			sizing:       nil,
			wantScore:    0,
			wantWarning:  "High intercept risk",
			wantTradable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := v.Validate(tt.pair, tt.sizing, 1500, 1000)
			if a.TotalScore != tt.wantScore {
				t.Errorf("score = %d, want %d (warnings: %v)", a.TotalScore, tt.wantScore, a.Warnings)
			}
			if a.Tradable != tt.wantTradable {
				t.Errorf("tradable = %v, want %v", a.Tradable, tt.wantTradable)
			}
			if !hasWarning(a.Warnings, tt.wantWarning) {
				t.Errorf("warnings %v must contain %q", a.Warnings, tt.wantWarning)
			}
		})
	}
}

func TestValidateMarginalBetaDeviation(t *testing.T) {
	v := NewRiskValidator(2.5, 3.0)

	sizing := perfectSizing()
	sizing.BetaDeviation = 7.0

	a := v.Validate(validatorPair(0.01, -2.7, 50), sizing, 1500, 1000)
	if want := scoreMax - scorePosition + 15; a.TotalScore != want {
		t.Errorf("score = %d, want %d", a.TotalScore, want)
	}
	if !hasWarning(a.Warnings, "Beta deviation") {
		t.Errorf("warnings %v must mention beta deviation", a.Warnings)
	}
}

func TestValidateSpotWarning(t *testing.T) {
	v := NewRiskValidator(2.5, 3.0)

	sizing := perfectSizing()
	sizing.SpotNeeded = true
	sizing.SpotShares = 35

	a := v.Validate(validatorPair(0.01, -2.7, 50), sizing, 1500, 1000)
	if !hasWarning(a.Warnings, "Requires spot market: 35 shares") {
		t.Errorf("warnings %v must mention spot shares", a.Warnings)
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
