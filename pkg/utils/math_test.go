package utils

import (
	"math"
	"testing"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		tick  float64
		want  float64
	}{
		{"round up", 101.234, 0.05, 101.25},
		{"round down", 101.22, 0.05, 101.20},
		{"exact multiple", 101.25, 0.05, 101.25},
		{"zero tick passthrough", 101.234, 0, 101.234},
		{"negative tick passthrough", 101.234, -1, 101.234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToTick(tt.price, tt.tick)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RoundToTick(%v, %v) = %v, want %v", tt.price, tt.tick, got, tt.want)
			}
		})
	}
}

func TestMarketableLimitPrice(t *testing.T) {
	tests := []struct {
		name   string
		ltp    float64
		isBuy  bool
		buffer float64
		want   float64
	}{
		{"buy above ltp", 100.0, true, 0.3, 100.30},
		{"sell below ltp", 100.0, false, 0.3, 99.70},
		{"buy rounds to tick", 523.45, true, 0.3, 525.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarketableLimitPrice(tt.ltp, tt.isBuy, tt.buffer, 0.05)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MarketableLimitPrice = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculatePNL(t *testing.T) {
	tests := []struct {
		name    string
		side    string
		entry   float64
		current float64
		qty     float64
		want    float64
	}{
		{"long profit", "LONG", 100, 110, 10, 100},
		{"long loss", "LONG", 100, 95, 10, -50},
		{"short profit", "SHORT", 50, 45, 20, 100},
		{"short loss", "SHORT", 50, 55, 20, -100},
		{"case insensitive", "long", 100, 110, 10, 100},
		{"zero qty", "LONG", 100, 110, 0, 0},
		{"unknown side", "FLAT", 100, 110, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePNL(tt.side, tt.entry, tt.current, tt.qty)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculatePNL = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("Clamp(5,0,10) = %v", got)
	}
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("Clamp(-1,0,10) = %v", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("Clamp(11,0,10) = %v", got)
	}
}

func TestPercentDeviation(t *testing.T) {
	if got := PercentDeviation(105, 100); math.Abs(got-5) > 1e-9 {
		t.Errorf("PercentDeviation(105,100) = %v, want 5", got)
	}
	if got := PercentDeviation(95, 100); math.Abs(got+5) > 1e-9 {
		t.Errorf("PercentDeviation(95,100) = %v, want -5", got)
	}
	if got := PercentDeviation(95, 0); got != 0 {
		t.Errorf("PercentDeviation(95,0) = %v, want 0", got)
	}
}
