package stats

import (
	"math"
	"testing"
)

// lcgNoise - детерминированный шум в [-1, 1] для воспроизводимых тестов
func lcgNoise(n int, seed uint64) []float64 {
	out := make([]float64, n)
	s := seed
	for i := range out {
		s = s*6364136223846793005 + 1442695040888963407
		out[i] = float64(s>>11)/float64(1<<53)*2 - 1
	}
	return out
}

func TestADFStationarySeries(t *testing.T) {
	// Сильный AR(1) с возвратом к среднему: тест обязан отвергнуть
	// единичный корень
	noise := lcgNoise(300, 42)
	y := make([]float64, 300)
	for i := 1; i < len(y); i++ {
		y[i] = 0.2*y[i-1] + noise[i]
	}

	res, err := ADF(y)
	if err != nil {
		t.Fatalf("ADF: %v", err)
	}
	if res.Statistic >= 0 {
		t.Errorf("statistic = %v, want negative", res.Statistic)
	}
	if res.PValue > 0.05 {
		t.Errorf("p = %v, want <= 0.05", res.PValue)
	}
	if !res.IsStationary {
		t.Error("expected stationary verdict")
	}
}

func TestADFSeparatesWalkFromStationary(t *testing.T) {
	noise := lcgNoise(300, 7)

	stationary := make([]float64, 300)
	walk := make([]float64, 300)
	for i := 1; i < 300; i++ {
		stationary[i] = 0.3*stationary[i-1] + noise[i]
		walk[i] = walk[i-1] + noise[i]
	}

	resS, err := ADF(stationary)
	if err != nil {
		t.Fatalf("ADF stationary: %v", err)
	}
	resW, err := ADF(walk)
	if err != nil {
		t.Fatalf("ADF walk: %v", err)
	}
	if resW.PValue <= resS.PValue {
		t.Errorf("walk p=%v should exceed stationary p=%v", resW.PValue, resS.PValue)
	}
}

func TestADFErrors(t *testing.T) {
	if _, err := ADF([]float64{1, 2, 3}); err != ErrInsufficientData {
		t.Errorf("short series: err = %v, want %v", err, ErrInsufficientData)
	}
	bad := make([]float64, 50)
	bad[10] = math.Inf(1)
	if _, err := ADF(bad); err != ErrNonFiniteSeries {
		t.Errorf("inf series: err = %v, want %v", err, ErrNonFiniteSeries)
	}
}

func TestMackinnonP(t *testing.T) {
	tests := []struct {
		name string
		tau  float64
		lo   float64
		hi   float64
	}{
		{"above upper bound", 3.0, 1.0, 1.0},
		{"below lower bound", -25.0, 0.0, 0.0},
		{"deep rejection", -5.0, 0.0, 0.01},
		{"near zero", 0.0, 0.9, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mackinnonP(tt.tau)
			if p < tt.lo || p > tt.hi {
				t.Errorf("p(%v) = %v, want in [%v, %v]", tt.tau, p, tt.lo, tt.hi)
			}
		})
	}
}

func TestMackinnonPMonotone(t *testing.T) {
	// Более отрицательная статистика не должна давать большее p
	prev := 0.0
	for tau := -10.0; tau <= 2.0; tau += 0.5 {
		p := mackinnonP(tau)
		if p < prev-1e-12 {
			t.Fatalf("p(%v) = %v меньше предыдущего %v", tau, p, prev)
		}
		prev = p
	}
}

func TestInvert3Identity(t *testing.T) {
	m := [3][3]float64{{4, 1, 0}, {1, 3, 1}, {0, 1, 2}}
	inv, ok := invert3(m)
	if !ok {
		t.Fatal("invert3 failed on well-conditioned matrix")
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var v float64
			for k := 0; k < 3; k++ {
				v += m[i][k] * inv[k][j]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if !almostEqual(v, want, 1e-9) {
				t.Errorf("(m*inv)[%d][%d] = %v, want %v", i, j, v, want)
			}
		}
	}
}

func TestInvert3Singular(t *testing.T) {
	m := [3][3]float64{{1, 2, 3}, {2, 4, 6}, {1, 1, 1}}
	if _, ok := invert3(m); ok {
		t.Error("expected failure on singular matrix")
	}
}
