package bot

import (
	"math"
	"testing"

	"statarb/internal/models"
)

// feedLinear кормит стража точками идеальной связи Y = beta*X + c
func feedLinear(g *Guardian, n int, beta, intercept float64) {
	for i := 0; i < n; i++ {
		x := 100 + float64(i)
		// Синус даёт остаткам дисперсию, чтобы ADF было что тестировать
		y := beta*x + intercept + 0.5*math.Sin(float64(i))
		g.UpdateData(y, x)
	}
}

func TestGuardianInitializing(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, guardianMinPoints-1, 1.0, 5)

	d := g.Diagnose()
	if d.Status != models.HealthYellow || d.Reason != "Initializing" {
		t.Errorf("diagnosis = %+v, want YELLOW/Initializing", d)
	}
}

func TestGuardianHealthy(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, 60, 1.0, 5)

	d := g.Diagnose()
	if d.Status != models.HealthGreen {
		t.Errorf("diagnosis = %+v, want GREEN", d)
	}
	if g.NeedsRecalibration() {
		t.Error("healthy pair must not need recalibration")
	}
}

func TestGuardianBetaDrift(t *testing.T) {
	g := NewGuardian(60)
	// База 1.0, окно живёт с бетой 2.0: дрейф 100% > 50% - RED
	g.Calibrate(1.0)
	feedLinear(g, 60, 2.0, 5)

	d := g.Diagnose()
	if d.Status != models.HealthRed {
		t.Errorf("diagnosis = %+v, want RED", d)
	}
}

func TestGuardianDiagnosisCache(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, 60, 1.0, 5)

	first := g.Diagnose()

	// Ломаем окно новыми точками с другой бетой. Пока кэш жив,
	// диагноз не меняется: вызовы 2-4 отдают закэшированный результат.
	for i := 0; i < 40; i++ {
		x := 200 + float64(i)
		g.UpdateData(3.0*x, x)
	}
	for call := 2; call < CacheInterval; call++ {
		if d := g.Diagnose(); d != first {
			t.Fatalf("call %d = %+v, want cached %+v", call, d, first)
		}
	}

	// Пятый вызов пересчитывает и видит дрейф
	if d := g.Diagnose(); d.Status != models.HealthRed {
		t.Errorf("call %d = %+v, want RED after recompute", CacheInterval, d)
	}
}

func TestGuardianInvalidateCache(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, 60, 1.0, 5)
	first := g.Diagnose()

	for i := 0; i < 60; i++ {
		x := 200 + float64(i)
		g.UpdateData(3.0*x, x)
	}
	g.InvalidateCache()

	if d := g.Diagnose(); d == first {
		t.Error("diagnosis after invalidation must be recomputed")
	}
}

func TestGuardianNeedsRecalibration(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, 60, 2.0, 5)

	// Каждый полный пересчёт с дрейфом инкрементирует счётчик.
	// Нужно больше 5 RED подряд.
	for i := 0; i < 6; i++ {
		g.InvalidateCache()
		if d := g.Diagnose(); d.Status != models.HealthRed {
			t.Fatalf("diagnosis %d = %+v, want RED", i, d)
		}
	}
	if !g.NeedsRecalibration() {
		t.Fatal("expected recalibration need after 6 consecutive RED")
	}

	// Принудительная перекалибровка берёт бету окна и сбрасывает счётчик
	newBeta := g.ForceRecalibrateToCurrent()
	if math.Abs(newBeta-2.0) > 0.05 {
		t.Errorf("recalibrated beta = %v, want ~2.0", newBeta)
	}
	if g.NeedsRecalibration() {
		t.Error("counter must reset after forced recalibration")
	}
	if d := g.Diagnose(); d.Status == models.HealthRed {
		t.Errorf("diagnosis after recalibration = %+v, want not RED", d)
	}
}

func TestGuardianRefitCurrent(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, 60, 2.0, 7)

	reg, err := g.RefitCurrent()
	if err != nil {
		t.Fatalf("RefitCurrent: %v", err)
	}
	// Новая калибровка отдаётся целиком: бета, интерсепт и сигма окна
	if math.Abs(reg.Beta-2.0) > 0.05 {
		t.Errorf("beta = %v, want ~2.0", reg.Beta)
	}
	if math.Abs(reg.Intercept-7.0) > 1.0 {
		t.Errorf("intercept = %v, want ~7", reg.Intercept)
	}
	if reg.ResidualStd <= 0 || reg.ResidualStd > 1.0 {
		t.Errorf("sigma = %v, want small positive", reg.ResidualStd)
	}
}

func TestGuardianRefitCurrentShortWindow(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, guardianMinPoints-1, 2.0, 5)

	if _, err := g.RefitCurrent(); err == nil {
		t.Fatal("short window must refuse to refit")
	}
	// Фолбэк оставляет старую базу
	if got := g.ForceRecalibrateToCurrent(); got != 1.0 {
		t.Errorf("fallback beta = %v, want original 1.0", got)
	}
}

func TestGuardianWindowEviction(t *testing.T) {
	g := NewGuardian(60)
	g.Calibrate(1.0)
	feedLinear(g, 100, 1.0, 5)

	if got := g.WindowLen(); got != 60 {
		t.Errorf("window length = %d, want 60", got)
	}
}

func TestGuardianRejectsGarbagePrices(t *testing.T) {
	g := NewGuardian(60)
	g.UpdateData(math.NaN(), 100)
	g.UpdateData(100, math.Inf(1))
	g.UpdateData(0, 100)
	g.UpdateData(100, 0)

	if got := g.WindowLen(); got != 0 {
		t.Errorf("window length = %d, want 0", got)
	}
}

func TestGuardianRegimeChange(t *testing.T) {
	g := NewGuardian(120)
	g.Calibrate(1.0)

	if got := g.DetectRegimeChange(30); got != models.RegimeInitializing {
		t.Errorf("empty window regime = %s, want INITIALIZING", got)
	}

	feedLinear(g, 120, 1.0, 5)
	if got := g.DetectRegimeChange(60); got != models.RegimeStable {
		t.Errorf("regime = %s, want STABLE", got)
	}
}
