package bot

import (
	"context"
	"math"
	"testing"
	"time"

	"statarb/internal/broker"
	"statarb/internal/models"
	"statarb/pkg/utils"
)

func TestClassifyQuality(t *testing.T) {
	tests := []struct {
		name           string
		adfP           float64
		errorRatio     float64
		wantQuality    string
		wantConfidence float64
	}{
		{"excellent", 0.005, 0.10, models.QualityExcellent, 95},
		{"excellent adf boundary", 0.01, 0.10, models.QualityExcellent, 95},
		{"good by adf", 0.03, 0.10, models.QualityGood, 85},
		{"good by error ratio", 0.005, 0.20, models.QualityGood, 85},
		{"good error boundary is exclusive", 0.005, 0.15, models.QualityGood, 85},
		{"fair", 0.08, 0.30, models.QualityFair, 70},
		{"fair adf boundary", 0.10, 0.10, models.QualityFair, 70},
		{"poor by adf", 0.11, 0.10, models.QualityPoor, 40},
		{"poor by error ratio", 0.005, 0.40, models.QualityPoor, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quality, confidence := classifyQuality(tt.adfP, tt.errorRatio)
			if quality != tt.wantQuality {
				t.Errorf("quality = %s, want %s", quality, tt.wantQuality)
			}
			if confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", confidence, tt.wantConfidence)
			}
		})
	}
}

func TestUpdateZScore(t *testing.T) {
	pair := models.PairAnalysis{Beta: 0.8, Intercept: 5, ResidualStd: 2}

	// residual = 101.5 - (0.8*112.5 + 5) = 6.5, z = 3.25
	got := UpdateZScore(pair, 101.5, 112.5)
	if math.Abs(got.CurrentResidual-6.5) > 1e-9 {
		t.Errorf("residual = %v, want 6.5", got.CurrentResidual)
	}
	if math.Abs(got.ZScore-3.25) > 1e-9 {
		t.Errorf("z = %v, want 3.25", got.ZScore)
	}

	// Вход не мутируется
	if pair.ZScore != 0 || pair.CurrentResidual != 0 {
		t.Errorf("input mutated: %+v", pair)
	}
}

func TestUpdateZScoreZeroSigma(t *testing.T) {
	pair := models.PairAnalysis{Beta: 1, Intercept: 0, ResidualStd: 0}
	if got := UpdateZScore(pair, 110, 100); got.ZScore != 0 {
		t.Errorf("z with zero sigma = %v, want 0", got.ZScore)
	}
}

func TestResidualMoments(t *testing.T) {
	mean, std := residualMoments([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean = %v, want 5", mean)
	}
	// Популяционное, не выборочное отклонение
	if std != 2 {
		t.Errorf("std = %v, want 2", std)
	}

	mean, std = residualMoments(nil)
	if mean != 0 || std != 0 {
		t.Errorf("empty input = %v/%v, want 0/0", mean, std)
	}
}

func TestAnalyzeCointegrated(t *testing.T) {
	a := NewPairAnalyzer(utils.NewNopLogger())

	// Синтетика: B ведомая от A с шумом-синусоидой, связь стационарна
	n := 120
	pricesA := make([]float64, n)
	pricesB := make([]float64, n)
	for i := 0; i < n; i++ {
		pricesA[i] = 1000 + 2*float64(i)
		pricesB[i] = 0.7*pricesA[i] + 30 + 3*math.Sin(float64(i)*0.9)
	}

	analysis, err := a.Analyze(
		models.StockSeries{Symbol: "HDFCBANK", Prices: pricesA, Sector: "BANKING", LotSize: 550},
		models.StockSeries{Symbol: "ICICIBANK", Prices: pricesB, Sector: "BANKING", LotSize: 700},
	)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if analysis.PairKey() != analysis.StockY+"-"+analysis.StockX {
		t.Errorf("pair key = %s", analysis.PairKey())
	}
	if analysis.ResidualStd <= 0 {
		t.Errorf("sigma = %v, want positive", analysis.ResidualStd)
	}
	if !analysis.IsStationary {
		t.Errorf("cointegrated synthetic must be stationary, adf_p = %v", analysis.ADFValue)
	}
	if analysis.Sector != "BANKING" {
		t.Errorf("sector = %s", analysis.Sector)
	}

	// Текущий z согласован с фиксированной сигмой
	wantZ := analysis.CurrentResidual / analysis.ResidualStd
	if math.Abs(analysis.ZScore-wantZ) > 1e-9 {
		t.Errorf("z = %v, want %v", analysis.ZScore, wantZ)
	}
}

// calibrationFixture строит коинтегрированную синтетику и брокера
// с её дневными свечами: токен 111 ведёт бумагу AAA, 222 - BBB
func calibrationFixture(n int) (*scriptedBroker, models.StockSeries, models.StockSeries) {
	brk := newScriptedBroker()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seriesA := models.StockSeries{Symbol: "AAA", Sector: "BANKING", LotSize: 550}
	seriesB := models.StockSeries{Symbol: "BBB", Sector: "BANKING", LotSize: 700}
	for i := 0; i < n; i++ {
		at := base.AddDate(0, 0, i)
		a := 1000 + 2*float64(i)
		b := 0.7*a + 30 + 3*math.Sin(float64(i)*0.9)
		seriesA.Prices = append(seriesA.Prices, a)
		seriesA.Timestamps = append(seriesA.Timestamps, at)
		seriesB.Prices = append(seriesB.Prices, b)
		seriesB.Timestamps = append(seriesB.Timestamps, at)
		brk.candles[111] = append(brk.candles[111], broker.Candle{Timestamp: at, Close: a})
		brk.candles[222] = append(brk.candles[222], broker.Candle{Timestamp: at, Close: b})
	}
	return brk, seriesA, seriesB
}

func TestCalibrateFromBroker(t *testing.T) {
	a := NewPairAnalyzer(utils.NewNopLogger())
	brk, seriesA, seriesB := calibrationFixture(120)

	// Направление регрессии определяют сами данные
	ref, err := a.Analyze(seriesA, seriesB)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	cfg := models.PairConfig{
		LegY: ref.StockY, LegX: ref.StockX,
		Sector: "BANKING", LotSizeY: 550, LotSizeX: 700,
	}
	tokens := map[string]uint32{"AAA": 111, "BBB": 222}
	cfg.TokenY, cfg.TokenX = tokens[ref.StockY], tokens[ref.StockX]

	analysis, err := a.CalibrateFromBroker(context.Background(), brk, cfg, 120)
	if err != nil {
		t.Fatalf("CalibrateFromBroker: %v", err)
	}
	if math.Abs(analysis.Beta-ref.Beta) > 1e-9 {
		t.Errorf("beta = %v, want %v from the same candles", analysis.Beta, ref.Beta)
	}
	if analysis.ResidualStd <= 0 {
		t.Errorf("sigma = %v, want positive", analysis.ResidualStd)
	}
}

func TestCalibrateFromBrokerRejectsFlippedDirection(t *testing.T) {
	a := NewPairAnalyzer(utils.NewNopLogger())
	brk, seriesA, seriesB := calibrationFixture(120)

	ref, err := a.Analyze(seriesA, seriesB)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// Ноги перевёрнуты относительно статистически верного направления:
	// лоты и токены в конфиге привязаны к Y/X, молча менять их нельзя
	cfg := models.PairConfig{
		LegY: ref.StockX, LegX: ref.StockY,
		Sector: "BANKING", LotSizeY: 550, LotSizeX: 700,
	}
	tokens := map[string]uint32{"AAA": 111, "BBB": 222}
	cfg.TokenY, cfg.TokenX = tokens[ref.StockX], tokens[ref.StockY]

	if _, err := a.CalibrateFromBroker(context.Background(), brk, cfg, 120); err == nil {
		t.Fatal("flipped regression direction must be rejected")
	}
}

func TestCalibrateFromBrokerTooFewCandles(t *testing.T) {
	a := NewPairAnalyzer(utils.NewNopLogger())
	brk, _, _ := calibrationFixture(calibrationMinCandles - 1)

	cfg := models.PairConfig{
		LegY: "AAA", LegX: "BBB",
		TokenY: 111, TokenX: 222, LotSizeY: 550, LotSizeX: 700,
	}
	if _, err := a.CalibrateFromBroker(context.Background(), brk, cfg, 120); err == nil {
		t.Fatal("short history must refuse to calibrate")
	}
}

func TestAnalyzeRejectsShortSeries(t *testing.T) {
	a := NewPairAnalyzer(utils.NewNopLogger())

	short := []float64{100, 101, 102}
	_, err := a.Analyze(
		models.StockSeries{Symbol: "A", Prices: short},
		models.StockSeries{Symbol: "B", Prices: short},
	)
	if err == nil {
		t.Fatal("expected error for series too short to calibrate")
	}
}
