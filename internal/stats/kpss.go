package stats

import "math"

// Критические значения KPSS для модели с константой (уровневая
// стационарность) и соответствующие им p-значения.
var (
	kpssCrit = []float64{0.347, 0.463, 0.574, 0.739}
	kpssP    = []float64{0.10, 0.05, 0.025, 0.01}
)

// KPSSResult - итог теста KPSS. Нулевая гипотеза - стационарность,
// поэтому большие p-значения здесь хороший знак.
type KPSSResult struct {
	Statistic    float64
	PValue       float64
	IsStationary bool // p >= 0.05, гипотеза стационарности не отвергнута
}

// KPSS считает статистику Квятковского-Филлипса-Шмидта-Шина с
// поправкой Ньюи-Уэста на автокорреляцию. P-значение интерполируется
// по таблице критических значений и обрезается в [0.01, 0.10].
func KPSS(series []float64) (*KPSSResult, error) {
	n := len(series)
	if n < adfMinObs {
		return nil, ErrInsufficientData
	}
	for _, v := range series {
		if !isFinite(v) {
			return nil, ErrNonFiniteSeries
		}
	}

	fn := float64(n)
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= fn

	resid := make([]float64, n)
	for i, v := range series {
		resid[i] = v - mean
	}

	// Частичные суммы остатков.
	var eta float64
	var cum float64
	for _, r := range resid {
		cum += r
		eta += cum * cum
	}

	s2 := neweyWestVariance(resid)
	if s2 == 0 {
		return nil, ErrZeroVariance
	}
	stat := eta / (fn * fn * s2)

	return &KPSSResult{
		Statistic:    stat,
		PValue:       kpssPValue(stat),
		IsStationary: kpssPValue(stat) >= 0.05,
	}, nil
}

// kpssPValue линейно интерполирует p между табличными точками.
func kpssPValue(stat float64) float64 {
	if stat <= kpssCrit[0] {
		return kpssP[0]
	}
	last := len(kpssCrit) - 1
	if stat >= kpssCrit[last] {
		return kpssP[last]
	}
	for i := 0; i < last; i++ {
		lo, hi := kpssCrit[i], kpssCrit[i+1]
		if stat >= lo && stat < hi {
			frac := (stat - lo) / (hi - lo)
			return kpssP[i] + frac*(kpssP[i+1]-kpssP[i])
		}
	}
	return kpssP[last]
}

// neweyWestVariance - долгосрочная дисперсия с ядром Бартлетта.
// Ширина окна по правилу Шверта: 12*(n/100)^(1/4), округление вниз.
func neweyWestVariance(resid []float64) float64 {
	n := len(resid)
	fn := float64(n)

	var s2 float64
	for _, r := range resid {
		s2 += r * r
	}
	s2 /= fn

	lags := int(math.Floor(12 * math.Pow(fn/100, 0.25)))
	if lags >= n {
		lags = n - 1
	}
	for l := 1; l <= lags; l++ {
		var gamma float64
		for t := l; t < n; t++ {
			gamma += resid[t] * resid[t-l]
		}
		gamma /= fn
		w := 1 - float64(l)/float64(lags+1)
		s2 += 2 * w * gamma
	}
	return s2
}
