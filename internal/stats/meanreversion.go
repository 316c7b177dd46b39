package stats

import (
	"math"

	"statarb/pkg/utils"
)

// Минимум точек, от которого оценки возврата к среднему осмысленны.
const meanRevMinObs = 20

// Допустимый диапазон периода полураспада в торговых днях.
const (
	HalfLifeMin = 1.0
	HalfLifeMax = 20.0
)

// HalfLife оценивает период полураспада отклонения спреда через
// AR(1)-регрессию dy_t = a + k*y_{t-1}. Возвращает +Inf если ряд
// короче 20 точек либо возврата к среднему нет (k >= 0).
func HalfLife(series []float64) float64 {
	n := len(series)
	if n < meanRevMinObs {
		return math.Inf(1)
	}

	m := n - 1
	dep := make([]float64, m)
	lag := make([]float64, m)
	for i := 0; i < m; i++ {
		dep[i] = series[i+1] - series[i]
		lag[i] = series[i]
	}

	reg, err := Fit(dep, lag)
	if err != nil {
		return math.Inf(1)
	}
	k := reg.Beta
	if k >= 0 {
		return math.Inf(1)
	}
	// 1+k in (0,1): распад экспоненциальный.
	if 1+k <= 0 {
		return math.Inf(1)
	}
	return math.Log(0.5) / math.Log(1+k)
}

// IsValidHalfLife говорит, попадает ли период полураспада в рабочий
// диапазон стратегии.
func IsValidHalfLife(hl float64) bool {
	return hl >= HalfLifeMin && hl <= HalfLifeMax
}

// HurstExponent оценивает показатель Херста методом дисперсии лаговых
// разностей: наклон log(std(y_t - y_{t-lag})) по log(lag) на лагах
// 2..min(20, n/2). При нехватке данных возвращает нейтральные 0.5.
// Результат обрезается в [0, 1].
func HurstExponent(series []float64) float64 {
	n := len(series)
	if n < meanRevMinObs {
		return 0.5
	}

	maxLag := 20
	if half := n / 2; half < maxLag {
		maxLag = half
	}

	var logLags, logStds []float64
	for lag := 2; lag < maxLag; lag++ {
		var sum, sumSq float64
		m := n - lag
		for i := 0; i < m; i++ {
			d := series[i+lag] - series[i]
			sum += d
			sumSq += d * d
		}
		fm := float64(m)
		variance := sumSq/fm - (sum/fm)*(sum/fm)
		if variance <= 0 {
			continue
		}
		logLags = append(logLags, math.Log(float64(lag)))
		logStds = append(logStds, 0.5*math.Log(variance))
	}
	if len(logLags) < 3 {
		return 0.5
	}

	reg, err := Fit(logStds, logLags)
	if err != nil {
		return 0.5
	}
	return utils.Clamp(reg.Beta, 0, 1)
}
