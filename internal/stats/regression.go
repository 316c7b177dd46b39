// Package stats содержит статистическое ядро: регрессия, тесты
// стационарности и метрики возврата к среднему. Все функции чистые,
// без состояния и без блокировок.
package stats

import (
	"errors"
	"math"
)

var (
	ErrInsufficientData  = errors.New("stats: недостаточно наблюдений")
	ErrLengthMismatch    = errors.New("stats: ряды разной длины")
	ErrZeroVariance      = errors.New("stats: нулевая дисперсия регрессора")
	ErrDegreesOfFreedom  = errors.New("stats: нет степеней свободы")
	ErrNonFiniteSeries   = errors.New("stats: ряд содержит NaN или Inf")
)

// Regression - результат МНК-регрессии y = beta*x + intercept + eps.
type Regression struct {
	Intercept       float64
	Beta            float64
	Residuals       []float64
	ResidualStd     float64 // стандартная ошибка остатков (ddof=2)
	InterceptStdErr float64 // стандартная ошибка свободного члена
	BetaStdErr      float64
	R2              float64
}

// Fit оценивает y = beta*x + intercept обычным МНК.
// Требует минимум 3 наблюдения: при n=2 остатки вырождаются в ноль.
func Fit(y, x []float64) (*Regression, error) {
	n := len(y)
	if n != len(x) {
		return nil, ErrLengthMismatch
	}
	if n < 3 {
		return nil, ErrInsufficientData
	}
	for i := 0; i < n; i++ {
		if !isFinite(y[i]) || !isFinite(x[i]) {
			return nil, ErrNonFiniteSeries
		}
	}

	fn := float64(n)
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / fn
	meanY := sumY / fn

	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return nil, ErrZeroVariance
	}

	beta := sxy / sxx
	intercept := meanY - beta*meanX

	residuals := make([]float64, n)
	var ssr float64
	for i := 0; i < n; i++ {
		r := y[i] - (beta*x[i] + intercept)
		residuals[i] = r
		ssr += r * r
	}

	// ddof=2: оценены два параметра. n>=3 гарантирует знаменатель > 0.
	sigma2 := ssr / (fn - 2)
	residStd := math.Sqrt(sigma2)

	betaSE := math.Sqrt(sigma2 / sxx)
	interceptSE := math.Sqrt(sigma2 * (1/fn + meanX*meanX/sxx))

	r2 := 0.0
	if syy > 0 {
		r2 = 1 - ssr/syy
	}

	return &Regression{
		Intercept:       intercept,
		Beta:            beta,
		Residuals:       residuals,
		ResidualStd:     residStd,
		InterceptStdErr: interceptSE,
		BetaStdErr:      betaSE,
		R2:              r2,
	}, nil
}

// ErrorRatio - отношение ошибки свободного члена к ошибке остатков.
// Чем меньше, тем надёжнее выбранное направление регрессии.
// При нулевой ошибке остатков возвращает +Inf.
func (r *Regression) ErrorRatio() float64 {
	if r.ResidualStd == 0 {
		return math.Inf(1)
	}
	return r.InterceptStdErr / r.ResidualStd
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
