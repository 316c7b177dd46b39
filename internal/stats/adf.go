package stats

import "math"

// Минимум наблюдений для ADF с одним лагом: после дифференцирования
// и сдвига остаётся n-2 строки, нужно хотя бы вдвое больше параметров.
const adfMinObs = 10

// Границы применимости аппроксимации MacKinnon для модели с константой.
const (
	adfTauStar = -1.61
	adfTauMin  = -18.83
	adfTauMax  = 2.74
)

// Полиномы MacKinnon (1994) для p-значения по tau-статистике,
// регрессия с константой без тренда.
var (
	adfSmallP = []float64{2.1659, 1.4412, 0.038269}
	adfLargeP = []float64{1.7339, 0.93202, -0.012745, -0.0010368}
)

// ADFResult - итог расширенного теста Дики-Фуллера.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	IsStationary bool // p <= 0.05
}

// ADF выполняет расширенный тест Дики-Фуллера с константой и одним
// лагом разности: dy_t = a + g*y_{t-1} + b*dy_{t-1}. Возвращаемое
// p-значение - аппроксимация MacKinnon по tau-статистике коэффициента g.
func ADF(series []float64) (*ADFResult, error) {
	n := len(series)
	if n < adfMinObs {
		return nil, ErrInsufficientData
	}
	for _, v := range series {
		if !isFinite(v) {
			return nil, ErrNonFiniteSeries
		}
	}

	// Строки регрессии: t = 2..n-1.
	m := n - 2
	dep := make([]float64, m)
	lag := make([]float64, m)  // y_{t-1}
	dlag := make([]float64, m) // dy_{t-1}
	for i := 0; i < m; i++ {
		t := i + 2
		dep[i] = series[t] - series[t-1]
		lag[i] = series[t-1]
		dlag[i] = series[t-1] - series[t-2]
	}

	coef, se, err := ols3(dep, lag, dlag)
	if err != nil {
		return nil, err
	}
	if se[1] == 0 {
		return nil, ErrZeroVariance
	}

	tau := coef[1] / se[1]
	p := mackinnonP(tau)
	return &ADFResult{
		Statistic:    tau,
		PValue:       p,
		IsStationary: p <= 0.05,
	}, nil
}

// mackinnonP переводит tau-статистику в приближённое p-значение.
func mackinnonP(tau float64) float64 {
	if tau > adfTauMax {
		return 1.0
	}
	if tau < adfTauMin {
		return 0.0
	}
	var coefs []float64
	if tau <= adfTauStar {
		coefs = adfSmallP
	} else {
		coefs = adfLargeP
	}
	return normCDF(polyval(coefs, tau))
}

// polyval считает c0 + c1*x + c2*x^2 + ... по схеме Горнера.
func polyval(coefs []float64, x float64) float64 {
	v := 0.0
	for i := len(coefs) - 1; i >= 0; i-- {
		v = v*x + coefs[i]
	}
	return v
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// ols3 - МНК с тремя регрессорами (константа, x1, x2) через нормальные
// уравнения и исключение Гаусса. Возвращает коэффициенты и их ошибки.
func ols3(y, x1, x2 []float64) (coef, se [3]float64, err error) {
	m := len(y)
	if m < 4 {
		return coef, se, ErrDegreesOfFreedom
	}

	// X'X и X'y для X = [1, x1, x2].
	var xtx [3][3]float64
	var xty [3]float64
	for i := 0; i < m; i++ {
		row := [3]float64{1, x1[i], x2[i]}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				xtx[a][b] += row[a] * row[b]
			}
			xty[a] += row[a] * y[i]
		}
	}

	inv, ok := invert3(xtx)
	if !ok {
		return coef, se, ErrZeroVariance
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			coef[a] += inv[a][b] * xty[b]
		}
	}

	var ssr float64
	for i := 0; i < m; i++ {
		fit := coef[0] + coef[1]*x1[i] + coef[2]*x2[i]
		r := y[i] - fit
		ssr += r * r
	}
	sigma2 := ssr / float64(m-3)
	for a := 0; a < 3; a++ {
		se[a] = math.Sqrt(sigma2 * inv[a][a])
	}
	return coef, se, nil
}

// invert3 обращает симметричную матрицу 3x3 методом Гаусса-Жордана
// с частичным выбором ведущего элемента.
func invert3(m [3][3]float64) ([3][3]float64, bool) {
	var aug [3][6]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			aug[i][j] = m[i][j]
		}
		aug[i][3+i] = 1
	}

	for col := 0; col < 3; col++ {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-12 {
			return [3][3]float64{}, false
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		p := aug[col][col]
		for j := 0; j < 6; j++ {
			aug[col][j] /= p
		}
		for r := 0; r < 3; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			for j := 0; j < 6; j++ {
				aug[r][j] -= f * aug[col][j]
			}
		}
	}

	var inv [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv[i][j] = aug[i][3+j]
		}
	}
	return inv, true
}
