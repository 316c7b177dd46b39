package models

// PairAnalysis - полный результат калибровки пары.
//
// ВАЖНО: значение неизменяемое. Каждое обновление живой цены порождает
// НОВЫЙ PairAnalysis (см. Analyzer.UpdateZScore), а не мутирует общий -
// это убирает необходимость блокировок на горячем пути между горутинами.
type PairAnalysis struct {
	StockY string `json:"stock_y"` // зависимая бумага (Y)
	StockX string `json:"stock_x"` // независимая бумага (X)
	Sector string `json:"sector"`

	// Параметры регрессии Y = Beta*X + Intercept + residual
	Intercept  float64 `json:"intercept"`
	Beta       float64 `json:"beta"`
	ErrorRatio float64 `json:"error_ratio"` // SE(intercept)/SE(residuals)

	// Стационарность остатков
	ADFValue     float64 `json:"adf_value"` // p-value теста ADF
	IsStationary bool    `json:"is_stationary"`

	// Статистика остатков. ResidualStd - ФИКСИРОВАННАЯ сигма:
	// z-score всегда считается от неё, никогда от скользящей оценки
	// (методика mean-reversion timing, см. Analyzer)
	ResidualMean float64 `json:"residual_mean"`
	ResidualStd  float64 `json:"residual_std"`

	// Тайминг возврата к среднему
	HalfLife        float64 `json:"half_life"`      // дней, +Inf если возврата нет
	Hurst           float64 `json:"hurst"`          // [0,1], <0.5 = mean-reverting
	IsValidHalfLife bool    `json:"is_valid_halflife"` // half_life в [1, 20] дней

	// Текущее состояние
	CurrentResidual float64 `json:"current_residual"`
	ZScore          float64 `json:"z_score"`

	// Оценка качества
	Quality    string  `json:"quality"`
	Confidence float64 `json:"confidence"` // 0-100
}

// PairKey возвращает уникальный ключ пары вида "Y-X"
func (p PairAnalysis) PairKey() string {
	return p.StockY + "-" + p.StockX
}

// Классы качества пары
const (
	QualityExcellent = "EXCELLENT"
	QualityGood      = "GOOD"
	QualityFair      = "FAIR"
	QualityPoor      = "POOR"
)
