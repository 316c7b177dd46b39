package models

import "time"

// PairConfig представляет откалиброванную торговую пару акций.
//
// Пара записывается в виде Y = beta*X + intercept + residual:
// LegY - зависимая бумага, LegX - независимая. Остаток (residual)
// и есть торгуемый сигнал: его отклонение от нуля измеряется
// в единицах фиксированной сигмы (Sigma), зафиксированной при калибровке.
type PairConfig struct {
	ID        int     `json:"id" db:"id"`
	LegY      string  `json:"leg1" db:"leg_y"`            // зависимая бумага (Y)
	LegX      string  `json:"leg2" db:"leg_x"`            // независимая бумага (X)
	Sector    string  `json:"sector" db:"sector"`         // сектор пары
	Beta      float64 `json:"hedge_ratio" db:"beta"`      // hedge ratio из регрессии
	Intercept float64 `json:"intercept" db:"intercept"`   // свободный член регрессии
	Sigma     float64 `json:"sigma" db:"sigma"`           // фиксированная сигма остатков
	ADFValue  float64 `json:"adf" db:"adf_value"`         // p-value теста ADF при калибровке
	Quality   string  `json:"quality" db:"quality"`       // EXCELLENT/GOOD/FAIR/POOR
	LotSizeY  int     `json:"lot_size_y" db:"lot_size_y"` // размер лота Y
	LotSizeX  int     `json:"lot_size_x" db:"lot_size_x"` // размер лота X
	TokenY    uint32  `json:"token_y" db:"token_y"`       // instrument token Y
	TokenX    uint32  `json:"token_x" db:"token_x"`       // instrument token X
	Status    string  `json:"status" db:"status"`         // paused, active

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PairKey возвращает уникальный ключ пары вида "Y-X"
func (p *PairConfig) PairKey() string {
	return p.LegY + "-" + p.LegX
}

// Статусы пары
const (
	PairStatusPaused = "paused"
	PairStatusActive = "active"
)

// StockSeries - неизменяемый снимок ценового ряда одной бумаги
// на момент калибровки. Создаётся один раз на проход калибровки
// и дальше не мутируется.
type StockSeries struct {
	Symbol     string
	Prices     []float64
	Timestamps []time.Time
	Sector     string
	LotSize    int
}
