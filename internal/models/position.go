package models

import "time"

// Направление позиции по спреду
const (
	DirectionNone  = "NONE"  // нет позиции
	DirectionLong  = "LONG"  // long spread: купить Y, продать X
	DirectionShort = "SHORT" // short spread: продать Y, купить X
)

// Position - текущее состояние позиции по одной паре.
//
// Инвариант: на один pair_key существует не более одной открытой позиции.
// Владелец - PositionTracker этой пары; мутирует позицию только
// горутина-воркер пары (single-writer дисциплина).
type Position struct {
	IsOpen bool   `json:"is_open"`
	Type   string `json:"type"` // LONG или SHORT (по спреду)

	EntryTime   time.Time `json:"entry_time"`
	EntryPriceY float64   `json:"entry_price_y"`
	EntryPriceX float64   `json:"entry_price_x"`
	EntryZScore float64   `json:"entry_zscore"`

	LotsY int `json:"lots_y"`
	LotsX int `json:"lots_x"`
	QtyY  int `json:"qty_y"` // LotsY * LotSizeY
	QtyX  int `json:"qty_x"` // LotsX * LotSizeX

	CurrentPriceY float64 `json:"current_price_y"`
	CurrentPriceX float64 `json:"current_price_x"`
	CurrentZScore float64 `json:"current_zscore"`

	// P&L по ногам и суммарный
	PnlY     float64 `json:"pnl_y"`
	PnlX     float64 `json:"pnl_x"`
	TotalPnl float64 `json:"total_pnl"`
}

// PositionSnapshot - то, что уходит в файл состояния (engine_state.json).
// Минимум, достаточный для восстановления позиции после краша.
type PositionSnapshot struct {
	Side        string    `json:"side"` // LONG или SHORT
	EntryPriceY float64   `json:"entry_price_y"`
	EntryPriceX float64   `json:"entry_price_x"`
	EntryZScore float64   `json:"entry_zscore"`
	EntryTime   time.Time `json:"entry_time"`
	QtyY        int       `json:"qty_y"`
	QtyX        int       `json:"qty_x"`
}

// TradeSummary - итог закрытой сделки по паре
type TradeSummary struct {
	PairKey    string    `json:"pair"`
	Type       string    `json:"position_type"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryZ     float64   `json:"entry_z"`
	ExitZ      float64   `json:"exit_z"`
	EntryY     float64   `json:"entry_y"`
	EntryX     float64   `json:"entry_x"`
	ExitY      float64   `json:"exit_y"`
	ExitX      float64   `json:"exit_x"`
	PnlY       float64   `json:"pnl_y"`
	PnlX       float64   `json:"pnl_x"`
	TotalPnl   float64   `json:"total_pnl"`
	ExitReason string    `json:"exit_reason"`
}

// TrackerLogEntry - запись временного лога трекера
// (зеркалит журнальный лист методики: время, цены ног, z-score)
type TrackerLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	PriceY    float64   `json:"price_y"`
	PriceX    float64   `json:"price_x"`
	ZScore    float64   `json:"z_score"`
}
