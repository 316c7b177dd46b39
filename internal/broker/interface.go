// Package broker содержит абстракцию брокера: размещение ордеров,
// позиции, маржа и поток рыночных данных. Живая реализация говорит
// с Kite Connect, бумажная исполняет ордера локально.
package broker

import (
	"context"
	"errors"
	"time"
)

// Ошибки брокера
var (
	ErrOrderRejected    = errors.New("broker: order rejected")
	ErrOrderTimeout     = errors.New("broker: order confirmation timeout")
	ErrInsufficientFund = errors.New("broker: insufficient funds")
	ErrNotConnected     = errors.New("broker: not connected")
	ErrUnknownOrder     = errors.New("broker: unknown order id")
)

// Стороны ордера
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Типы ордеров
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
	OrderTypeSLM    = "SL-M" // стоп-лосс по рынку
)

// Продукт: внутридневная маржинальная позиция
const ProductMIS = "MIS"

// Статусы ордеров
const (
	OrderStatusOpen      = "OPEN"
	OrderStatusComplete  = "COMPLETE"
	OrderStatusRejected  = "REJECTED"
	OrderStatusCancelled = "CANCELLED"
)

// OrderParams - параметры размещаемого ордера
type OrderParams struct {
	Symbol       string
	Side         string
	OrderType    string
	Product      string
	Quantity     int
	Price        float64 // для LIMIT
	TriggerPrice float64 // для SL-M
	Tag          string  // идемпотентная метка, uuid
}

// Order - ордер в терминах брокера
type Order struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Side         string    `json:"side"`
	OrderType    string    `json:"order_type"`
	Quantity     int       `json:"quantity"`
	FilledQty    int       `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	Status       string    `json:"status"`
	Tag          string    `json:"tag"`
	PlacedAt     time.Time `json:"placed_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BrokerPosition - позиция на стороне брокера (для сверки при рестарте)
type BrokerPosition struct {
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"quantity"` // отрицательное = шорт
	AvgPrice float64 `json:"avg_price"`
	PnL      float64 `json:"pnl"`
}

// Margins - доступная маржа счёта
type Margins struct {
	Available float64 `json:"available"`
	Used      float64 `json:"used"`
}

// Интервалы исторических свечей
const (
	IntervalDay    = "day"
	IntervalMinute = "minute"
)

// Candle - историческая свеча инструмента
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Broker определяет унифицированный интерфейс исполнения
type Broker interface {
	// Name возвращает имя реализации (kite, paper)
	Name() string

	// PlaceOrder размещает ордер и дожидается терминального статуса
	PlaceOrder(ctx context.Context, params OrderParams) (*Order, error)

	// CancelOrder отменяет ордер по идентификатору
	CancelOrder(ctx context.Context, orderID string) error

	// Positions возвращает открытые позиции счёта
	Positions(ctx context.Context) ([]BrokerPosition, error)

	// Margins возвращает доступную маржу
	Margins(ctx context.Context) (*Margins, error)

	// LTP возвращает последнюю цену инструмента
	LTP(ctx context.Context, symbol string) (float64, error)

	// HistoricalData возвращает свечи инструмента за период
	HistoricalData(ctx context.Context, token uint32, from, to time.Time, interval string) ([]Candle, error)
}
