package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaperBroker - бумажный брокер для paper-режима.
// Исполняет ордера мгновенно по лимитной цене (или по последней
// известной цене для рыночных), ведёт позиции в памяти.
// Полезен для обкатки стратегии без реального счёта.
type PaperBroker struct {
	log *zap.Logger

	mu        sync.Mutex
	capital   float64
	prices    map[string]float64
	positions map[string]*BrokerPosition
	orders    map[string]*Order
}

// NewPaperBroker создаёт бумажный брокер с начальным капиталом
func NewPaperBroker(capital float64, log *zap.Logger) *PaperBroker {
	return &PaperBroker{
		log:       log,
		capital:   capital,
		prices:    make(map[string]float64),
		positions: make(map[string]*BrokerPosition),
		orders:    make(map[string]*Order),
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// SetPrice обновляет последнюю цену инструмента.
// Вызывается из потока рыночных данных.
func (p *PaperBroker) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = price
	p.mu.Unlock()
}

// PlaceOrder мгновенно исполняет ордер
func (p *PaperBroker) PlaceOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.Quantity <= 0 {
		return nil, ErrOrderRejected
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fillPrice := params.Price
	if params.OrderType == OrderTypeMarket || fillPrice == 0 {
		ltp, ok := p.prices[params.Symbol]
		if !ok {
			return nil, ErrOrderRejected
		}
		fillPrice = ltp
	}

	// SL-M регистрируется, но не исполняется: бумажный брокер не
	// моделирует триггеры, стоп отрабатывает движок по z-score
	now := time.Now()
	order := &Order{
		ID:        uuid.NewString(),
		Symbol:    params.Symbol,
		Side:      params.Side,
		OrderType: params.OrderType,
		Quantity:  params.Quantity,
		Tag:       params.Tag,
		PlacedAt:  now,
		UpdatedAt: now,
	}

	if params.OrderType == OrderTypeSLM {
		order.Status = OrderStatusOpen
		p.orders[order.ID] = order
		return order, nil
	}

	order.Status = OrderStatusComplete
	order.FilledQty = params.Quantity
	order.AvgFillPrice = fillPrice
	p.orders[order.ID] = order
	p.applyFill(params.Symbol, params.Side, params.Quantity, fillPrice)

	p.log.Debug("paper fill",
		zap.String("symbol", params.Symbol),
		zap.String("side", params.Side),
		zap.Int("qty", params.Quantity),
		zap.Float64("price", fillPrice))
	return order, nil
}

// applyFill обновляет позицию. Вызывается под lock'ом
func (p *PaperBroker) applyFill(symbol, side string, qty int, price float64) {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &BrokerPosition{Symbol: symbol}
		p.positions[symbol] = pos
	}

	signed := qty
	if side == SideSell {
		signed = -qty
	}

	newQty := pos.Quantity + signed
	switch {
	case pos.Quantity == 0:
		pos.AvgPrice = price
	case (pos.Quantity > 0) == (signed > 0):
		// Доливка в ту же сторону: средневзвешенная цена
		total := float64(abs(pos.Quantity))*pos.AvgPrice + float64(abs(signed))*price
		pos.AvgPrice = total / float64(abs(pos.Quantity)+abs(signed))
	case newQty == 0:
		pos.AvgPrice = 0
	}
	pos.Quantity = newQty

	if newQty == 0 {
		delete(p.positions, symbol)
	}
}

// CancelOrder отменяет открытый ордер (фактически только SL-M)
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return ErrUnknownOrder
	}
	if order.Status == OrderStatusOpen {
		order.Status = OrderStatusCancelled
		order.UpdatedAt = time.Now()
	}
	return nil
}

// Positions возвращает копию текущих позиций
func (p *PaperBroker) Positions(ctx context.Context) ([]BrokerPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]BrokerPosition, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out, nil
}

// Margins возвращает условную маржу бумажного счёта
func (p *PaperBroker) Margins(ctx context.Context) (*Margins, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var used float64
	for _, pos := range p.positions {
		used += float64(abs(pos.Quantity)) * pos.AvgPrice
	}
	return &Margins{Available: p.capital - used, Used: used}, nil
}

// HistoricalData у бумажного брокера отсутствует: свечей он не хранит.
// Калибровка в paper-режиме читает историю из базы или файла пар.
func (p *PaperBroker) HistoricalData(ctx context.Context, token uint32, from, to time.Time, interval string) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("paper broker: historical data not available")
}

// LTP возвращает последнюю известную цену
func (p *PaperBroker) LTP(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		return 0, ErrNotConnected
	}
	return price, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
