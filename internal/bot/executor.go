package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"statarb/internal/alert"
	"statarb/internal/broker"
	"statarb/internal/models"
	"statarb/pkg/utils"
)

// ErrUnhedged - исполнена только одна нога и откат не удался.
// Пара живёт с голой ногой, требуется вмешательство оператора.
var ErrUnhedged = errors.New("executor: unhedged leg, rollback failed")

// Leg - одна нога парного ордера
type Leg struct {
	Symbol   string
	Side     string // broker.SideBuy или broker.SideSell
	Quantity int
	LTP      float64 // последняя цена для расчёта marketable limit
}

// PairExecution - результат исполнения обеих ног
type PairExecution struct {
	Tag    string
	OrderY *broker.Order
	OrderX *broker.Order
}

// legResult - внутренний результат одной ноги
type legResult struct {
	leg   Leg
	order *broker.Order
	err   error
}

// ExecutionEngine исполняет парные ордера: обе ноги отправляются
// параллельно marketable-limit ордерами, частичная пара откатывается.
//
// Семантика at-most-once: размещение не ретраится. Повтор POST при
// неизвестном исходе может удвоить позицию.
type ExecutionEngine struct {
	broker    broker.Broker
	alerts    alert.Sink
	log       *zap.Logger
	bufferPct float64 // буфер marketable limit от LTP, %
	tickSize  float64
}

func NewExecutionEngine(b broker.Broker, alerts alert.Sink, bufferPct, tickSize float64, log *zap.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		broker:    b,
		alerts:    alerts,
		log:       log,
		bufferPct: bufferPct,
		tickSize:  tickSize,
	}
}

// ExecutePair отправляет обе ноги одновременно и ждёт исполнения.
//
// Исходы:
//   - обе исполнены: возвращается PairExecution
//   - обе отклонены: ошибка, позиций нет
//   - исполнена одна: исполненная нога немедленно закрывается
//     рыночным ордером, оператору уходит CRITICAL, возвращается ошибка
func (e *ExecutionEngine) ExecutePair(ctx context.Context, legY, legX Leg) (*PairExecution, error) {
	tag := "sa-" + uuid.New().String()[:8]

	e.log.Info("executing pair order",
		zap.String("tag", tag),
		zap.String("leg_y", legY.Symbol), zap.String("side_y", legY.Side), zap.Int("qty_y", legY.Quantity),
		zap.String("leg_x", legX.Symbol), zap.String("side_x", legX.Side), zap.Int("qty_x", legX.Quantity))

	results := make(chan legResult, 2)
	for _, leg := range []Leg{legY, legX} {
		go func(l Leg) {
			order, err := e.placeLeg(ctx, l, tag)
			results <- legResult{leg: l, order: order, err: err}
		}(leg)
	}

	bySymbol := make(map[string]legResult, 2)
	for i := 0; i < 2; i++ {
		r := <-results
		bySymbol[r.leg.Symbol] = r
	}

	resY, resX := bySymbol[legY.Symbol], bySymbol[legX.Symbol]

	if resY.err == nil && resX.err == nil {
		e.log.Info("pair order complete", zap.String("tag", tag))
		return &PairExecution{Tag: tag, OrderY: resY.order, OrderX: resX.order}, nil
	}

	if resY.err != nil && resX.err != nil {
		return nil, fmt.Errorf("both legs failed: y: %v, x: %v", resY.err, resX.err)
	}

	// Исполнилась ровно одна нога. Откатываем её рыночным ордером
	// здесь же, до возврата: пара не должна жить с одной ногой.
	filled, failed := resY, resX
	if resX.err == nil {
		filled, failed = resX, resY
	}
	rollbackErr := e.rollback(ctx, filled, tag)

	data := map[string]interface{}{
		"tag":           tag,
		"filled_leg":    filled.leg.Symbol,
		"failed_leg":    failed.leg.Symbol,
		"failed_reason": failed.err.Error(),
	}
	if rollbackErr != nil {
		data["rollback_error"] = rollbackErr.Error()
		e.alerts.Publish(models.AlertCritical, "executor",
			"UNHEDGED LEG: rollback failed, manual intervention required", data)
		return nil, fmt.Errorf("leg %s failed and rollback of %s failed: %v (original: %v): %w",
			failed.leg.Symbol, filled.leg.Symbol, rollbackErr, failed.err, ErrUnhedged)
	}

	e.alerts.Publish(models.AlertCritical, "executor", "pair order partially filled, filled leg reversed", data)
	return nil, fmt.Errorf("leg %s failed, filled leg %s reversed: %w",
		failed.leg.Symbol, filled.leg.Symbol, failed.err)
}

// placeLeg отправляет одну ногу marketable-limit ордером
func (e *ExecutionEngine) placeLeg(ctx context.Context, leg Leg, tag string) (*broker.Order, error) {
	price := utils.MarketableLimitPrice(leg.LTP, leg.Side == broker.SideBuy, e.bufferPct, e.tickSize)

	return e.broker.PlaceOrder(ctx, broker.OrderParams{
		Symbol:    leg.Symbol,
		Side:      leg.Side,
		OrderType: broker.OrderTypeLimit,
		Product:   broker.ProductMIS,
		Quantity:  leg.Quantity,
		Price:     price,
		Tag:       tag,
	})
}

// rollback закрывает исполненную ногу рыночным ордером противоположной
// стороны на тот же объём
func (e *ExecutionEngine) rollback(ctx context.Context, filled legResult, tag string) error {
	side := broker.SideSell
	if filled.leg.Side == broker.SideSell {
		side = broker.SideBuy
	}

	e.log.Warn("rolling back filled leg",
		zap.String("tag", tag),
		zap.String("symbol", filled.leg.Symbol),
		zap.String("side", side),
		zap.Int("qty", filled.order.FilledQty))

	_, err := e.broker.PlaceOrder(ctx, broker.OrderParams{
		Symbol:    filled.leg.Symbol,
		Side:      side,
		OrderType: broker.OrderTypeMarket,
		Product:   broker.ProductMIS,
		Quantity:  filled.order.FilledQty,
		Tag:       tag + "-rb",
	})
	return err
}

// PlaceProtectiveStop ставит катастрофный SL-M на одну ногу.
// Основной стоп движка работает по z-score; SL-M страхует от обрыва связи.
func (e *ExecutionEngine) PlaceProtectiveStop(ctx context.Context, leg Leg, fillPrice, triggerPct float64, tag string) (*broker.Order, error) {
	side := broker.SideSell
	trigger := fillPrice * (1 - triggerPct/100)
	if leg.Side == broker.SideSell {
		// Закрытие короткой ноги - покупка выше цены входа
		side = broker.SideBuy
		trigger = fillPrice * (1 + triggerPct/100)
	}

	return e.broker.PlaceOrder(ctx, broker.OrderParams{
		Symbol:       leg.Symbol,
		Side:         side,
		OrderType:    broker.OrderTypeSLM,
		Product:      broker.ProductMIS,
		Quantity:     leg.Quantity,
		TriggerPrice: utils.RoundToTick(trigger, e.tickSize),
		Tag:          tag + "-sl",
	})
}
