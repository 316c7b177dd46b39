package bot

import (
	"errors"
	"time"

	"statarb/internal/models"
	"statarb/pkg/utils"
)

// Максимум записей временного лога трекера
const trackerLogLimit = 1000

var (
	ErrPositionOpen   = errors.New("tracker: position already open")
	ErrPositionClosed = errors.New("tracker: no open position")
)

// PositionTracker ведёт позицию одной пары: вход, переоценка на
// каждом баре, выход. Z-score всегда от фиксированной сигмы калибровки.
//
// НЕ потокобезопасен: владелец - горутина-воркер пары.
type PositionTracker struct {
	pair    models.PairAnalysis
	signals *SignalGenerator

	position models.Position
	log      []models.TrackerLogEntry
}

// NewPositionTracker создаёт трекер для откалиброванной пары
func NewPositionTracker(pair models.PairAnalysis, signals *SignalGenerator) *PositionTracker {
	return &PositionTracker{pair: pair, signals: signals}
}

// Pair возвращает текущую калибровку
func (t *PositionTracker) Pair() models.PairAnalysis {
	return t.pair
}

// Recalibrate подменяет калибровку пары (новая бета/сигма)
func (t *PositionTracker) Recalibrate(pair models.PairAnalysis) {
	t.pair = pair
}

// Position возвращает копию текущей позиции
func (t *PositionTracker) Position() models.Position {
	return t.position
}

// State возвращает направление открытой позиции для машины сигналов
func (t *PositionTracker) State() string {
	if !t.position.IsOpen {
		return models.DirectionNone
	}
	return t.position.Type
}

// Open фиксирует вход. Отказ, если позиция по паре уже открыта:
// на пару допускается не более одной позиции.
func (t *PositionTracker) Open(priceY, priceX float64, direction string, lotsY, lotsX, lotSizeY, lotSizeX int, at time.Time) error {
	if t.position.IsOpen {
		return ErrPositionOpen
	}

	entry := UpdateZScore(t.pair, priceY, priceX)
	t.pair = entry

	t.position = models.Position{
		IsOpen:        true,
		Type:          direction,
		EntryTime:     at,
		EntryPriceY:   priceY,
		EntryPriceX:   priceX,
		EntryZScore:   entry.ZScore,
		LotsY:         lotsY,
		LotsX:         lotsX,
		QtyY:          lotsY * lotSizeY,
		QtyX:          lotsX * lotSizeX,
		CurrentPriceY: priceY,
		CurrentPriceX: priceX,
		CurrentZScore: entry.ZScore,
	}
	return nil
}

// Restore восстанавливает позицию из снапшота после рестарта
func (t *PositionTracker) Restore(snap models.PositionSnapshot) error {
	if t.position.IsOpen {
		return ErrPositionOpen
	}
	t.position = models.Position{
		IsOpen:        true,
		Type:          snap.Side,
		EntryTime:     snap.EntryTime,
		EntryPriceY:   snap.EntryPriceY,
		EntryPriceX:   snap.EntryPriceX,
		EntryZScore:   snap.EntryZScore,
		QtyY:          snap.QtyY,
		QtyX:          snap.QtyX,
		CurrentPriceY: snap.EntryPriceY,
		CurrentPriceX: snap.EntryPriceX,
		CurrentZScore: snap.EntryZScore,
	}
	return nil
}

// Snapshot возвращает снапшот открытой позиции для файла состояния
func (t *PositionTracker) Snapshot() (models.PositionSnapshot, bool) {
	if !t.position.IsOpen {
		return models.PositionSnapshot{}, false
	}
	return models.PositionSnapshot{
		Side:        t.position.Type,
		EntryPriceY: t.position.EntryPriceY,
		EntryPriceX: t.position.EntryPriceX,
		EntryZScore: t.position.EntryZScore,
		EntryTime:   t.position.EntryTime,
		QtyY:        t.position.QtyY,
		QtyX:        t.position.QtyX,
	}, true
}

// Update переоценивает позицию по свежим ценам и возвращает сигнал
// выхода (или HOLD). P&L по ногам:
//
//	LONG:  pnl_y = (cur-entry)*qty_y, pnl_x = (entry-cur)*qty_x
//	SHORT: знаки инвертируются
func (t *PositionTracker) Update(priceY, priceX float64, at time.Time) (Signal, error) {
	if !t.position.IsOpen {
		return Signal{}, ErrPositionClosed
	}

	fresh := UpdateZScore(t.pair, priceY, priceX)
	t.pair = fresh

	p := &t.position
	p.CurrentPriceY = priceY
	p.CurrentPriceX = priceX
	p.CurrentZScore = fresh.ZScore

	// LONG spread = длинная нога Y против короткой X, SHORT наоборот
	switch p.Type {
	case models.DirectionLong:
		p.PnlY = utils.CalculatePNL(models.DirectionLong, p.EntryPriceY, priceY, float64(p.QtyY))
		p.PnlX = utils.CalculatePNL(models.DirectionShort, p.EntryPriceX, priceX, float64(p.QtyX))
	case models.DirectionShort:
		p.PnlY = utils.CalculatePNL(models.DirectionShort, p.EntryPriceY, priceY, float64(p.QtyY))
		p.PnlX = utils.CalculatePNL(models.DirectionLong, p.EntryPriceX, priceX, float64(p.QtyX))
	}
	p.TotalPnl = p.PnlY + p.PnlX

	t.appendLog(models.TrackerLogEntry{
		Timestamp: at,
		PriceY:    priceY,
		PriceX:    priceX,
		ZScore:    fresh.ZScore,
	})

	return t.signals.Evaluate(fresh.ZScore, p.Type), nil
}

// Close закрывает позицию, возвращает итог сделки и сбрасывает трекер
func (t *PositionTracker) Close(reason string, at time.Time) (*models.TradeSummary, error) {
	if !t.position.IsOpen {
		return nil, ErrPositionClosed
	}
	p := t.position

	summary := &models.TradeSummary{
		PairKey:    t.pair.PairKey(),
		Type:       p.Type,
		EntryTime:  p.EntryTime,
		ExitTime:   at,
		EntryZ:     p.EntryZScore,
		ExitZ:      p.CurrentZScore,
		EntryY:     p.EntryPriceY,
		EntryX:     p.EntryPriceX,
		ExitY:      p.CurrentPriceY,
		ExitX:      p.CurrentPriceX,
		PnlY:       p.PnlY,
		PnlX:       p.PnlX,
		TotalPnl:   p.TotalPnl,
		ExitReason: reason,
	}

	t.position = models.Position{}
	return summary, nil
}

// Log возвращает копию временного лога
func (t *PositionTracker) Log() []models.TrackerLogEntry {
	out := make([]models.TrackerLogEntry, len(t.log))
	copy(out, t.log)
	return out
}

func (t *PositionTracker) appendLog(entry models.TrackerLogEntry) {
	t.log = append(t.log, entry)
	if len(t.log) > trackerLogLimit {
		t.log = t.log[len(t.log)-trackerLogLimit:]
	}
}
