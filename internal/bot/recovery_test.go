package bot

import (
	"context"
	"testing"
	"time"

	"statarb/internal/broker"
	"statarb/internal/models"
)

func savedState(side string) EngineState {
	return EngineState{
		ActiveTrades: map[string]models.PositionSnapshot{
			"HDFCBANK-ICICIBANK": {
				Side:        side,
				EntryPriceY: 1044,
				EntryPriceX: 1050,
				EntryZScore: -2.8,
				EntryTime:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
				QtyY:        100,
				QtyX:        100,
			},
		},
	}
}

func TestRecoverRestoresMatchingPosition(t *testing.T) {
	brk := newScriptedBroker()
	// LONG спред: брокер держит +Y и -X
	brk.positions = []broker.BrokerPosition{
		{Symbol: "HDFCBANK", Quantity: 100},
		{Symbol: "ICICIBANK", Quantity: -100},
	}
	e, _ := testEngine(t, brk, &recordingSink{})

	if err := e.Recover(context.Background(), savedState(models.DirectionLong)); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	w := e.workers["HDFCBANK-ICICIBANK"]
	if got := w.State(); got != models.StateHolding {
		t.Errorf("state = %s, want holding", got)
	}
	if e.portfolio.OpenCount() != 1 {
		t.Errorf("open count = %d, want 1", e.portfolio.OpenCount())
	}
	pos := w.tracker.Position()
	if pos.Type != models.DirectionLong || pos.QtyY != 100 || pos.QtyX != 100 {
		t.Errorf("restored position = %+v", pos)
	}
}

func TestRecoverAcceptsLargerBrokerPosition(t *testing.T) {
	brk := newScriptedBroker()
	// Брокер держит больше снапшота (ручная докупка): знак совпадает,
	// объёма хватает - восстанавливаем
	brk.positions = []broker.BrokerPosition{
		{Symbol: "HDFCBANK", Quantity: 150},
		{Symbol: "ICICIBANK", Quantity: -120},
	}
	e, _ := testEngine(t, brk, &recordingSink{})

	if err := e.Recover(context.Background(), savedState(models.DirectionLong)); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got := e.workers["HDFCBANK-ICICIBANK"].State(); got != models.StateHolding {
		t.Errorf("state = %s, want holding", got)
	}
}

func TestRecoverDropsMismatchedPosition(t *testing.T) {
	tests := []struct {
		name      string
		positions []broker.BrokerPosition
	}{
		{"no broker positions", nil},
		{"wrong sign", []broker.BrokerPosition{
			{Symbol: "HDFCBANK", Quantity: -100},
			{Symbol: "ICICIBANK", Quantity: 100},
		}},
		{"one leg missing", []broker.BrokerPosition{
			{Symbol: "HDFCBANK", Quantity: 100},
		}},
		{"insufficient quantity", []broker.BrokerPosition{
			{Symbol: "HDFCBANK", Quantity: 50},
			{Symbol: "ICICIBANK", Quantity: -100},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			brk := newScriptedBroker()
			brk.positions = tt.positions
			sink := &recordingSink{}
			e, _ := testEngine(t, brk, sink)

			if err := e.Recover(context.Background(), savedState(models.DirectionLong)); err != nil {
				t.Fatalf("Recover: %v", err)
			}

			// Снапшот отброшен: пара в обычном стартовом состоянии,
			// оператор сверяет позиции по алерту
			if got := e.workers["HDFCBANK-ICICIBANK"].State(); got == models.StateHolding {
				t.Error("mismatched snapshot must not be restored")
			}
			if e.portfolio.OpenCount() != 0 {
				t.Errorf("open count = %d, want 0", e.portfolio.OpenCount())
			}
			if sink.count() != 1 {
				t.Errorf("alerts = %d, want 1 warning", sink.count())
			}
		})
	}
}

func TestRecoverUnknownPair(t *testing.T) {
	brk := newScriptedBroker()
	sink := &recordingSink{}
	e, _ := testEngine(t, brk, sink)

	state := EngineState{
		ActiveTrades: map[string]models.PositionSnapshot{
			"SBIN-AXISBANK": {Side: models.DirectionLong, QtyY: 100, QtyX: 100},
		},
	}
	if err := e.Recover(context.Background(), state); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("alerts = %d, want 1 warning about unknown pair", sink.count())
	}
}

func TestRecoverShortPosition(t *testing.T) {
	brk := newScriptedBroker()
	// SHORT спред: брокер держит -Y и +X
	brk.positions = []broker.BrokerPosition{
		{Symbol: "HDFCBANK", Quantity: -100},
		{Symbol: "ICICIBANK", Quantity: 100},
	}
	e, _ := testEngine(t, brk, &recordingSink{})

	if err := e.Recover(context.Background(), savedState(models.DirectionShort)); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got := e.workers["HDFCBANK-ICICIBANK"].State(); got != models.StateHolding {
		t.Errorf("state = %s, want holding", got)
	}
}

func TestRecoverEmptyState(t *testing.T) {
	e, _ := testEngine(t, newScriptedBroker(), &recordingSink{})
	if err := e.Recover(context.Background(), EngineState{}); err != nil {
		t.Fatalf("Recover of empty state: %v", err)
	}
	if e.portfolio.OpenCount() != 0 {
		t.Error("empty state must restore nothing")
	}
}
