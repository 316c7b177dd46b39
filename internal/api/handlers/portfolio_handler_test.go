package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"statarb/internal/bot"
	"statarb/internal/models"
)

// ============ PortfolioHandler Tests ============

func TestPortfolioHandler_GetPortfolio(t *testing.T) {
	engine := &mockEngine{portfolio: bot.PortfolioView{
		Mode:          models.ModePaper,
		Capital:       1_000_000,
		OpenPositions: 2,
		DayPnl:        -1500.5,
		KillSwitch:    false,
	}}
	handler := NewPortfolioHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio", nil)
	w := httptest.NewRecorder()
	handler.GetPortfolio(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Data bot.PortfolioView `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Data.Capital != 1_000_000 || response.Data.OpenPositions != 2 {
		t.Errorf("unexpected portfolio: %+v", response.Data)
	}
	if response.Data.DayPnl != -1500.5 {
		t.Errorf("day pnl = %v, want -1500.5", response.Data.DayPnl)
	}
}

func TestPortfolioHandler_GetPositions(t *testing.T) {
	t.Run("returns only pairs with open positions", func(t *testing.T) {
		engine := &mockEngine{statuses: []bot.PairStatusView{
			{PairKey: "HDFCBANK-ICICIBANK", State: models.StateHolding,
				Position: &models.PositionSnapshot{Side: models.DirectionLong, QtyY: 550, QtyX: 700}},
			{PairKey: "SBIN-AXISBANK", State: models.StateReady},
		}}
		handler := NewPortfolioHandler(engine)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()
		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response struct {
			Data []PositionView `json:"data"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response.Data) != 1 {
			t.Fatalf("positions = %d, want 1", len(response.Data))
		}
		got := response.Data[0]
		if got.PairKey != "HDFCBANK-ICICIBANK" || got.State != models.StateHolding {
			t.Errorf("unexpected position: %+v", got)
		}
		if got.Position.Side != models.DirectionLong || got.Position.QtyY != 550 {
			t.Errorf("unexpected snapshot: %+v", got.Position)
		}
	})

	t.Run("empty engine yields empty list", func(t *testing.T) {
		handler := NewPortfolioHandler(&mockEngine{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
		w := httptest.NewRecorder()
		handler.GetPositions(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})
}
