package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"statarb/internal/models"
)

const defaultTradeLimit = 100

// TradeStore - журнал исполненных сделок
type TradeStore interface {
	ListRecent(limit int) ([]*models.TradeRecord, error)
	ListBySymbol(symbol string, limit int) ([]*models.TradeRecord, error)
}

// TradeHandler отдаёт журнал сделок
//
// Endpoints:
// - GET /api/v1/trades                - последние сделки (?limit=N)
// - GET /api/v1/trades/{symbol}       - сделки одной бумаги
type TradeHandler struct {
	trades TradeStore
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(trades TradeStore) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// GetTrades возвращает последние сделки
// GET /api/v1/trades?limit=100
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	trades, err := h.trades.ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: trades})
}

// GetTradesBySymbol возвращает сделки одной бумаги
// GET /api/v1/trades/{symbol}
func (h *TradeHandler) GetTradesBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	limit := parseLimit(r)

	trades, err := h.trades.ListBySymbol(symbol, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: trades})
}

func parseLimit(r *http.Request) int {
	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}
