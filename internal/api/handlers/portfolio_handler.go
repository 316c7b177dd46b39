package handlers

import (
	"net/http"

	"statarb/internal/models"
)

// PortfolioHandler отдаёт сводку портфеля и открытые позиции
//
// Endpoints:
// - GET /api/v1/portfolio  - капитал, дневной P&L, kill switch
// - GET /api/v1/positions  - открытые парные позиции
type PortfolioHandler struct {
	engine EngineControl
}

// NewPortfolioHandler создает новый PortfolioHandler
func NewPortfolioHandler(engine EngineControl) *PortfolioHandler {
	return &PortfolioHandler{engine: engine}
}

// GetPortfolio возвращает сводку портфеля
// GET /api/v1/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SuccessResponse{Data: h.engine.Portfolio()})
}

// PositionView - открытая позиция пары для API
type PositionView struct {
	PairKey  string                  `json:"pair"`
	State    string                  `json:"state"`
	Position models.PositionSnapshot `json:"position"`
}

// GetPositions возвращает открытые позиции
// GET /api/v1/positions
func (h *PortfolioHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	var positions []PositionView
	for _, v := range h.engine.PairStatuses() {
		if v.Position == nil {
			continue
		}
		positions = append(positions, PositionView{
			PairKey:  v.PairKey,
			State:    v.State,
			Position: *v.Position,
		})
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Data: positions})
}
