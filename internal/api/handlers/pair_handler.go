package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"statarb/internal/bot"
	"statarb/internal/models"
	"statarb/internal/repository"
)

// PairStore - хранилище конфигураций пар
type PairStore interface {
	Create(pair *models.PairConfig) error
	GetByID(id int) (*models.PairConfig, error)
	Delete(id int) error
}

// EngineControl - runtime управление парами в движке
type EngineControl interface {
	PairStatuses() []bot.PairStatusView
	PausePair(key string) error
	ResumePair(key string) error
	ResetPair(key string) error
	Portfolio() bot.PortfolioView
}

// PairHandler отвечает за управление торговыми парами
//
// Endpoints:
// - GET /api/v1/pairs                 - список пар с runtime состоянием
// - POST /api/v1/pairs                - добавление откалиброванной пары
// - GET /api/v1/pairs/{id}            - получение пары
// - DELETE /api/v1/pairs/{id}         - удаление пары
// - POST /api/v1/pairs/{key}/pause    - остановка пары
// - POST /api/v1/pairs/{key}/resume   - возврат пары в торговлю
// - POST /api/v1/pairs/{key}/reset    - ручной сброс из error
type PairHandler struct {
	pairs  PairStore
	engine EngineControl
}

// NewPairHandler создает новый PairHandler
func NewPairHandler(pairs PairStore, engine EngineControl) *PairHandler {
	return &PairHandler{pairs: pairs, engine: engine}
}

// CreatePairRequest структура запроса на создание пары.
// Параметры регрессии приходят из оффлайн калибровки.
type CreatePairRequest struct {
	LegY      string  `json:"leg_y"`
	LegX      string  `json:"leg_x"`
	Sector    string  `json:"sector"`
	Beta      float64 `json:"beta"`
	Intercept float64 `json:"intercept"`
	Sigma     float64 `json:"sigma"`
	ADFValue  float64 `json:"adf_value"`
	Quality   string  `json:"quality"`
	LotSizeY  int     `json:"lot_size_y"`
	LotSizeX  int     `json:"lot_size_x"`
	TokenY    uint32  `json:"token_y"`
	TokenX    uint32  `json:"token_x"`
}

// GetPairs возвращает пары с их runtime состоянием
// GET /api/v1/pairs
func (h *PairHandler) GetPairs(w http.ResponseWriter, r *http.Request) {
	views := h.engine.PairStatuses()
	writeJSON(w, http.StatusOK, SuccessResponse{Data: views})
}

// CreatePair сохраняет новую откалиброванную пару.
// Пара попадёт в движок после рестарта: состав воркеров фиксируется на старте.
// POST /api/v1/pairs
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var req CreatePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.LegY == "" || req.LegX == "" || req.LegY == req.LegX {
		writeError(w, http.StatusBadRequest, "leg_y and leg_x must be distinct symbols", "")
		return
	}
	if req.Beta == 0 || req.Sigma <= 0 {
		writeError(w, http.StatusBadRequest, "beta and sigma are required", "")
		return
	}
	if req.LotSizeY <= 0 || req.LotSizeX <= 0 {
		writeError(w, http.StatusBadRequest, "lot sizes must be positive", "")
		return
	}

	pair := &models.PairConfig{
		LegY:      req.LegY,
		LegX:      req.LegX,
		Sector:    req.Sector,
		Beta:      req.Beta,
		Intercept: req.Intercept,
		Sigma:     req.Sigma,
		ADFValue:  req.ADFValue,
		Quality:   req.Quality,
		LotSizeY:  req.LotSizeY,
		LotSizeX:  req.LotSizeX,
		TokenY:    req.TokenY,
		TokenX:    req.TokenX,
	}

	if err := h.pairs.Create(pair); err != nil {
		if errors.Is(err, repository.ErrPairExists) {
			writeError(w, http.StatusConflict, "pair already exists", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create pair", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{Message: "pair created", Data: pair})
}

// GetPair возвращает пару по ID
// GET /api/v1/pairs/{id}
func (h *PairHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pair id", "")
		return
	}

	pair, err := h.pairs.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			writeError(w, http.StatusNotFound, "pair not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load pair", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: pair})
}

// DeletePair удаляет пару из базы
// DELETE /api/v1/pairs/{id}
func (h *PairHandler) DeletePair(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pair id", "")
		return
	}

	if err := h.pairs.Delete(id); err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			writeError(w, http.StatusNotFound, "pair not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete pair", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "pair deleted"})
}

// PausePair останавливает торговлю парой
// POST /api/v1/pairs/{key}/pause
func (h *PairHandler) PausePair(w http.ResponseWriter, r *http.Request) {
	h.runtimeAction(w, r, h.engine.PausePair, "pair paused")
}

// ResumePair возвращает пару в торговлю
// POST /api/v1/pairs/{key}/resume
func (h *PairHandler) ResumePair(w http.ResponseWriter, r *http.Request) {
	h.runtimeAction(w, r, h.engine.ResumePair, "pair resumed")
}

// ResetPair - ручной сброс пары из состояния error
// POST /api/v1/pairs/{key}/reset
func (h *PairHandler) ResetPair(w http.ResponseWriter, r *http.Request) {
	h.runtimeAction(w, r, h.engine.ResetPair, "pair reset to paused")
}

func (h *PairHandler) runtimeAction(w http.ResponseWriter, r *http.Request, action func(string) error, message string) {
	key := mux.Vars(r)["key"]
	if err := action(key); err != nil {
		if errors.Is(err, bot.ErrPairUnknown) {
			writeError(w, http.StatusNotFound, "pair not registered in engine", "")
			return
		}
		writeError(w, http.StatusConflict, "action rejected", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Message: message})
}
