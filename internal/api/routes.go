package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"statarb/internal/api/handlers"
	"statarb/internal/api/middleware"
	"statarb/internal/bot"
	"statarb/internal/repository"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Engine    *bot.Engine
	PairRepo  *repository.PairRepository
	TradeRepo *repository.TradeRepository

	// Bcrypt-хэш операторского токена, пустой = auth выключен
	APITokenHash string

	Logger *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /pairs/
//	│   ├── GET / - пары с runtime состоянием
//	│   ├── POST / - сохранить откалиброванную пару
//	│   ├── GET /{id} - пара по id
//	│   ├── DELETE /{id} - удалить пару
//	│   ├── POST /{key}/pause - остановить пару
//	│   ├── POST /{key}/resume - вернуть в торговлю
//	│   └── POST /{key}/reset - сброс из error
//	├── /positions - открытые позиции
//	├── /portfolio - капитал, дневной P&L, kill switch
//	└── /trades - журнал сделок
//
// /metrics - Prometheus
// /health  - liveness probe
//
// Middleware: Recovery -> Logging для всего, Auth только для /api/v1
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))

	pairHandler := handlers.NewPairHandler(deps.PairRepo, deps.Engine)
	portfolioHandler := handlers.NewPortfolioHandler(deps.Engine)
	tradeHandler := handlers.NewTradeHandler(deps.TradeRepo)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(deps.APITokenHash))

	// Pair routes
	api.HandleFunc("/pairs", pairHandler.GetPairs).Methods("GET")
	api.HandleFunc("/pairs", pairHandler.CreatePair).Methods("POST")
	api.HandleFunc("/pairs/{id:[0-9]+}", pairHandler.GetPair).Methods("GET")
	api.HandleFunc("/pairs/{id:[0-9]+}", pairHandler.DeletePair).Methods("DELETE")
	api.HandleFunc("/pairs/{key}/pause", pairHandler.PausePair).Methods("POST")
	api.HandleFunc("/pairs/{key}/resume", pairHandler.ResumePair).Methods("POST")
	api.HandleFunc("/pairs/{key}/reset", pairHandler.ResetPair).Methods("POST")

	// Portfolio routes
	api.HandleFunc("/portfolio", portfolioHandler.GetPortfolio).Methods("GET")
	api.HandleFunc("/positions", portfolioHandler.GetPositions).Methods("GET")

	// Trade journal routes
	api.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
	api.HandleFunc("/trades/{symbol}", tradeHandler.GetTradesBySymbol).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
