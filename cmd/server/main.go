package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"statarb/internal/alert"
	"statarb/internal/api"
	"statarb/internal/bot"
	"statarb/internal/broker"
	"statarb/internal/config"
	"statarb/internal/models"
	"statarb/internal/repository"
	"statarb/pkg/crypto"
	"statarb/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// .env опционален: в контейнере всё приходит окружением
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.String("mode", cfg.Broker.Mode),
		zap.Float64("capital", cfg.Trading.Capital))

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	pairRepo := repository.NewPairRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	// Шина оповещений. Операторский лог получает всё
	alerts := alert.NewBus(logger.Named("alert"))

	// Брокер: боевой Kite или локальный paper
	brk, err := buildBroker(cfg, alerts, logger)
	if err != nil {
		logger.Fatal("failed to init broker", zap.Error(err))
	}
	logger.Info("broker ready", zap.String("broker", brk.Name()))

	// Торговые компоненты
	signals, err := bot.NewSignalGenerator(bot.Thresholds{
		Entry: cfg.Trading.EntryThreshold,
		Exit:  cfg.Trading.ExitThreshold,
		Stop:  cfg.Trading.StopThreshold,
	})
	if err != nil {
		logger.Fatal("invalid thresholds", zap.Error(err))
	}

	executor := bot.NewExecutionEngine(brk, alerts, cfg.Trading.LimitBufferPct, cfg.Trading.TickSize, logger.Named("executor"))
	portfolio := bot.NewPortfolioManager(
		cfg.Trading.Capital,
		cfg.Trading.MaxOpenPositions,
		cfg.Trading.MaxDailyLoss,
		cfg.Trading.SquareOffAt,
		alerts,
		logger.Named("portfolio"),
	)
	stateMgr := bot.NewStateManager(cfg.Trading.StateFile, alerts, logger.Named("state"))

	engine := bot.NewEngine(bot.EngineDeps{
		Mode:           cfg.Broker.Mode,
		Broker:         brk,
		Executor:       executor,
		Portfolio:      portfolio,
		Sizer:          bot.NewPositionSizer(cfg.Trading.Capital),
		Validator:      bot.NewRiskValidator(cfg.Trading.EntryThreshold, cfg.Trading.StopThreshold),
		Signals:        signals,
		StateManager:   stateMgr,
		Journal:        tradeRepo,
		Alerts:         alerts,
		Logger:         logger.Named("engine"),
		OrderTimeout:   cfg.Broker.OrderTimeout,
		StopTriggerPct: cfg.Trading.StopTriggerPct,
	})

	// Откалиброванные пары: база плюс необязательный файл
	pairs, err := pairRepo.GetAll()
	if err != nil {
		logger.Fatal("failed to load pairs", zap.Error(err))
	}
	if cfg.Trading.PairsFile != "" {
		filePairs, err := config.LoadPairs(cfg.Trading.PairsFile)
		if err != nil {
			logger.Fatal("failed to load pairs file", zap.Error(err))
		}
		for i := range filePairs {
			pairs = append(pairs, &filePairs[i])
		}
		logger.Info("pairs file loaded",
			zap.String("file", cfg.Trading.PairsFile),
			zap.Int("count", len(filePairs)))
	}

	// Перекалибровка по дневной истории брокера перед торговлей
	if cfg.Trading.RecalibrateOnStart {
		recalibratePairs(pairs, brk, pairRepo, cfg.Trading.CalibrationDays, logger)
	}

	symbols := make(map[uint32]string)
	tokens := make([]uint32, 0, len(pairs)*2)
	for _, p := range pairs {
		if err := engine.AddPair(*p); err != nil {
			logger.Error("skipping pair", zap.String("pair", p.PairKey()), zap.Error(err))
			continue
		}
		symbols[p.TokenY] = p.LegY
		symbols[p.TokenX] = p.LegX
		tokens = append(tokens, p.TokenY, p.TokenX)
	}
	logger.Info("pairs registered", zap.Int("count", len(pairs)))

	// Восстановление позиций после рестарта
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	state, err := stateMgr.Load()
	if err != nil {
		logger.Fatal("failed to load state", zap.Error(err))
	}
	if err := engine.Recover(startupCtx, state); err != nil {
		logger.Fatal("position recovery failed", zap.Error(err))
	}
	startupCancel()

	// Поток данных: тики -> бары
	feed := bot.NewFeedAggregator(cfg.Trading.BarInterval, symbols, 256, logger.Named("feed"))

	paper, _ := brk.(*broker.PaperBroker)
	tickerCfg := broker.DefaultTickerConfig(cfg.Broker.WSURL)
	tickerCfg.InitialDelay = cfg.Broker.WSReconnectDelay
	tickerCfg.MaxDelay = cfg.Broker.WSMaxBackoff
	tickerCfg.TickWatchdog = cfg.Broker.TickWatchdog

	ticker := broker.NewTicker(tickerCfg, logger.Named("ticker"))
	ticker.OnStateChange(func(s broker.TickerState) {
		if s == broker.TickerConnected {
			bot.TickerConnected.Set(1)
		} else {
			bot.TickerConnected.Set(0)
		}
	})
	ticker.OnTick(func(t models.Tick) {
		bot.TicksProcessed.Inc()
		if paper != nil {
			if symbol, ok := symbols[t.Token]; ok {
				paper.SetPrice(symbol, t.LastPrice)
			}
		}
		feed.OnTick(t)
	})
	if err := ticker.Subscribe(tokens); err != nil {
		logger.Fatal("ticker subscribe failed", zap.Error(err))
	}
	if err := ticker.Connect(); err != nil {
		logger.Fatal("ticker connect failed", zap.Error(err))
	}

	// Движок
	engineCtx, engineCancel := context.WithCancel(context.Background())
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(engineCtx, feed.Bars()); err != nil && err != context.Canceled {
			logger.Error("engine stopped with error", zap.Error(err))
		}
	}()

	// HTTP API
	router := api.SetupRoutes(&api.Dependencies{
		Engine:       engine,
		PairRepo:     pairRepo,
		TradeRepo:    tradeRepo,
		APITokenHash: cfg.Server.APITokenHash,
		Logger:       logger.Named("http"),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown: сначала рынок, потом движок, потом HTTP
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Порядок: тикер замолкает, фид доливает недостроенные бары и
	// закрывает канал, движок дорабатывает буфер и выходит сам.
	// Отмена контекста только как аварийный таймаут.
	if err := ticker.Close(); err != nil {
		logger.Error("ticker close failed", zap.Error(err))
	}
	feed.Close()

	select {
	case <-engineDone:
	case <-time.After(60 * time.Second):
		logger.Error("engine did not drain in time, cancelling")
		engineCancel()
		select {
		case <-engineDone:
		case <-time.After(10 * time.Second):
			logger.Error("engine did not stop")
		}
	}
	engineCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}

	logger.Info("bye")
}

// recalibratePairs перекалибрует пары по дневной истории брокера.
// Свежие параметры попадают в конфиг пары до регистрации в движке;
// пары из базы дополнительно персистятся. Ошибка калибровки пару
// не останавливает: торгуется последняя сохранённая калибровка.
func recalibratePairs(pairs []*models.PairConfig, brk broker.Broker, repo *repository.PairRepository, days int, logger *zap.Logger) {
	analyzer := bot.NewPairAnalyzer(logger.Named("analyzer"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, p := range pairs {
		analysis, err := analyzer.CalibrateFromBroker(ctx, brk, *p, days)
		if err != nil {
			logger.Warn("startup recalibration failed, keeping stored calibration",
				zap.String("pair", p.PairKey()), zap.Error(err))
			continue
		}

		p.Beta = analysis.Beta
		p.Intercept = analysis.Intercept
		p.Sigma = analysis.ResidualStd
		p.ADFValue = analysis.ADFValue
		p.Quality = analysis.Quality

		// Пары из файла живут без ID: их калибровка остаётся в памяти
		if p.ID > 0 {
			if err := repo.UpdateCalibration(p.ID, p.Beta, p.Intercept, p.Sigma, p.ADFValue, p.Quality); err != nil {
				logger.Error("failed to persist calibration",
					zap.String("pair", p.PairKey()), zap.Error(err))
			}
		}
	}
}

// buildBroker выбирает реализацию брокера по режиму
func buildBroker(cfg *config.Config, alerts alert.Sink, logger *zap.Logger) (broker.Broker, error) {
	switch cfg.Broker.Mode {
	case models.ModeLive:
		token := cfg.Broker.AccessToken
		// Токен хранится зашифрованным, если задан ключ
		if cfg.Broker.EncryptionKey != "" {
			plain, err := crypto.Decrypt(token, []byte(cfg.Broker.EncryptionKey))
			if err != nil {
				return nil, fmt.Errorf("decrypt access token: %w", err)
			}
			token = plain
		}
		return broker.NewKiteBroker(cfg.Broker.APIKey, token, cfg.Broker.OrderTimeout, alerts, logger.Named("kite")), nil

	case models.ModePaper:
		return broker.NewPaperBroker(cfg.Trading.Capital, logger.Named("paper")), nil

	default:
		return nil, fmt.Errorf("unknown broker mode: %s", cfg.Broker.Mode)
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Пул соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
