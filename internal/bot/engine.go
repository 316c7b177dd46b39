package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"statarb/internal/alert"
	"statarb/internal/broker"
	"statarb/internal/models"
)

// Размер буфера событий воркера пары
const pairEventBuffer = 64

// Период проверки принудительного закрытия
const squareOffCheckInterval = 30 * time.Second

// TradeJournal - журнал исполненных сделок (append-only)
type TradeJournal interface {
	Record(ctx context.Context, trade models.TradeRecord) error
}

// pairEvent - событие для воркера пары: свежие цены обеих ног
type pairEvent struct {
	priceY, priceX float64
	at             time.Time
	squareOff      bool // принудительное закрытие в конце сессии
}

// pairWorker - runtime одной пары. Все поля, кроме events,
// принадлежат горутине воркера: блокировок внутри нет.
type pairWorker struct {
	cfg      models.PairConfig
	tracker  *PositionTracker
	guardian *Guardian
	events   chan pairEvent

	// Защитные SL-M на брокере для открытой позиции: снимаются при выходе
	stopOrders []string

	// RED уже объявлен оператору для текущей полосы деградации
	redAlerted bool

	// Состояние пишет только воркер, но читают метрики и API:
	// хранится атомарно
	state atomic.Value // string
}

func (w *pairWorker) State() string {
	return w.state.Load().(string)
}

func (w *pairWorker) setState(s string) {
	w.state.Store(s)
}

// Engine - торговый движок. Маршрутизирует бары в воркеры пар,
// по одному воркеру на пару: события пары обрабатываются строго
// последовательно, конкуренции за позицию нет.
//
// Поток данных:
// Ticker -> FeedAggregator -> Engine.Run (роутер) -> pairWorker -> ExecutionEngine
type Engine struct {
	mode string // paper или live

	broker    broker.Broker
	executor  *ExecutionEngine
	portfolio *PortfolioManager
	sizer     *PositionSizer
	validator *RiskValidator
	signals   *SignalGenerator
	stateMgr  *StateManager
	journal   TradeJournal // может быть nil
	alerts    alert.Sink
	log       *zap.Logger

	guardianLookback int
	stopTriggerPct   float64

	// Заполняется через AddPair до Run, дальше только чтение
	workers  map[string]*pairWorker   // pair_key -> воркер
	bySymbol map[string][]*pairWorker // символ ноги -> воркеры

	// Снапшоты открытых позиций для файла состояния.
	// Воркеры пишут каждый свой ключ, отсюда мьютекс.
	stateMu   sync.Mutex
	snapshots map[string]models.PositionSnapshot

	orderTimeout time.Duration
	wg           sync.WaitGroup
}

// EngineDeps - зависимости движка
type EngineDeps struct {
	Mode             string
	Broker           broker.Broker
	Executor         *ExecutionEngine
	Portfolio        *PortfolioManager
	Sizer            *PositionSizer
	Validator        *RiskValidator
	Signals          *SignalGenerator
	StateManager     *StateManager
	Journal          TradeJournal
	Alerts           alert.Sink
	Logger           *zap.Logger
	GuardianLookback int
	OrderTimeout     time.Duration
	StopTriggerPct   float64
}

func NewEngine(deps EngineDeps) *Engine {
	lookback := deps.GuardianLookback
	if lookback <= 0 {
		lookback = 60
	}
	timeout := deps.OrderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stopPct := deps.StopTriggerPct
	if stopPct <= 0 {
		stopPct = 2.0
	}
	return &Engine{
		mode:             deps.Mode,
		broker:           deps.Broker,
		executor:         deps.Executor,
		portfolio:        deps.Portfolio,
		sizer:            deps.Sizer,
		validator:        deps.Validator,
		signals:          deps.Signals,
		stateMgr:         deps.StateManager,
		journal:          deps.Journal,
		alerts:           deps.Alerts,
		log:              deps.Logger,
		guardianLookback: lookback,
		stopTriggerPct:   stopPct,
		workers:          make(map[string]*pairWorker),
		bySymbol:         make(map[string][]*pairWorker),
		snapshots:        make(map[string]models.PositionSnapshot),
		orderTimeout:     timeout,
	}
}

// AddPair регистрирует откалиброванную пару. Вызывать до Run.
func (e *Engine) AddPair(cfg models.PairConfig) error {
	key := cfg.PairKey()
	if _, exists := e.workers[key]; exists {
		return errors.New("pair already registered: " + key)
	}

	analysis := models.PairAnalysis{
		StockY:      cfg.LegY,
		StockX:      cfg.LegX,
		Sector:      cfg.Sector,
		Beta:        cfg.Beta,
		Intercept:   cfg.Intercept,
		ResidualStd: cfg.Sigma,
		ADFValue:    cfg.ADFValue,
		Quality:     cfg.Quality,
	}

	g := NewGuardian(e.guardianLookback)
	g.Calibrate(cfg.Beta)

	state := models.StatePaused
	if cfg.Status == models.PairStatusActive {
		state = models.StateReady
	}

	w := &pairWorker{
		cfg:      cfg,
		tracker:  NewPositionTracker(analysis, e.signals),
		guardian: g,
		events:   make(chan pairEvent, pairEventBuffer),
	}
	w.setState(state)
	e.workers[key] = w
	e.bySymbol[cfg.LegY] = append(e.bySymbol[cfg.LegY], w)
	e.bySymbol[cfg.LegX] = append(e.bySymbol[cfg.LegX], w)

	e.log.Info("pair registered",
		zap.String("pair", key),
		zap.Float64("beta", cfg.Beta),
		zap.Float64("sigma", cfg.Sigma),
		zap.String("state", state))
	return nil
}

// Symbols возвращает все символы зарегистрированных пар
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.bySymbol))
	for s := range e.bySymbol {
		out = append(out, s)
	}
	return out
}

// Run маршрутизирует бары в воркеры до отмены контекста.
// На выходе дожидается воркеров и в полёте находящихся ордеров,
// затем сохраняет состояние.
func (e *Engine) Run(ctx context.Context, bars <-chan models.Bar) error {
	for _, w := range e.workers {
		e.wg.Add(1)
		go e.runWorker(w)
	}

	lastClose := make(map[string]float64)
	squareOffTicker := time.NewTicker(squareOffCheckInterval)
	defer squareOffTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()

		case bar, ok := <-bars:
			if !ok {
				e.shutdown()
				return nil
			}
			BarsEmitted.WithLabelValues(bar.Symbol).Inc()
			lastClose[bar.Symbol] = bar.Close
			e.routeBar(bar, lastClose)

		case now := <-squareOffTicker.C:
			if e.portfolio.ShouldSquareOff(now) {
				e.broadcastSquareOff(lastClose, now)
			}
		}
	}
}

// routeBar отправляет событие каждому воркеру, у которого бар
// закрывает ногу и вторая нога уже имеет цену
func (e *Engine) routeBar(bar models.Bar, lastClose map[string]float64) {
	for _, w := range e.bySymbol[bar.Symbol] {
		y, okY := lastClose[w.cfg.LegY]
		x, okX := lastClose[w.cfg.LegX]
		if !okY || !okX {
			continue
		}
		e.send(w, pairEvent{priceY: y, priceX: x, at: bar.End})
	}
}

// broadcastSquareOff рассылает команду принудительного закрытия
func (e *Engine) broadcastSquareOff(lastClose map[string]float64, now time.Time) {
	for _, w := range e.workers {
		y, okY := lastClose[w.cfg.LegY]
		x, okX := lastClose[w.cfg.LegX]
		if !okY || !okX {
			continue
		}
		e.send(w, pairEvent{priceY: y, priceX: x, at: now, squareOff: true})
	}
}

func (e *Engine) send(w *pairWorker, ev pairEvent) {
	select {
	case w.events <- ev:
	default:
		// Воркер завален: пара пропускает бар, роутер не блокируется
		RecordBufferOverflow("pair_events")
		e.log.Warn("pair worker backlog, event dropped", zap.String("pair", w.cfg.PairKey()))
	}
}

// shutdown закрывает каналы воркеров и ждёт завершения
func (e *Engine) shutdown() {
	for _, w := range e.workers {
		close(w.events)
	}
	e.wg.Wait()
	if err := e.saveState(); err != nil {
		e.log.Error("failed to save state on shutdown", zap.Error(err))
	}
	e.log.Info("engine stopped")
}

// runWorker - цикл воркера пары, события строго по порядку
func (e *Engine) runWorker(w *pairWorker) {
	defer e.wg.Done()
	for ev := range w.events {
		e.handlePairEvent(w, ev)
	}
}

// handlePairEvent - один шаг торговой логики пары
func (e *Engine) handlePairEvent(w *pairWorker, ev pairEvent) {
	started := time.Now()
	key := w.cfg.PairKey()

	// Страж видит все цены, даже когда пара выключена:
	// окно должно быть тёплым к моменту включения
	w.guardian.UpdateData(ev.priceY, ev.priceX)

	if !IsActive(w.State()) {
		return
	}

	diag := w.guardian.Diagnose()
	RecordGuardianHealth(key, diag.Status)

	if diag.Status == models.HealthRed {
		e.handleRedHealth(w, ev, diag)
		if w.guardian.NeedsRecalibration() {
			e.recalibratePair(w)
		}
		return
	}
	w.redAlerted = false

	switch w.State() {
	case models.StateHolding:
		sig, err := w.tracker.Update(ev.priceY, ev.priceX, ev.at)
		if err != nil {
			e.log.Error("tracker update failed", zap.String("pair", key), zap.Error(err))
			return
		}
		PairZScore.WithLabelValues(key).Set(sig.ZScore)
		RecordSignal(key, sig.Action)

		if ev.squareOff {
			e.exitPosition(w, ev, ReasonSquareOff)
			return
		}
		if sig.Action == ActionExit {
			e.exitPosition(w, ev, sig.Reason)
		}

	case models.StateReady:
		if ev.squareOff {
			return
		}
		fresh := UpdateZScore(w.tracker.Pair(), ev.priceY, ev.priceX)
		w.tracker.Recalibrate(fresh)
		PairZScore.WithLabelValues(key).Set(fresh.ZScore)

		sig := e.signals.Evaluate(fresh.ZScore, models.DirectionNone)
		RecordSignal(key, sig.Action)
		if sig.Action == ActionEnter {
			e.enterPosition(w, ev, sig)
		}
	}

	BarToSignalLatency.WithLabelValues(key).
		Observe(float64(time.Since(started).Microseconds()) / 1000)
}

// handleRedHealth - коинтеграция сломана: открытая позиция закрывается
// немедленно, новые входы блокируются, пока страж не позеленеет или
// не перекалибрует пару
func (e *Engine) handleRedHealth(w *pairWorker, ev pairEvent, diag Diagnosis) {
	key := w.cfg.PairKey()
	if !w.redAlerted {
		w.redAlerted = true
		e.alerts.Publish(models.AlertWarning, "guardian", "pair health RED: "+diag.Reason,
			map[string]interface{}{"pair": key})
	}

	if w.State() == models.StateHolding {
		e.exitPosition(w, ev, ReasonStopLoss)
	}
}

// recalibratePair перекалибрует пару по текущему окну стража после
// затяжной деградации. Свежие бета/интерсепт/сигма попадают и в базу
// стража, и в трекер: торговля продолжается уже на новой связи.
// Позиция к этому моменту закрыта красной веткой.
func (e *Engine) recalibratePair(w *pairWorker) {
	key := w.cfg.PairKey()

	switch w.State() {
	case models.StateReady, models.StatePaused:
	default:
		// Позиция ещё жива или пара в ошибке: калибровку не трогаем
		return
	}

	reg, err := w.guardian.RefitCurrent()
	if err != nil {
		if next, terr := Transition(w.State(), models.StatePaused); terr == nil {
			w.setState(next)
			e.updatePairStateMetric()
		}
		e.alerts.Publish(models.AlertCritical, "guardian",
			"auto-recalibration failed, pair paused",
			map[string]interface{}{"pair": key, "error": err.Error()})
		return
	}

	fresh := w.tracker.Pair()
	fresh.Beta = reg.Beta
	fresh.Intercept = reg.Intercept
	fresh.ResidualStd = reg.ResidualStd
	w.tracker.Recalibrate(fresh)
	w.redAlerted = false

	e.alerts.Publish(models.AlertWarning, "guardian",
		"pair auto-recalibrated after persistent degradation",
		map[string]interface{}{
			"pair": key, "beta": reg.Beta,
			"intercept": reg.Intercept, "sigma": reg.ResidualStd,
		})
}

// enterPosition - вход: сайзинг, риск-валидация, исполнение обеих ног
func (e *Engine) enterPosition(w *pairWorker, ev pairEvent, sig Signal) {
	key := w.cfg.PairKey()

	if err := e.portfolio.CanEnter(key, ev.at); err != nil {
		e.log.Debug("entry blocked", zap.String("pair", key), zap.Error(err))
		return
	}

	pair := w.tracker.Pair()
	sizing, err := e.sizer.CalculateOptimalLots(pair.Beta, ev.priceY, ev.priceX, w.cfg.LotSizeY, w.cfg.LotSizeX)
	if err != nil {
		e.log.Info("entry skipped, sizing failed", zap.String("pair", key), zap.Error(err))
		return
	}

	assessment := e.validator.Validate(pair, sizing, ev.priceY, ev.priceX)
	if !assessment.Tradable {
		e.log.Info("entry rejected by risk validator",
			zap.String("pair", key),
			zap.Int("score", assessment.TotalScore),
			zap.Strings("warnings", assessment.Warnings))
		return
	}

	var next string
	next, err = Transition(w.State(), models.StateEntering)
	if err != nil {
		return
	}
	w.setState(next)
	e.updatePairStateMetric()

	legY, legX := entryLegs(sig.Direction, w.cfg, sizing, ev)

	ctx, cancel := context.WithTimeout(context.Background(), e.orderTimeout)
	defer cancel()

	execStart := time.Now()
	exec, err := e.executor.ExecutePair(ctx, legY, legX)
	OrderExecutionLatency.WithLabelValues(e.broker.Name(), "enter").
		Observe(float64(time.Since(execStart).Milliseconds()))

	if err != nil {
		if errors.Is(err, ErrUnhedged) {
			w.setState(models.StateError)
		} else {
			// Вход не состоялся, откат прошёл чисто: пара снова готова
			w.setState(models.StateReady)
		}
		e.updatePairStateMetric()
		e.log.Error("entry failed", zap.String("pair", key), zap.Error(err))
		return
	}

	if err := w.tracker.Open(ev.priceY, ev.priceX, sig.Direction,
		sizing.LotsY, sizing.LotsX, w.cfg.LotSizeY, w.cfg.LotSizeX, ev.at); err != nil {
		e.log.Error("tracker open failed", zap.String("pair", key), zap.Error(err))
	}
	e.portfolio.Opened(key)
	OpenPositions.Set(float64(e.portfolio.OpenCount()))
	w.setState(models.StateHolding)
	e.updatePairStateMetric()

	e.placeProtectiveStops(ctx, w, exec, legY, legX, ev)

	if snap, ok := w.tracker.Snapshot(); ok {
		e.updateSnapshot(key, &snap)
	}
	e.journalLegs(legY, legX, ev.at)

	e.alerts.Publish(models.AlertInfo, "engine", "position opened",
		map[string]interface{}{
			"pair": key, "direction": sig.Direction, "z": sig.ZScore,
			"lots_y": sizing.LotsY, "lots_x": sizing.LotsX,
		})
}

// placeProtectiveStops ставит катастрофные SL-M на обе ноги сразу
// после входа. Ошибка стопа позицию не отменяет: основной стоп по
// z-score продолжает работать, оператор получает WARNING.
func (e *Engine) placeProtectiveStops(ctx context.Context, w *pairWorker, exec *PairExecution, legY, legX Leg, ev pairEvent) {
	key := w.cfg.PairKey()
	w.stopOrders = w.stopOrders[:0]

	for _, s := range []struct {
		leg   Leg
		order *broker.Order
		ltp   float64
	}{
		{legY, exec.OrderY, ev.priceY},
		{legX, exec.OrderX, ev.priceX},
	} {
		fill := s.ltp
		if s.order != nil && s.order.AvgFillPrice > 0 {
			fill = s.order.AvgFillPrice
		}
		stop, err := e.executor.PlaceProtectiveStop(ctx, s.leg, fill, e.stopTriggerPct, exec.Tag)
		if err != nil {
			e.alerts.Publish(models.AlertWarning, "engine",
				"protective stop placement failed",
				map[string]interface{}{"pair": key, "symbol": s.leg.Symbol, "error": err.Error()})
			continue
		}
		w.stopOrders = append(w.stopOrders, stop.ID)
	}
}

// cancelProtectiveStops снимает SL-M ноги перед плановым выходом,
// чтобы стоп не сработал после закрытия позиции
func (e *Engine) cancelProtectiveStops(ctx context.Context, w *pairWorker) {
	key := w.cfg.PairKey()
	for _, id := range w.stopOrders {
		if err := e.broker.CancelOrder(ctx, id); err != nil {
			e.alerts.Publish(models.AlertWarning, "engine",
				"protective stop cancel failed",
				map[string]interface{}{"pair": key, "order_id": id, "error": err.Error()})
		}
	}
	w.stopOrders = w.stopOrders[:0]
}

// exitPosition - выход: исполнение обратных ног, фиксация результата
func (e *Engine) exitPosition(w *pairWorker, ev pairEvent, reason string) {
	key := w.cfg.PairKey()

	next, err := Transition(w.State(), models.StateExiting)
	if err != nil {
		return
	}
	w.setState(next)
	e.updatePairStateMetric()

	pos := w.tracker.Position()
	legY, legX := exitLegs(pos, w.cfg, ev)

	ctx, cancel := context.WithTimeout(context.Background(), e.orderTimeout)
	defer cancel()

	// Сначала снять SL-M: сработавший после выхода стоп открыл бы
	// новую голую позицию
	e.cancelProtectiveStops(ctx, w)

	execStart := time.Now()
	_, err = e.executor.ExecutePair(ctx, legY, legX)
	OrderExecutionLatency.WithLabelValues(e.broker.Name(), "exit").
		Observe(float64(time.Since(execStart).Milliseconds()))

	if err != nil {
		if errors.Is(err, ErrUnhedged) {
			w.setState(models.StateError)
		} else {
			// Выход не прошёл целиком, позиция жива: попробуем на следующем баре
			w.setState(models.StateHolding)
		}
		e.updatePairStateMetric()
		e.log.Error("exit failed", zap.String("pair", key), zap.Error(err))
		return
	}

	summary, err := w.tracker.Close(reason, ev.at)
	if err != nil {
		e.log.Error("tracker close failed", zap.String("pair", key), zap.Error(err))
		return
	}

	e.portfolio.Closed(key, summary.TotalPnl, ev.at)
	OpenPositions.Set(float64(e.portfolio.OpenCount()))
	DayPnl.Set(e.portfolio.DayPnl())
	RecordTrade(key, reason, summary.TotalPnl)

	target := models.StateReady
	if reason == ReasonSquareOff {
		// После принудительного закрытия пара стоит до следующей сессии
		target = models.StatePaused
	}
	if next, terr := Transition(w.State(), target); terr == nil {
		w.setState(next)
	}
	e.updatePairStateMetric()

	e.updateSnapshot(key, nil)
	e.journalLegs(legY, legX, ev.at)

	e.alerts.Publish(models.AlertInfo, "engine", "position closed",
		map[string]interface{}{
			"pair": key, "reason": reason,
			"pnl": summary.TotalPnl, "entry_z": summary.EntryZ, "exit_z": summary.ExitZ,
		})
}

// entryLegs строит ноги входа.
// LONG spread: купить Y, продать X. SHORT spread: наоборот.
func entryLegs(direction string, cfg models.PairConfig, sizing *models.PositionSizing, ev pairEvent) (Leg, Leg) {
	sideY, sideX := broker.SideBuy, broker.SideSell
	if direction == models.DirectionShort {
		sideY, sideX = broker.SideSell, broker.SideBuy
	}
	legY := Leg{Symbol: cfg.LegY, Side: sideY, Quantity: sizing.SharesY, LTP: ev.priceY}
	legX := Leg{Symbol: cfg.LegX, Side: sideX, Quantity: sizing.SharesX, LTP: ev.priceX}
	return legY, legX
}

// exitLegs строит ноги выхода, обратные позиции
func exitLegs(pos models.Position, cfg models.PairConfig, ev pairEvent) (Leg, Leg) {
	sideY, sideX := broker.SideSell, broker.SideBuy
	if pos.Type == models.DirectionShort {
		sideY, sideX = broker.SideBuy, broker.SideSell
	}
	legY := Leg{Symbol: cfg.LegY, Side: sideY, Quantity: pos.QtyY, LTP: ev.priceY}
	legX := Leg{Symbol: cfg.LegX, Side: sideX, Quantity: pos.QtyX, LTP: ev.priceX}
	return legY, legX
}

// journalLegs пишет обе ноги в журнал сделок
func (e *Engine) journalLegs(legY, legX Leg, at time.Time) {
	if e.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, leg := range []Leg{legY, legX} {
		rec := models.TradeRecord{
			Timestamp: at,
			Symbol:    leg.Symbol,
			Side:      leg.Side,
			Quantity:  leg.Quantity,
			Price:     leg.LTP,
			Strategy:  "pairs",
			Mode:      e.mode,
		}
		if err := e.journal.Record(ctx, rec); err != nil {
			e.log.Error("trade journal write failed",
				zap.String("symbol", leg.Symbol), zap.Error(err))
		}
	}
}

// updateSnapshot обновляет снапшот пары и сохраняет состояние.
// snap == nil означает закрытие позиции.
func (e *Engine) updateSnapshot(key string, snap *models.PositionSnapshot) {
	e.stateMu.Lock()
	if snap == nil {
		delete(e.snapshots, key)
	} else {
		e.snapshots[key] = *snap
	}
	e.stateMu.Unlock()

	if err := e.saveState(); err != nil {
		e.log.Error("state save failed", zap.Error(err))
	}
}

func (e *Engine) saveState() error {
	e.stateMu.Lock()
	trades := make(map[string]models.PositionSnapshot, len(e.snapshots))
	for k, v := range e.snapshots {
		trades[k] = v
	}
	e.stateMu.Unlock()
	return e.stateMgr.Save(EngineState{ActiveTrades: trades})
}

// updatePairStateMetric пересчитывает gauge пар по состояниям
func (e *Engine) updatePairStateMetric() {
	counts := make(map[string]int)
	for _, w := range e.workers {
		counts[w.State()]++
	}
	for _, s := range []string{models.StatePaused, models.StateReady, models.StateEntering,
		models.StateHolding, models.StateExiting, models.StateError} {
		PairsByState.WithLabelValues(s).Set(float64(counts[s]))
	}
}
