package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"statarb/internal/models"
)

// TickerConfig конфигурация подключения к потоку котировок
type TickerConfig struct {
	URL string

	// Начальная задержка перед переподключением
	InitialDelay time.Duration
	// Максимальная задержка (после exponential backoff)
	MaxDelay time.Duration
	// Таймаут подключения
	ConnectTimeout time.Duration
	// Интервал ping для проверки соединения
	PingInterval time.Duration
	// Реконнект если тики не приходят дольше этого срока.
	// Сторожевой таймер ловит "тихие" зависания, которые ping не видит.
	TickWatchdog time.Duration
}

// DefaultTickerConfig возвращает конфигурацию по умолчанию
func DefaultTickerConfig(url string) TickerConfig {
	return TickerConfig{
		URL:            url,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		TickWatchdog:   15 * time.Second,
	}
}

// TickerState состояние соединения
type TickerState int32

const (
	TickerDisconnected TickerState = iota
	TickerConnecting
	TickerConnected
	TickerReconnecting
	TickerClosed
)

func (s TickerState) String() string {
	switch s {
	case TickerDisconnected:
		return "disconnected"
	case TickerConnecting:
		return "connecting"
	case TickerConnected:
		return "connected"
	case TickerReconnecting:
		return "reconnecting"
	case TickerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// subscribeMessage - запрос подписки на инструменты
type subscribeMessage struct {
	Action string   `json:"a"`
	Tokens []uint32 `json:"v"`
}

// tickFrame - тик в проводном формате потока котировок
type tickFrame struct {
	Token     uint32  `json:"token"`
	LastPrice float64 `json:"last_price"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// Ticker управляет WebSocket потоком котировок с автоматическим
// переподключением и восстановлением подписок.
//
// Гарантии:
// - после разрыва соединение восстанавливается с exponential backoff
// - подписки переотправляются после каждого реконнекта
// - молчание потока дольше TickWatchdog приводит к реконнекту
type Ticker struct {
	cfg TickerConfig
	log *zap.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex

	state      int32 // atomic TickerState
	lastTickNs int64 // atomic, unix nanos последнего тика

	tokens   []uint32
	tokensMu sync.RWMutex

	onTick  func(models.Tick)
	onState func(TickerState)
	cbMu    sync.RWMutex

	closeOnce sync.Once
	closeChan chan struct{}
}

// NewTicker создаёт клиент потока котировок
func NewTicker(cfg TickerConfig, log *zap.Logger) *Ticker {
	return &Ticker{
		cfg:       cfg,
		log:       log,
		closeChan: make(chan struct{}),
	}
}

// OnTick устанавливает callback для входящих тиков.
// Callback вызывается из горутины чтения и должен быть быстрым.
func (t *Ticker) OnTick(handler func(models.Tick)) {
	t.cbMu.Lock()
	t.onTick = handler
	t.cbMu.Unlock()
}

// OnStateChange устанавливает callback на смену состояния соединения.
// Callback вызывается синхронно из горутины, сменившей состояние.
func (t *Ticker) OnStateChange(handler func(TickerState)) {
	t.cbMu.Lock()
	t.onState = handler
	t.cbMu.Unlock()
}

// setState меняет состояние и уведомляет подписчика
func (t *Ticker) setState(s TickerState) {
	atomic.StoreInt32(&t.state, int32(s))
	t.cbMu.RLock()
	onState := t.onState
	t.cbMu.RUnlock()
	if onState != nil {
		onState(s)
	}
}

// Subscribe сохраняет токены и отправляет подписку если подключены.
// Список сохраняется для повторной подписки после реконнекта.
func (t *Ticker) Subscribe(tokens []uint32) error {
	t.tokensMu.Lock()
	t.tokens = append([]uint32(nil), tokens...)
	t.tokensMu.Unlock()

	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()

	if conn == nil {
		return nil
	}
	return conn.WriteJSON(subscribeMessage{Action: "subscribe", Tokens: tokens})
}

// State возвращает текущее состояние соединения
func (t *Ticker) State() TickerState {
	return TickerState(atomic.LoadInt32(&t.state))
}

// LastTickAt возвращает время последнего принятого тика
func (t *Ticker) LastTickAt() time.Time {
	ns := atomic.LoadInt64(&t.lastTickNs)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Connect устанавливает соединение и запускает насосы
func (t *Ticker) Connect() error {
	select {
	case <-t.closeChan:
		return fmt.Errorf("ticker is closed")
	default:
	}

	t.setState(TickerConnecting)
	if err := t.dial(); err != nil {
		t.setState(TickerDisconnected)
		return err
	}
	t.setState(TickerConnected)
	atomic.StoreInt64(&t.lastTickNs, time.Now().UnixNano())

	go t.readPump()
	go t.pingPump()
	go t.watchdogPump()

	t.log.Info("ticker connected", zap.String("url", t.cfg.URL))
	return nil
}

// dial подключается и восстанавливает подписки
func (t *Ticker) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	t.tokensMu.RLock()
	tokens := append([]uint32(nil), t.tokens...)
	t.tokensMu.RUnlock()

	if len(tokens) > 0 {
		if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Tokens: tokens}); err != nil {
			conn.Close()
			t.connMu.Lock()
			t.conn = nil
			t.connMu.Unlock()
			return fmt.Errorf("resubscribe: %w", err)
		}
		t.log.Info("resubscribed", zap.Int("tokens", len(tokens)))
	}
	return nil
}

// readPump читает тики из сокета
func (t *Ticker) readPump() {
	for {
		select {
		case <-t.closeChan:
			return
		default:
		}

		t.connMu.RLock()
		conn := t.conn
		t.connMu.RUnlock()
		if conn == nil {
			return
		}

		var frame tickFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.handleDisconnect(err)
			return
		}

		atomic.StoreInt64(&t.lastTickNs, time.Now().UnixNano())

		t.cbMu.RLock()
		onTick := t.onTick
		t.cbMu.RUnlock()
		if onTick != nil {
			onTick(models.Tick{
				Token:     frame.Token,
				LastPrice: frame.LastPrice,
				Volume:    frame.Volume,
				Timestamp: time.UnixMilli(frame.Timestamp),
			})
		}
	}
}

// pingPump отправляет ping для проверки соединения
func (t *Ticker) pingPump() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closeChan:
			return
		case <-ticker.C:
			t.connMu.RLock()
			conn := t.conn
			t.connMu.RUnlock()
			if conn == nil || t.State() != TickerConnected {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(t.cfg.ConnectTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.log.Warn("ping failed", zap.Error(err))
				t.handleDisconnect(err)
				return
			}
		}
	}
}

// watchdogPump реконнектит при молчании потока
func (t *Ticker) watchdogPump() {
	if t.cfg.TickWatchdog <= 0 {
		return
	}
	interval := t.cfg.TickWatchdog / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closeChan:
			return
		case <-ticker.C:
			if t.State() != TickerConnected {
				return
			}
			last := t.LastTickAt()
			if !last.IsZero() && time.Since(last) > t.cfg.TickWatchdog {
				t.log.Warn("tick watchdog fired",
					zap.Duration("silence", time.Since(last)))
				t.handleDisconnect(fmt.Errorf("no ticks for %v", time.Since(last)))
				return
			}
		}
	}
}

// handleDisconnect обрабатывает разрыв и запускает реконнект
func (t *Ticker) handleDisconnect(err error) {
	select {
	case <-t.closeChan:
		return
	default:
	}

	state := t.State()
	if state == TickerReconnecting || state == TickerClosed {
		return
	}
	t.setState(TickerReconnecting)

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	if err != nil {
		t.log.Warn("ticker disconnected", zap.Error(err))
	}
	go t.reconnectLoop()
}

// reconnectLoop переподключается с exponential backoff до успеха
// или закрытия клиента
func (t *Ticker) reconnectLoop() {
	delay := t.cfg.InitialDelay
	for {
		select {
		case <-t.closeChan:
			return
		case <-time.After(delay):
		}

		t.log.Info("reconnecting ticker", zap.Duration("delay", delay))
		if err := t.dial(); err != nil {
			t.log.Warn("reconnect failed", zap.Error(err))
			delay *= 2
			if delay > t.cfg.MaxDelay {
				delay = t.cfg.MaxDelay
			}
			continue
		}

		t.setState(TickerConnected)
		atomic.StoreInt64(&t.lastTickNs, time.Now().UnixNano())
		go t.readPump()
		go t.pingPump()
		go t.watchdogPump()
		t.log.Info("ticker reconnected")
		return
	}
}

// Close останавливает клиент. Повторные вызовы безопасны.
func (t *Ticker) Close() error {
	t.closeOnce.Do(func() {
		t.setState(TickerClosed)
		close(t.closeChan)

		t.connMu.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.connMu.Unlock()
	})
	return nil
}
