package bot

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"statarb/internal/alert"
	"statarb/internal/models"
	"statarb/pkg/utils"
)

var (
	ErrMaxPositions  = errors.New("portfolio: max open positions reached")
	ErrKillSwitch    = errors.New("portfolio: daily loss limit hit, trading halted")
	ErrPastSquareOff = errors.New("portfolio: past square-off time, entries closed")
)

// PortfolioManager - портфельные лимиты поверх всех пар.
// Единственный разделяемый между воркерами объект, отсюда мьютекс.
type PortfolioManager struct {
	mu sync.Mutex

	capital      float64
	maxPositions int
	maxDailyLoss float64 // положительное число, рупий
	squareOffAt  string  // "15:04"

	openPositions map[string]struct{} // pair_key
	realizedPnl   float64             // за текущий день
	dayStart      time.Time
	killSwitch    bool

	alerts alert.Sink
	log    *zap.Logger
}

func NewPortfolioManager(capital float64, maxPositions int, maxDailyLoss float64, squareOffAt string, alerts alert.Sink, log *zap.Logger) *PortfolioManager {
	return &PortfolioManager{
		capital:       capital,
		maxPositions:  maxPositions,
		maxDailyLoss:  maxDailyLoss,
		squareOffAt:   squareOffAt,
		openPositions: make(map[string]struct{}),
		dayStart:      utils.GetDayStart(),
		alerts:        alerts,
		log:           log,
	}
}

// CanEnter проверяет, допустим ли новый вход по паре.
// nil означает, что слот зарезервирован не будет - резервирует Opened.
func (p *PortfolioManager) CanEnter(pairKey string, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rolloverLocked(now)

	if p.killSwitch {
		return ErrKillSwitch
	}
	if utils.AfterClock(now, p.squareOffAt) {
		return ErrPastSquareOff
	}
	if _, open := p.openPositions[pairKey]; open {
		return ErrPositionOpen
	}
	if len(p.openPositions) >= p.maxPositions {
		return ErrMaxPositions
	}
	return nil
}

// Opened регистрирует открытую позицию
func (p *PortfolioManager) Opened(pairKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openPositions[pairKey] = struct{}{}
	p.log.Info("position registered",
		zap.String("pair", pairKey),
		zap.Int("open_positions", len(p.openPositions)))
}

// Closed регистрирует закрытие и реализованный P&L.
// Пробой дневного лимита убытка взводит kill switch до конца дня.
func (p *PortfolioManager) Closed(pairKey string, realizedPnl float64, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rolloverLocked(now)

	delete(p.openPositions, pairKey)
	p.realizedPnl += realizedPnl

	p.log.Info("position closed",
		zap.String("pair", pairKey),
		zap.Float64("pnl", realizedPnl),
		zap.Float64("day_pnl", p.realizedPnl))

	if !p.killSwitch && p.realizedPnl <= -p.maxDailyLoss {
		p.killSwitch = true
		p.alerts.Publish(models.AlertCritical, "portfolio",
			"daily loss limit hit, no new entries until tomorrow",
			map[string]interface{}{
				"day_pnl": p.realizedPnl,
				"limit":   p.maxDailyLoss,
			})
	}
}

// ShouldSquareOff сообщает, пора ли принудительно закрывать всё открытое
func (p *PortfolioManager) ShouldSquareOff(now time.Time) bool {
	return utils.AfterClock(now, p.squareOffAt)
}

// OpenCount возвращает число открытых позиций
func (p *PortfolioManager) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.openPositions)
}

// DayPnl возвращает реализованный P&L текущего дня
func (p *PortfolioManager) DayPnl() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realizedPnl
}

// KillSwitchActive сообщает состояние дневного стопа
func (p *PortfolioManager) KillSwitchActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killSwitch
}

// Capital возвращает торговый капитал
func (p *PortfolioManager) Capital() float64 {
	return p.capital
}

// rolloverLocked сбрасывает дневные счётчики при смене торгового дня
func (p *PortfolioManager) rolloverLocked(now time.Time) {
	if utils.SameTradingDay(p.dayStart, now) {
		return
	}
	p.log.Info("trading day rollover",
		zap.Float64("prev_day_pnl", p.realizedPnl),
		zap.Bool("kill_switch_was", p.killSwitch))
	p.dayStart = utils.GetDayStartFrom(now)
	p.realizedPnl = 0
	p.killSwitch = false
}
