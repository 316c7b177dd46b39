package bot

import (
	"errors"
	"sort"

	"statarb/internal/models"
)

// ErrPairUnknown - пара не зарегистрирована в движке
var ErrPairUnknown = errors.New("engine: unknown pair")

// PairStatusView - состояние пары для операторского API.
// Собирается только из потокобезопасных источников: атомарного
// состояния воркера и снапшотов позиций.
type PairStatusView struct {
	PairKey   string  `json:"pair"`
	LegY      string  `json:"leg_y"`
	LegX      string  `json:"leg_x"`
	Beta      float64 `json:"beta"`
	Sigma     float64 `json:"sigma"`
	Quality   string  `json:"quality"`
	State     string  `json:"state"`
	StateInfo string  `json:"state_info"`

	Position *models.PositionSnapshot `json:"position,omitempty"`
}

// PairStatuses возвращает состояние всех пар, отсортированное по ключу
func (e *Engine) PairStatuses() []PairStatusView {
	e.stateMu.Lock()
	snapshots := make(map[string]models.PositionSnapshot, len(e.snapshots))
	for k, v := range e.snapshots {
		snapshots[k] = v
	}
	e.stateMu.Unlock()

	views := make([]PairStatusView, 0, len(e.workers))
	for key, w := range e.workers {
		state := w.State()
		v := PairStatusView{
			PairKey:   key,
			LegY:      w.cfg.LegY,
			LegX:      w.cfg.LegX,
			Beta:      w.cfg.Beta,
			Sigma:     w.cfg.Sigma,
			Quality:   w.cfg.Quality,
			State:     state,
			StateInfo: StateInfo(state),
		}
		if snap, ok := snapshots[key]; ok {
			v.Position = &snap
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].PairKey < views[j].PairKey })
	return views
}

// PausePair выводит пару из торговли. Открытая позиция не трогается:
// пара доторгует выход и остановится (ready -> paused).
func (e *Engine) PausePair(key string) error {
	w, ok := e.workers[key]
	if !ok {
		return ErrPairUnknown
	}
	if w.State() != models.StateReady {
		return errors.New("pair is not in ready state: " + w.State())
	}
	w.setState(models.StatePaused)
	e.updatePairStateMetric()
	return nil
}

// ResumePair возвращает остановленную пару в торговлю
func (e *Engine) ResumePair(key string) error {
	w, ok := e.workers[key]
	if !ok {
		return ErrPairUnknown
	}
	next, err := Transition(w.State(), models.StateReady)
	if err != nil {
		return err
	}
	w.setState(next)
	e.updatePairStateMetric()
	return nil
}

// ResetPair - ручной сброс пары из error. Оператор обязан сначала
// выровнять позиции у брокера: сброс ничего не закрывает.
func (e *Engine) ResetPair(key string) error {
	w, ok := e.workers[key]
	if !ok {
		return ErrPairUnknown
	}
	next, err := ResetError(w.State())
	if err != nil {
		return err
	}
	w.setState(next)
	e.updateSnapshot(key, nil)
	e.updatePairStateMetric()
	return nil
}

// PortfolioView - сводка портфеля для API
type PortfolioView struct {
	Mode          string  `json:"mode"`
	Capital       float64 `json:"capital"`
	OpenPositions int     `json:"open_positions"`
	DayPnl        float64 `json:"day_pnl"`
	KillSwitch    bool    `json:"kill_switch"`
}

// Portfolio возвращает текущую сводку портфеля
func (e *Engine) Portfolio() PortfolioView {
	return PortfolioView{
		Mode:          e.mode,
		Capital:       e.portfolio.Capital(),
		OpenPositions: e.portfolio.OpenCount(),
		DayPnl:        e.portfolio.DayPnl(),
		KillSwitch:    e.portfolio.KillSwitchActive(),
	}
}
