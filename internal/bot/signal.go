package bot

import (
	"fmt"

	"statarb/internal/models"
)

// Действия сигнала
const (
	ActionHold  = "HOLD"
	ActionEnter = "ENTER"
	ActionExit  = "EXIT"
)

// Причины выхода
const (
	ReasonTarget    = "TARGET"
	ReasonStopLoss  = "STOP_LOSS"
	ReasonSquareOff = "SQUARE_OFF"
)

// Thresholds - пороги z-score стратегии.
// Инварианты: Entry < Stop, Exit <= Entry. Проверяются при создании.
type Thresholds struct {
	Entry float64
	Exit  float64
	Stop  float64
}

// DefaultThresholds - канонические пороги методики: 2.5 / 1.0 / 3.0
func DefaultThresholds() Thresholds {
	return Thresholds{Entry: 2.5, Exit: 1.0, Stop: 3.0}
}

// Validate проверяет согласованность порогов
func (t Thresholds) Validate() error {
	if t.Entry <= 0 {
		return fmt.Errorf("entry threshold must be positive, got %v", t.Entry)
	}
	if t.Entry >= t.Stop {
		return fmt.Errorf("entry %v must be below stop %v", t.Entry, t.Stop)
	}
	if t.Exit > t.Entry {
		return fmt.Errorf("exit %v must not exceed entry %v", t.Exit, t.Entry)
	}
	return nil
}

// Signal - решение машины сигналов
type Signal struct {
	Action    string  // HOLD, ENTER, EXIT
	Direction string  // для ENTER: LONG или SHORT по спреду
	Reason    string  // для EXIT: TARGET или STOP_LOSS
	ZScore    float64
}

// SignalGenerator - чистая машина состояний по z-score.
// Состояние позиции хранит вызывающий, генератор без состояния.
type SignalGenerator struct {
	thresholds Thresholds
}

// NewSignalGenerator создаёт генератор, отклоняя некорректные пороги
func NewSignalGenerator(t Thresholds) (*SignalGenerator, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &SignalGenerator{thresholds: t}, nil
}

// Thresholds возвращает действующие пороги
func (s *SignalGenerator) Thresholds() Thresholds {
	return s.thresholds
}

// Evaluate - чистая функция (z, состояние) -> сигнал.
//
// NONE: z <= -entry -> ENTER/LONG (купить Y, продать X);
//       z >= +entry -> ENTER/SHORT; иначе HOLD.
// Вне позиции стоп не оценивается: экстремальный z это всё ещё вход.
// LONG: z <= -stop -> EXIT/STOP_LOSS; z >= -exit -> EXIT/TARGET.
// SHORT: z >= +stop -> EXIT/STOP_LOSS; z <= +exit -> EXIT/TARGET.
func (s *SignalGenerator) Evaluate(z float64, state string) Signal {
	t := s.thresholds

	switch state {
	case models.DirectionNone:
		if z <= -t.Entry {
			return Signal{Action: ActionEnter, Direction: models.DirectionLong, ZScore: z}
		}
		if z >= t.Entry {
			return Signal{Action: ActionEnter, Direction: models.DirectionShort, ZScore: z}
		}

	case models.DirectionLong:
		if z <= -t.Stop {
			return Signal{Action: ActionExit, Reason: ReasonStopLoss, ZScore: z}
		}
		if z >= -t.Exit {
			return Signal{Action: ActionExit, Reason: ReasonTarget, ZScore: z}
		}

	case models.DirectionShort:
		if z >= t.Stop {
			return Signal{Action: ActionExit, Reason: ReasonStopLoss, ZScore: z}
		}
		if z <= t.Exit {
			return Signal{Action: ActionExit, Reason: ReasonTarget, ZScore: z}
		}
	}
	return Signal{Action: ActionHold, ZScore: z}
}
