package bot

import (
	"fmt"

	"statarb/internal/models"
)

// ValidTransitions - допустимые переходы жизненного цикла пары.
//
//	paused   -> ready                         (оператор включил пару)
//	ready    -> entering | paused
//	entering -> holding | ready | error       (вход, откат, неполная пара)
//	holding  -> exiting | error
//	exiting  -> ready | holding | paused | error
//	                       (вышли, выход не прошёл, square-off, неполная пара)
//	error    ->                               (только ручной сброс оператором)
var ValidTransitions = map[string][]string{
	models.StatePaused:   {models.StateReady},
	models.StateReady:    {models.StateEntering, models.StatePaused},
	models.StateEntering: {models.StateHolding, models.StateReady, models.StateError},
	models.StateHolding:  {models.StateExiting, models.StateError},
	models.StateExiting:  {models.StateReady, models.StateHolding, models.StatePaused, models.StateError},
	models.StateError:    {},
}

// CanTransition проверяет допустимость перехода from -> to
func CanTransition(from, to string) bool {
	for _, allowed := range ValidTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition валидирует и возвращает новое состояние
func Transition(from, to string) (string, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	return to, nil
}

// ResetError - ручной сброс пары из error в paused.
// Единственный выход из error, обычные переходы его не допускают.
func ResetError(state string) (string, error) {
	if state != models.StateError {
		return state, fmt.Errorf("reset allowed only from %s, pair is %s", models.StateError, state)
	}
	return models.StatePaused, nil
}

// IsActive сообщает, участвует ли пара в торговле
func IsActive(state string) bool {
	return state != models.StatePaused && state != models.StateError
}

// HasOpenPosition сообщает, подразумевает ли состояние открытую позицию
func HasOpenPosition(state string) bool {
	return state == models.StateHolding || state == models.StateExiting
}

// StateInfo возвращает человекочитаемое описание состояния
func StateInfo(state string) string {
	switch state {
	case models.StatePaused:
		return "пара выключена оператором"
	case models.StateReady:
		return "ждёт сигнала входа"
	case models.StateEntering:
		return "исполняются ноги входа"
	case models.StateHolding:
		return "позиция открыта, ждёт сигнала выхода"
	case models.StateExiting:
		return "исполняются ноги выхода"
	case models.StateError:
		return "требуется вмешательство оператора"
	default:
		return "неизвестное состояние"
	}
}
