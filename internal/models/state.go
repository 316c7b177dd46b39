package models

// Жизненный цикл торгуемой пары внутри движка.
// Пара в StateError не торгуется до ручного сброса оператором.
const (
	StatePaused   = "paused"
	StateReady    = "ready"
	StateEntering = "entering"
	StateHolding  = "holding"
	StateExiting  = "exiting"
	StateError    = "error"
)

// Режимы коинтеграционного здоровья пары по оценке стража.
const (
	RegimeInitializing = "INITIALIZING"
	RegimeStable       = "STABLE"
	RegimeWeakening    = "WEAKENING"
	RegimeBroken       = "BROKEN"
)

// Светофор диагностики стража.
const (
	HealthGreen  = "GREEN"
	HealthYellow = "YELLOW"
	HealthRed    = "RED"
)
