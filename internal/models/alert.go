package models

import "time"

// Уровни алертов. CRITICAL означает вмешательство оператора:
// например, неполная пара ног после неудачного отката.
const (
	AlertInfo     = "INFO"
	AlertWarning  = "WARNING"
	AlertCritical = "CRITICAL"
)

// Alert - событие для операторских каналов (лог, телеграм и т.п.)
type Alert struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
