package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"statarb/internal/alert"
	"statarb/internal/models"
)

var stateJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// EngineState - персистентное состояние движка между рестартами
type EngineState struct {
	ActiveTrades map[string]models.PositionSnapshot `json:"active_trades"` // pair_key -> позиция
	LastUpdated  time.Time                          `json:"last_updated"`
}

// StateManager сохраняет и восстанавливает состояние движка.
// Запись атомарна: временный файл + rename, краш посреди записи
// оставляет предыдущую версию нетронутой.
type StateManager struct {
	path   string
	alerts alert.Sink
	log    *zap.Logger
}

func NewStateManager(path string, alerts alert.Sink, log *zap.Logger) *StateManager {
	return &StateManager{path: path, alerts: alerts, log: log}
}

// Save записывает состояние на диск
func (m *StateManager) Save(state EngineState) error {
	state.LastUpdated = time.Now()

	data, err := stateJSON.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit state file: %w", err)
	}

	m.log.Debug("state saved",
		zap.String("path", m.path),
		zap.Int("active_trades", len(state.ActiveTrades)))
	return nil
}

// Load читает состояние с диска. Отсутствие файла - чистый старт.
// Повреждённый файл не фатален: движок стартует пустым, оператор
// получает WARNING и сверяет позиции с брокером руками.
func (m *StateManager) Load() (EngineState, error) {
	empty := EngineState{ActiveTrades: make(map[string]models.PositionSnapshot)}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Info("no state file, clean start", zap.String("path", m.path))
			return empty, nil
		}
		return empty, fmt.Errorf("read state file: %w", err)
	}

	var state EngineState
	if err := stateJSON.Unmarshal(data, &state); err != nil {
		m.alerts.Publish(models.AlertWarning, "state",
			"state file corrupt, starting empty; verify broker positions manually",
			map[string]interface{}{"path": m.path, "error": err.Error()})
		return empty, nil
	}
	if state.ActiveTrades == nil {
		state.ActiveTrades = make(map[string]models.PositionSnapshot)
	}

	m.log.Info("state loaded",
		zap.String("path", m.path),
		zap.Int("active_trades", len(state.ActiveTrades)),
		zap.Time("last_updated", state.LastUpdated))
	return state, nil
}

// Remove удаляет файл состояния (все позиции закрыты штатно)
func (m *StateManager) Remove() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path возвращает абсолютный путь файла состояния
func (m *StateManager) Path() string {
	abs, err := filepath.Abs(m.path)
	if err != nil {
		return m.path
	}
	return abs
}
