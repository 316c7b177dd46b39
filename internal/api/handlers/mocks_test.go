package handlers

import (
	"errors"

	"statarb/internal/bot"
	"statarb/internal/models"
	"statarb/internal/repository"
)

var errMockDatabase = errors.New("mock: database error")

// ============ Mock Pair Store ============

// mockPairStore - мок PairStore в памяти
type mockPairStore struct {
	pairs  map[int]*models.PairConfig
	nextID int

	createErr error
	getErr    error
	deleteErr error
}

func newMockPairStore() *mockPairStore {
	return &mockPairStore{pairs: make(map[int]*models.PairConfig), nextID: 1}
}

func (m *mockPairStore) Create(pair *models.PairConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, p := range m.pairs {
		if p.LegY == pair.LegY && p.LegX == pair.LegX {
			return repository.ErrPairExists
		}
	}
	pair.ID = m.nextID
	m.nextID++
	m.pairs[pair.ID] = pair
	return nil
}

func (m *mockPairStore) GetByID(id int) (*models.PairConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	pair, ok := m.pairs[id]
	if !ok {
		return nil, repository.ErrPairNotFound
	}
	return pair, nil
}

func (m *mockPairStore) Delete(id int) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.pairs[id]; !ok {
		return repository.ErrPairNotFound
	}
	delete(m.pairs, id)
	return nil
}

// ============ Mock Engine Control ============

// mockEngine - мок runtime управления движком
type mockEngine struct {
	statuses  []bot.PairStatusView
	portfolio bot.PortfolioView

	actions   []string // "pause:KEY", "resume:KEY", "reset:KEY"
	actionErr error
}

func (m *mockEngine) PairStatuses() []bot.PairStatusView { return m.statuses }
func (m *mockEngine) Portfolio() bot.PortfolioView       { return m.portfolio }

func (m *mockEngine) PausePair(key string) error  { return m.action("pause", key) }
func (m *mockEngine) ResumePair(key string) error { return m.action("resume", key) }
func (m *mockEngine) ResetPair(key string) error  { return m.action("reset", key) }

func (m *mockEngine) action(name, key string) error {
	if m.actionErr != nil {
		return m.actionErr
	}
	m.actions = append(m.actions, name+":"+key)
	return nil
}

// ============ Mock Trade Store ============

// mockTradeStore - мок журнала сделок
type mockTradeStore struct {
	trades  []*models.TradeRecord
	listErr error

	lastLimit  int
	lastSymbol string
}

func (m *mockTradeStore) ListRecent(limit int) ([]*models.TradeRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.lastLimit = limit
	return m.trades, nil
}

func (m *mockTradeStore) ListBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.lastSymbol = symbol
	m.lastLimit = limit
	out := make([]*models.TradeRecord, 0)
	for _, t := range m.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}
