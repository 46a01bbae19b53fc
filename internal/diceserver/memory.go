package diceserver

import (
	"context"
	"sort"
	"sync"

	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

// MemoryOutcomes is an in-process OutcomeStore. It backs offline
// simulations and tests, and reports the same errors as the postgres store.
type MemoryOutcomes struct {
	mu    sync.Mutex
	items map[int64][]dice.OutcomeItem
}

// NewMemoryOutcomes creates an empty MemoryOutcomes.
func NewMemoryOutcomes() *MemoryOutcomes {
	return &MemoryOutcomes{items: make(map[int64][]dice.OutcomeItem)}
}

// Create stores item for accountID.
func (m *MemoryOutcomes) Create(_ context.Context, accountID int64, item dice.OutcomeItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items[accountID] {
		if it.ID == item.ID {
			return postgres.ErrOutcomeExists
		}
	}
	m.items[accountID] = append(m.items[accountID], item)
	return nil
}

// ListByAccount returns a copy of the items of accountID in insertion order.
func (m *MemoryOutcomes) ListByAccount(_ context.Context, accountID int64) ([]dice.OutcomeItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dice.OutcomeItem(nil), m.items[accountID]...), nil
}

// Delete removes item id of accountID.
func (m *MemoryOutcomes) Delete(_ context.Context, accountID int64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items[accountID]
	for i, it := range items {
		if it.ID == id {
			m.items[accountID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return postgres.ErrOutcomeNotFound
}

// MemoryRolls is an in-process RollStore.
type MemoryRolls struct {
	mu    sync.Mutex
	rolls map[int64][]dice.CompleteResult
}

// NewMemoryRolls creates an empty MemoryRolls.
func NewMemoryRolls() *MemoryRolls {
	return &MemoryRolls{rolls: make(map[int64][]dice.CompleteResult)}
}

// Save appends res to the history of accountID.
func (m *MemoryRolls) Save(_ context.Context, accountID int64, res dice.CompleteResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls[accountID] = append(m.rolls[accountID], res)
	return nil
}

// newestFirst must be called with m.mu held. Rolls sharing a timestamp are
// ordered by most recent Save first.
func (m *MemoryRolls) newestFirst(accountID int64) []dice.CompleteResult {
	saved := m.rolls[accountID]
	out := make([]dice.CompleteResult, len(saved))
	for i, r := range saved {
		out[len(saved)-1-i] = r
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

// Last returns the newest roll or postgres.ErrNoRolls.
func (m *MemoryRolls) Last(_ context.Context, accountID int64) (dice.CompleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.rolls[accountID]
	if len(saved) == 0 {
		return dice.CompleteResult{}, postgres.ErrNoRolls
	}
	newest := saved[0]
	for _, r := range saved[1:] {
		if r.Timestamp >= newest.Timestamp {
			newest = r
		}
	}
	return newest, nil
}

// CountOnDate counts the rolls of accountID dated date.
func (m *MemoryRolls) CountOnDate(_ context.Context, accountID int64, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rolls[accountID] {
		if r.Date == date {
			n++
		}
	}
	return n, nil
}

// History returns up to limit rolls, newest first.
func (m *MemoryRolls) History(_ context.Context, accountID int64, limit int) ([]dice.CompleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.newestFirst(accountID)
	if len(s) > limit {
		s = s[:limit]
	}
	return s, nil
}

// Len returns the number of rolls recorded for accountID.
func (m *MemoryRolls) Len(accountID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rolls[accountID])
}
