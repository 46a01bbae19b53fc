// Package diceserver implements the per-couple roll service: it merges the
// default catalog with a couple's custom items, applies catalog rules,
// enforces the daily free-roll quota, and records every roll.
package diceserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/coupledice/internal/catalog"
	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/observability"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

const (
	// DefaultHistoryLimit is used when History is called with a non-positive limit.
	DefaultHistoryLimit = 10
	// MaxHistoryLimit caps the number of rolls History returns.
	MaxHistoryLimit = 50
)

var (
	// ErrQuotaExceeded is returned by Roll when the daily free rolls are used up.
	ErrQuotaExceeded = errors.New("daily free rolls used up")
	// ErrDefaultItem is returned when removing an item that belongs to the default catalog.
	ErrDefaultItem = errors.New("default items cannot be removed")
)

// OutcomeStore persists a couple's custom items.
type OutcomeStore interface {
	Create(ctx context.Context, accountID int64, item dice.OutcomeItem) error
	ListByAccount(ctx context.Context, accountID int64) ([]dice.OutcomeItem, error)
	Delete(ctx context.Context, accountID int64, id string) error
}

// RollStore persists composed results. Last must return postgres.ErrNoRolls
// for an account without history.
type RollStore interface {
	Save(ctx context.Context, accountID int64, res dice.CompleteResult) error
	Last(ctx context.Context, accountID int64) (dice.CompleteResult, error)
	CountOnDate(ctx context.Context, accountID int64, date string) (int, error)
	History(ctx context.Context, accountID int64, limit int) ([]dice.CompleteResult, error)
}

// Roller composes a complete result from a catalog snapshot.
type Roller interface {
	RollComplete(catalog []dice.OutcomeItem, previous *dice.CompleteResult) (dice.CompleteResult, error)
}

// CatalogFilter narrows a catalog snapshot for the instant of a roll.
type CatalogFilter interface {
	Apply(items []dice.OutcomeItem, now time.Time) []dice.OutcomeItem
}

// Quota describes a couple's free-roll usage for one day.
type Quota struct {
	Date  string
	Used  int
	Limit int // 0 means unlimited
}

// Unlimited reports whether no daily cap applies.
func (q Quota) Unlimited() bool { return q.Limit <= 0 }

// Remaining returns the rolls left today, or -1 when unlimited.
func (q Quota) Remaining() int {
	if q.Unlimited() {
		return -1
	}
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// Options configures a Service.
type Options struct {
	Defaults       *catalog.Registry
	Outcomes       OutcomeStore
	Rolls          RollStore
	Roller         Roller
	Filter         CatalogFilter // optional
	Clock          dice.Clock    // nil uses SystemClock
	Location       *time.Location
	DailyFreeRolls int
	Metrics        *observability.Metrics // optional
	Logger         *zap.Logger
}

// Service runs rolls and catalog edits for authenticated couples.
type Service struct {
	defaults  *catalog.Registry
	outcomes  OutcomeStore
	rolls     RollStore
	roller    Roller
	filter    CatalogFilter
	clock     dice.Clock
	loc       *time.Location
	dailyFree int
	metrics   *observability.Metrics
	logger    *zap.Logger

	// rollLocks holds one *sync.Mutex per account so that partners rolling
	// at the same time see each other's result as previous.
	rollLocks sync.Map
}

// NewService creates a Service.
//
// Precondition: opts.Defaults, opts.Outcomes, opts.Rolls, opts.Roller, and opts.Logger must be non-nil.
func NewService(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		defaults:  opts.Defaults,
		outcomes:  opts.Outcomes,
		rolls:     opts.Rolls,
		roller:    opts.Roller,
		filter:    opts.Filter,
		clock:     clock,
		loc:       loc,
		dailyFree: opts.DailyFreeRolls,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Roll composes, records, and returns a new result for accountID.
//
// Postcondition: On success the result is persisted and becomes the
// previous result of the next roll. Returns ErrQuotaExceeded when the daily
// cap is reached, and a dice.ErrEmptyCatalog or *dice.CategoryError when the
// merged catalog cannot fill every category.
func (s *Service) Roll(ctx context.Context, accountID int64) (dice.CompleteResult, error) {
	mu, _ := s.rollLocks.LoadOrStore(accountID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	start := time.Now()
	res, outcome, err := s.roll(ctx, accountID)
	s.observe(outcome, time.Since(start))
	return res, err
}

func (s *Service) roll(ctx context.Context, accountID int64) (dice.CompleteResult, string, error) {
	now := s.clock.Now().In(s.loc)

	if s.dailyFree > 0 {
		q, err := s.Quota(ctx, accountID)
		if err != nil {
			return dice.CompleteResult{}, observability.OutcomeError, err
		}
		if q.Remaining() == 0 {
			return dice.CompleteResult{}, observability.OutcomeQuota, ErrQuotaExceeded
		}
	}

	items, err := s.Items(ctx, accountID)
	if err != nil {
		return dice.CompleteResult{}, observability.OutcomeError, err
	}
	if s.filter != nil {
		items = s.filter.Apply(items, now)
	}

	prev, err := s.Last(ctx, accountID)
	if err != nil {
		return dice.CompleteResult{}, observability.OutcomeError, err
	}

	res, err := s.roller.RollComplete(items, prev)
	if err != nil {
		if errors.Is(err, dice.ErrEmptyCatalog) || errors.Is(err, dice.ErrEmptyPool) {
			return dice.CompleteResult{}, observability.OutcomeEmpty, err
		}
		return dice.CompleteResult{}, observability.OutcomeError, fmt.Errorf("composing roll: %w", err)
	}

	if err := s.rolls.Save(ctx, accountID, res); err != nil {
		return dice.CompleteResult{}, observability.OutcomeError, fmt.Errorf("saving roll: %w", err)
	}

	s.logger.Info("roll recorded",
		zap.Int64("account_id", accountID),
		zap.String("roll_id", res.ID),
		zap.String("date", res.Date),
	)
	if res.Degraded {
		return res, observability.OutcomeDegraded, nil
	}
	return res, observability.OutcomeOK, nil
}

func (s *Service) observe(outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRoll(outcome, elapsed)
	if outcome == observability.OutcomeOK || outcome == observability.OutcomeDegraded {
		for _, c := range dice.Categories {
			s.metrics.ObservePick(string(c))
		}
	}
}

// Items returns the default catalog followed by the custom items of accountID.
// Custom items whose id collides with a default one are dropped.
func (s *Service) Items(ctx context.Context, accountID int64) ([]dice.OutcomeItem, error) {
	custom, err := s.outcomes.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading custom items: %w", err)
	}
	return s.defaults.Merge(custom), nil
}

// IsDefault reports whether id belongs to the default catalog.
func (s *Service) IsDefault(id string) bool {
	_, ok := s.defaults.Item(id)
	return ok
}

// AddItem validates c, creates a new item from it, and stores it for accountID.
//
// Postcondition: Returns a *dice.ValidationError for invalid input; the
// stored item has a fresh id and a weight clamped into [1, 10].
func (s *Service) AddItem(ctx context.Context, accountID int64, c dice.Candidate) (dice.OutcomeItem, error) {
	if err := dice.ValidateCandidate(c); err != nil {
		return dice.OutcomeItem{}, err
	}
	category, err := dice.ParseCategory(c.Category)
	if err != nil {
		return dice.OutcomeItem{}, err
	}
	weight := dice.DefaultWeight
	if c.Weight != nil {
		weight = *c.Weight
	}
	item := dice.CreateCandidate(c.Label, category, c.Emoji, weight)
	if err := s.outcomes.Create(ctx, accountID, item); err != nil {
		return dice.OutcomeItem{}, fmt.Errorf("storing item: %w", err)
	}
	s.logger.Info("custom item added",
		zap.Int64("account_id", accountID),
		zap.String("item_id", item.ID),
		zap.String("category", string(item.Category)),
	)
	return item, nil
}

// RemoveItem deletes the custom item id of accountID.
//
// Postcondition: Returns ErrDefaultItem for default catalog ids and
// postgres.ErrOutcomeNotFound for unknown ids.
func (s *Service) RemoveItem(ctx context.Context, accountID int64, id string) error {
	if s.IsDefault(id) {
		return ErrDefaultItem
	}
	return s.outcomes.Delete(ctx, accountID, id)
}

// Last returns the most recent roll of accountID, or nil when there is none.
func (s *Service) Last(ctx context.Context, accountID int64) (*dice.CompleteResult, error) {
	res, err := s.rolls.Last(ctx, accountID)
	if errors.Is(err, postgres.ErrNoRolls) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading last roll: %w", err)
	}
	return &res, nil
}

// History returns up to limit rolls of accountID, newest first. limit is
// bounded to [1, MaxHistoryLimit]; non-positive values use DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, accountID int64, limit int) ([]dice.CompleteResult, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	hist, err := s.rolls.History(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return hist, nil
}

// Quota reports today's roll usage of accountID. Days are calendar days in
// the service location.
func (s *Service) Quota(ctx context.Context, accountID int64) (Quota, error) {
	date := dice.DateOf(s.clock.Now().UnixMilli(), s.loc)
	used, err := s.rolls.CountOnDate(ctx, accountID, date)
	if err != nil {
		return Quota{}, fmt.Errorf("counting today's rolls: %w", err)
	}
	return Quota{Date: date, Used: used, Limit: s.dailyFree}, nil
}

// Location returns the zone used for dates and quota days.
func (s *Service) Location() *time.Location { return s.loc }
