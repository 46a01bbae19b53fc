package dice

import (
	"time"

	"github.com/google/uuid"
)

// RollState is the phase of a single roll cycle.
type RollState int

const (
	StateIdle RollState = iota
	StateRolling
	StateComposed
)

func (s RollState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRolling:
		return "rolling"
	case StateComposed:
		return "composed"
	}
	return "unknown"
}

// StateObserver is notified on every roll state transition.
type StateObserver func(RollState)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// Composer rolls one item per category and assembles a CompleteResult.
type Composer struct {
	picker *Picker
	shares Shares
	clock  Clock
	loc    *time.Location

	// Observer is injected after construction. nil = no notifications.
	Observer StateObserver
}

// NewComposer creates a Composer. A nil clock uses the system clock and a
// nil loc derives dates in UTC.
//
// Precondition: picker must be non-nil.
func NewComposer(picker *Picker, shares Shares, clock Clock, loc *time.Location) *Composer {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Composer{picker: picker, shares: shares, clock: clock, loc: loc}
}

// Location returns the zone used to derive CompleteResult.Date.
func (c *Composer) Location() *time.Location { return c.loc }

// RollComplete picks one payer, one meal and one activity from catalog.
// Each category is drawn from its own pool, so the item returned for a
// category always belongs to it. Anti-repetition compares each category
// against the matching pick of previous.
//
// Postcondition: Returns a fully populated CompleteResult, or ErrEmptyCatalog,
// or a *CategoryError wrapping ErrEmptyPool. No partial result is returned.
func (c *Composer) RollComplete(catalog []OutcomeItem, previous *CompleteResult) (CompleteResult, error) {
	if len(catalog) == 0 {
		return CompleteResult{}, ErrEmptyCatalog
	}

	c.notify(StateRolling)
	pools := BuildCategoryPools(catalog, c.shares)
	picks := make(map[Category]OutcomeItem, len(Categories))
	degraded := false
	for _, cat := range Categories {
		var prev *OutcomeItem
		if previous != nil {
			p := previous.Pick(cat)
			prev = &p
		}
		item, fellBack, err := c.picker.pick(pools[cat], prev, true)
		if err != nil {
			c.notify(StateIdle)
			return CompleteResult{}, &CategoryError{Category: cat, Err: err}
		}
		picks[cat] = item
		degraded = degraded || fellBack
	}

	ts := c.clock.Now().UnixMilli()
	result := CompleteResult{
		ID:        uuid.NewString(),
		Payer:     picks[CategoryPayer],
		Meal:      picks[CategoryMeal],
		Activity:  picks[CategoryActivity],
		Timestamp: ts,
		Date:      DateOf(ts, c.loc),
		Degraded:  degraded,
	}
	c.notify(StateComposed)
	c.notify(StateIdle)
	return result, nil
}

func (c *Composer) notify(s RollState) {
	if c.Observer != nil {
		c.Observer(s)
	}
}
