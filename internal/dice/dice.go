// Package dice implements the weighted outcome selection engine behind a
// couple's decision roll: who pays, what to eat, and what to do.
//
// The package holds no state between calls. Every roll receives the catalog,
// the previous result, the clock, and the random source explicitly.
package dice

import (
	"fmt"
	"strings"
	"time"
)

// Category is one of the three fixed partitions of outcome items.
type Category string

const (
	CategoryPayer    Category = "payer"
	CategoryMeal     Category = "meal"
	CategoryActivity Category = "activity"
)

// Categories lists every category in roll order.
var Categories = []Category{CategoryPayer, CategoryMeal, CategoryActivity}

// Valid reports whether c is one of the recognised categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPayer, CategoryMeal, CategoryActivity:
		return true
	}
	return false
}

// ParseCategory converts s into a Category. Matching is case-insensitive and
// accepts "repas" as the legacy name of the meal category.
//
// Postcondition: Returns a valid Category or a non-nil error.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "repas" {
		return CategoryMeal, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("dice: unknown category %q", s)
	}
	return c, nil
}

// OutcomeItem is one possible face of the die.
type OutcomeItem struct {
	ID       string
	Label    string
	Category Category
	Emoji    string
	// Weight governs relative likelihood within the category, in [MinWeight, MaxWeight].
	Weight int
	// Actions are informational side-action tags such as "open_maps".
	Actions []string
}

// Candidate is a partially filled outcome item submitted for validation.
type Candidate struct {
	Label    string
	Category string
	Emoji    string
	// Weight is nil when the caller did not provide one.
	Weight *int
}

// CompleteResult is the aggregate of one roll.
//
// Invariant: Date == DateOf(Timestamp, loc) for the location the Composer was built with.
type CompleteResult struct {
	ID       string
	Payer    OutcomeItem
	Meal     OutcomeItem
	Activity OutcomeItem
	// Timestamp is the creation instant in milliseconds since the Unix epoch.
	Timestamp int64
	// Date is the calendar day (YYYY-MM-DD) derived from Timestamp.
	Date string
	// Degraded is true when the random source had fallen back to a weaker generator.
	Degraded bool
}

// Pick returns the item chosen for c.
//
// Precondition: c must be a valid Category.
func (r CompleteResult) Pick(c Category) OutcomeItem {
	switch c {
	case CategoryPayer:
		return r.Payer
	case CategoryMeal:
		return r.Meal
	case CategoryActivity:
		return r.Activity
	}
	panic("dice: CompleteResult.Pick called with unknown category " + string(c))
}

// Time returns Timestamp as a time.Time in UTC.
func (r CompleteResult) Time() time.Time {
	return time.UnixMilli(r.Timestamp).UTC()
}

// String returns a one-line audit string:
//
//	"2026-10-17 → payer=p1 meal=m4 activity=a2"
func (r CompleteResult) String() string {
	return fmt.Sprintf("%s → payer=%s meal=%s activity=%s",
		r.Date, r.Payer.ID, r.Meal.ID, r.Activity.ID)
}

// DateLayout is the calendar-day format used for CompleteResult.Date.
const DateLayout = "2006-01-02"

// DateOf returns the calendar day of the millisecond timestamp ts in loc.
// A nil loc means UTC.
//
// Postcondition: The same (ts, loc) pair always yields the same string.
func DateOf(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ts).In(loc).Format(DateLayout)
}
