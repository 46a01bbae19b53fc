package dice

import (
	"fmt"
	"math"
)

// Shares are the fixed inter-category proportions applied when building a
// pool. Each share is expressed in hundredths when replicated.
type Shares struct {
	Payer    float64
	Meal     float64
	Activity float64
}

// DefaultShares is the 20/20/60 split used when no override is configured.
var DefaultShares = Shares{Payer: 0.20, Meal: 0.20, Activity: 0.60}

// Of returns the share of c, or 0 for an unknown category.
func (s Shares) Of(c Category) float64 {
	switch c {
	case CategoryPayer:
		return s.Payer
	case CategoryMeal:
		return s.Meal
	case CategoryActivity:
		return s.Activity
	}
	return 0
}

// Validate checks that every share is in (0, 1], replicates into at least
// one pool entry, and that the shares sum to 1.
func (s Shares) Validate() error {
	sum := 0.0
	for _, c := range Categories {
		v := s.Of(c)
		if v <= 0 || v > 1 {
			return fmt.Errorf("dice: %s share must be in (0, 1], got %g", c, v)
		}
		if s.Replication(c) < 1 {
			return fmt.Errorf("dice: %s share %g rounds to an empty pool, must be at least 0.005", c, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("dice: shares must sum to 1, got %g", sum)
	}
	return nil
}

// Replication returns how many copies of a weight-1 item of category c
// enter the pool: round(share × 100).
func (s Shares) Replication(c Category) int {
	return int(math.Round(s.Of(c) * 100))
}

// Pool is a derived multiset of outcome items in which the frequency of an
// id encodes its selection probability. Pools are rebuilt, never mutated.
type Pool []OutcomeItem

// Count returns how many entries of p carry id.
func (p Pool) Count(id string) int {
	n := 0
	for _, it := range p {
		if it.ID == id {
			n++
		}
	}
	return n
}

// BuildWeightedPool expands items into a pool in which each item appears
// Replication(category) × weight times. Categories are laid out payer, meal,
// activity. A category without items leaves its share unused; the share is
// not redistributed, so the remaining categories are over-represented only
// relative to each other.
//
// Postcondition: len(result) == Σ Replication(item.Category) × weight(item).
func BuildWeightedPool(items []OutcomeItem, shares Shares) Pool {
	parts := partition(items)
	var pool Pool
	for _, c := range Categories {
		pool = appendReplicated(pool, parts[c], shares.Replication(c))
	}
	return pool
}

// BuildCategoryPools builds one pool per category using the same replication
// as BuildWeightedPool, so that every entry of result[c] has Category == c.
//
// Postcondition: result has an entry (possibly empty) for every category.
func BuildCategoryPools(items []OutcomeItem, shares Shares) map[Category]Pool {
	parts := partition(items)
	out := make(map[Category]Pool, len(Categories))
	for _, c := range Categories {
		out[c] = appendReplicated(nil, parts[c], shares.Replication(c))
	}
	return out
}

func partition(items []OutcomeItem) map[Category][]OutcomeItem {
	parts := make(map[Category][]OutcomeItem, len(Categories))
	for _, it := range items {
		if !it.Category.Valid() {
			continue
		}
		parts[it.Category] = append(parts[it.Category], it)
	}
	return parts
}

func appendReplicated(pool Pool, items []OutcomeItem, replication int) Pool {
	for _, it := range items {
		n := replication * ClampWeight(it.Weight)
		for i := 0; i < n; i++ {
			pool = append(pool, it)
		}
	}
	return pool
}
