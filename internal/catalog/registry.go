package catalog

import (
	"fmt"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

// Registry holds outcome items indexed by id, remembering registration order.
//
// Registry is not safe for concurrent mutation; build it once, then share
// read-only snapshots from All.
type Registry struct {
	items map[string]dice.OutcomeItem
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]dice.OutcomeItem)}
}

// Register adds it to the registry.
//
// Postcondition: Item(it.ID) returns it; returns error if it.ID is already registered.
func (r *Registry) Register(it dice.OutcomeItem) error {
	if _, exists := r.items[it.ID]; exists {
		return fmt.Errorf("catalog: Registry.Register: item ID %q already registered", it.ID)
	}
	r.items[it.ID] = it
	r.order = append(r.order, it.ID)
	return nil
}

// Item returns the item for id and whether it was found.
func (r *Registry) Item(id string) (dice.OutcomeItem, bool) {
	it, ok := r.items[id]
	return it, ok
}

// Len returns the number of registered items.
func (r *Registry) Len() int { return len(r.order) }

// All returns a copy of every item in registration order.
func (r *Registry) All() []dice.OutcomeItem {
	out := make([]dice.OutcomeItem, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// ByCategory returns the items of c in registration order.
func (r *Registry) ByCategory(c dice.Category) []dice.OutcomeItem {
	var out []dice.OutcomeItem
	for _, id := range r.order {
		if it := r.items[id]; it.Category == c {
			out = append(out, it)
		}
	}
	return out
}

// Merge returns the registry's items followed by extra. Items of extra whose
// id is already registered are skipped, so a custom item can never shadow a
// default one.
//
// Postcondition: The returned slice is newly allocated; r is not modified.
func (r *Registry) Merge(extra []dice.OutcomeItem) []dice.OutcomeItem {
	out := r.All()
	seen := make(map[string]bool, len(extra))
	for _, it := range extra {
		if _, exists := r.items[it.ID]; exists || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
