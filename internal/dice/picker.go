package dice

// DefaultRepeatThreshold is the pool size above which the previous pick is
// excluded. Smaller pools skip the exclusion.
const DefaultRepeatThreshold = 5

// Picker draws items from a pool and applies the anti-repetition rule.
//
// Picker is safe for concurrent use when its RandomSource is.
type Picker struct {
	src       RandomSource
	threshold int
}

// NewPicker creates a Picker drawing from src. Pools longer than
// repeatThreshold exclude the previous pick; a negative threshold selects
// DefaultRepeatThreshold.
//
// Precondition: src must be non-nil.
func NewPicker(src RandomSource, repeatThreshold int) *Picker {
	if repeatThreshold < 0 {
		repeatThreshold = DefaultRepeatThreshold
	}
	return &Picker{src: src, threshold: repeatThreshold}
}

// Pick draws one entry of pool uniformly at random.
//
// When excludePrevious is true, previous is non-nil, and len(pool) exceeds
// the repeat threshold, every entry with previous.ID is removed before the
// draw. If that leaves nothing, the unfiltered pool is used instead.
//
// Postcondition: Returns an element of pool, or ErrEmptyPool if pool is empty.
func (p *Picker) Pick(pool Pool, previous *OutcomeItem, excludePrevious bool) (OutcomeItem, error) {
	it, _, err := p.pick(pool, previous, excludePrevious)
	return it, err
}

// pick is Pick that also reports whether this draw used a fallback generator.
func (p *Picker) pick(pool Pool, previous *OutcomeItem, excludePrevious bool) (OutcomeItem, bool, error) {
	if len(pool) == 0 {
		return OutcomeItem{}, false, ErrEmptyPool
	}

	f, degraded := p.draw()

	candidates := pool
	if excludePrevious && previous != nil && len(pool) > p.threshold {
		if filtered := without(pool, previous.ID); len(filtered) > 0 {
			candidates = filtered
		}
	}

	idx := int(f * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return candidates[idx], degraded, nil
}

func (p *Picker) draw() (float64, bool) {
	if d, ok := p.src.(drawer); ok {
		return d.Draw()
	}
	return p.src.Float64(), false
}

// Degraded reports whether the underlying source's most recent draw fell
// back to a weaker generator. Sources that cannot degrade always report false.
func (p *Picker) Degraded() bool {
	if r, ok := p.src.(DegradationReporter); ok {
		return r.Degraded()
	}
	return false
}

func without(pool Pool, id string) Pool {
	out := make(Pool, 0, len(pool))
	for _, it := range pool {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
