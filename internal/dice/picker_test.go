package dice_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

func distinctPool(n int) dice.Pool {
	pool := make(dice.Pool, n)
	for i := range pool {
		pool[i] = item(fmt.Sprintf("a%d", i), dice.CategoryActivity, 1)
	}
	return pool
}

func TestPick_EmptyPool(t *testing.T) {
	p := dice.NewPicker(dice.NewSeededSource(1), dice.DefaultRepeatThreshold)
	_, err := p.Pick(nil, nil, true)
	assert.True(t, errors.Is(err, dice.ErrEmptyPool))
}

func TestPick_IndexFromFraction(t *testing.T) {
	pool := distinctPool(4)
	p := dice.NewPicker(dice.NewSequenceSource(0.0, 0.26, 0.5, 0.999999), dice.DefaultRepeatThreshold)
	for _, want := range []string{"a0", "a1", "a2", "a3"} {
		got, err := p.Pick(pool, nil, false)
		require.NoError(t, err)
		assert.Equal(t, want, got.ID)
	}
}

func TestPick_WeightProportionality(t *testing.T) {
	items := []dice.OutcomeItem{
		item("A", dice.CategoryPayer, 1),
		item("B", dice.CategoryPayer, 9),
	}
	pool := dice.BuildCategoryPools(items, dice.DefaultShares)[dice.CategoryPayer]
	p := dice.NewPicker(dice.NewSeededSource(20261017), dice.DefaultRepeatThreshold)

	counts := map[string]int{}
	const trials = 10000
	for i := 0; i < trials; i++ {
		got, err := p.Pick(pool, nil, false)
		require.NoError(t, err)
		counts[got.ID]++
	}
	require.Greater(t, counts["A"], 0)
	ratio := float64(counts["B"]) / float64(counts["A"])
	assert.InDelta(t, 9.0, ratio, 9.0*0.15, "B/A ratio %.2f (A=%d B=%d)", ratio, counts["A"], counts["B"])
}

func TestPick_AntiRepetitionOnLargePool(t *testing.T) {
	pool := distinctPool(6)
	prev := pool[2]
	p := dice.NewPicker(dice.NewSeededSource(7), dice.DefaultRepeatThreshold)
	for i := 0; i < 2000; i++ {
		got, err := p.Pick(pool, &prev, true)
		require.NoError(t, err)
		require.NotEqual(t, prev.ID, got.ID)
	}
}

func TestPick_AntiRepetitionDisabledByFlag(t *testing.T) {
	pool := distinctPool(6)
	prev := pool[0]
	p := dice.NewPicker(dice.NewSequenceSource(0.0), dice.DefaultRepeatThreshold)
	got, err := p.Pick(pool, &prev, false)
	require.NoError(t, err)
	assert.Equal(t, prev.ID, got.ID)
}

func TestPick_SmallPoolBypassesAntiRepetition(t *testing.T) {
	pool := distinctPool(5)
	prev := pool[0]
	p := dice.NewPicker(dice.NewSequenceSource(0.0), dice.DefaultRepeatThreshold)
	got, err := p.Pick(pool, &prev, true)
	require.NoError(t, err)
	assert.Equal(t, prev.ID, got.ID, "pools of 5 or fewer may repeat the previous pick")
}

func TestPick_FallsBackWhenFilterEmptiesPool(t *testing.T) {
	only := item("solo", dice.CategoryMeal, 1)
	pool := make(dice.Pool, 10)
	for i := range pool {
		pool[i] = only
	}
	p := dice.NewPicker(dice.NewSeededSource(3), dice.DefaultRepeatThreshold)
	got, err := p.Pick(pool, &only, true)
	require.NoError(t, err)
	assert.Equal(t, "solo", got.ID)
}

func TestPick_CustomThreshold(t *testing.T) {
	pool := distinctPool(3)
	prev := pool[0]
	p := dice.NewPicker(dice.NewSequenceSource(0.0), 2)
	got, err := p.Pick(pool, &prev, true)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}

func TestPick_NegativeThresholdUsesDefault(t *testing.T) {
	pool := distinctPool(5)
	prev := pool[0]
	p := dice.NewPicker(dice.NewSequenceSource(0.0), -1)
	got, err := p.Pick(pool, &prev, true)
	require.NoError(t, err)
	assert.Equal(t, "a0", got.ID)
}

func TestPicker_DegradedFollowsSource(t *testing.T) {
	assert.False(t, dice.NewPicker(dice.NewSeededSource(1), 5).Degraded())
}

func TestProperty_Pick_NeverRepeatsOnLargePool(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(6, 40).Draw(rt, "n")
		pool := distinctPool(n)
		prevIdx := rapid.IntRange(0, n-1).Draw(rt, "prev")
		seed := rapid.Uint64().Draw(rt, "seed")
		prev := pool[prevIdx]

		p := dice.NewPicker(dice.NewSeededSource(seed), dice.DefaultRepeatThreshold)
		got, err := p.Pick(pool, &prev, true)
		require.NoError(rt, err)
		assert.NotEqual(rt, prev.ID, got.ID)
	})
}

func TestProperty_Pick_ReturnsPoolMember(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		pool := distinctPool(n)
		f := rapid.Float64Range(0, 0.9999999).Draw(rt, "fraction")

		p := dice.NewPicker(dice.NewSequenceSource(f), dice.DefaultRepeatThreshold)
		got, err := p.Pick(pool, nil, true)
		require.NoError(rt, err)
		assert.Greater(rt, pool.Count(got.ID), 0)
	})
}
