package diceserver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/coupledice/internal/catalog"
	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
	"github.com/cory-johannsen/coupledice/internal/observability"
	"github.com/cory-johannsen/coupledice/internal/scripting"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

const couple int64 = 42

type fixture struct {
	svc      *diceserver.Service
	outcomes *failingOutcomes
	rolls    *failingRolls
	clock    *diceserver.FixedClock
	reg      *prometheus.Registry
}

type fixtureOpts struct {
	defaults  *catalog.Registry
	dailyFree int
	filter    diceserver.CatalogFilter
	loc       *time.Location
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if o.defaults == nil {
		o.defaults = catalog.Default()
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	logger := zaptest.NewLogger(t)
	clock := diceserver.NewFixedClock(time.Date(2026, 10, 17, 21, 30, 0, 0, time.UTC))
	composer := dice.NewComposer(
		dice.NewPicker(dice.NewSeededSource(17), dice.DefaultRepeatThreshold),
		dice.DefaultShares, clock, o.loc,
	)
	reg := prometheus.NewRegistry()
	f := &fixture{
		outcomes: &failingOutcomes{MemoryOutcomes: diceserver.NewMemoryOutcomes()},
		rolls:    &failingRolls{MemoryRolls: diceserver.NewMemoryRolls()},
		clock:    clock,
		reg:      reg,
	}
	f.svc = diceserver.NewService(diceserver.Options{
		Defaults:       o.defaults,
		Outcomes:       f.outcomes,
		Rolls:          f.rolls,
		Roller:         dice.NewLoggedComposer(composer, logger),
		Filter:         o.filter,
		Clock:          clock,
		Location:       o.loc,
		DailyFreeRolls: o.dailyFree,
		Metrics:        observability.NewMetrics(reg),
		Logger:         logger,
	})
	return f
}

func TestService_RollPersistsAndChainsPrevious(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	first, err := f.svc.Roll(ctx, couple)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", first.Date)

	f.clock.Advance(time.Minute)
	second, err := f.svc.Roll(ctx, couple)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Default catalog pools are larger than the threshold, so repeats are excluded.
	assert.NotEqual(t, first.Payer.ID, second.Payer.ID)
	assert.NotEqual(t, first.Meal.ID, second.Meal.ID)
	assert.NotEqual(t, first.Activity.ID, second.Activity.ID)

	last, err := f.svc.Last(ctx, couple)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, last.ID)

	assert.Equal(t, 2.0, rollCount(t, f.reg, "ok"))
}

func rollCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "coupledice_rolls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestService_LastWithoutHistory(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	last, err := f.svc.Last(context.Background(), couple)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestService_DailyQuota(t *testing.T) {
	f := newFixture(t, fixtureOpts{dailyFree: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Roll(ctx, couple)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	q, err := f.svc.Quota(ctx, couple)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Used)
	assert.Equal(t, 0, q.Remaining())

	_, err = f.svc.Roll(ctx, couple)
	assert.ErrorIs(t, err, diceserver.ErrQuotaExceeded)
	assert.Equal(t, 1.0, rollCount(t, f.reg, "quota"))

	// Another couple is unaffected.
	_, err = f.svc.Roll(ctx, couple+1)
	assert.NoError(t, err)

	// Next calendar day resets the count.
	f.clock.Advance(3 * time.Hour)
	_, err = f.svc.Roll(ctx, couple)
	assert.NoError(t, err)
}

func TestService_QuotaDayFollowsLocation(t *testing.T) {
	paris := time.FixedZone("CEST", 2*60*60)
	f := newFixture(t, fixtureOpts{dailyFree: 1, loc: paris})
	ctx := context.Background()

	// 21:30 UTC is 23:30 in Paris on 2026-10-17.
	res, err := f.svc.Roll(ctx, couple)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17", res.Date)

	// 22:30 UTC is already 2026-10-18 in Paris, so a new day's quota applies.
	f.clock.Advance(time.Hour)
	res, err = f.svc.Roll(ctx, couple)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", res.Date)
}

func TestService_UnlimitedQuota(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	q, err := f.svc.Quota(context.Background(), couple)
	require.NoError(t, err)
	assert.True(t, q.Unlimited())
	assert.Equal(t, -1, q.Remaining())
}

func TestService_EmptyCategory(t *testing.T) {
	reg := catalog.NewRegistry()
	require.NoError(t, reg.Register(dice.OutcomeItem{ID: "p", Label: "Me", Category: dice.CategoryPayer, Emoji: "🙋", Weight: 1}))
	f := newFixture(t, fixtureOpts{defaults: reg})

	_, err := f.svc.Roll(context.Background(), couple)
	require.ErrorIs(t, err, dice.ErrEmptyPool)
	var ce *dice.CategoryError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, dice.CategoryMeal, ce.Category)
	assert.Zero(t, f.rolls.Len(couple), "failed rolls are not recorded")
	assert.Equal(t, 1.0, rollCount(t, f.reg, "empty"))
}

func TestService_EmptyCatalog(t *testing.T) {
	f := newFixture(t, fixtureOpts{defaults: catalog.NewRegistry()})
	_, err := f.svc.Roll(context.Background(), couple)
	assert.ErrorIs(t, err, dice.ErrEmptyCatalog)
}

func TestService_CustomItemsFillMissingCategories(t *testing.T) {
	reg := catalog.NewRegistry()
	require.NoError(t, reg.Register(dice.OutcomeItem{ID: "p", Label: "Me", Category: dice.CategoryPayer, Emoji: "🙋", Weight: 1}))
	f := newFixture(t, fixtureOpts{defaults: reg})
	ctx := context.Background()

	w := 3
	_, err := f.svc.AddItem(ctx, couple, dice.Candidate{Label: "Ramen", Category: "repas", Emoji: "🍜", Weight: &w})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, couple, dice.Candidate{Label: "Bowling", Category: "activity", Emoji: "🎳"})
	require.NoError(t, err)

	res, err := f.svc.Roll(ctx, couple)
	require.NoError(t, err)
	assert.Equal(t, "Ramen", res.Meal.Label)
	assert.Equal(t, "Bowling", res.Activity.Label)
}

func TestService_AddItemValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	bad := 11
	_, err := f.svc.AddItem(context.Background(), couple, dice.Candidate{Label: "Sushi", Category: "meal", Emoji: "🍣", Weight: &bad})
	var ve *dice.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "weight", ve.Field)
	items, err := f.outcomes.ListByAccount(context.Background(), couple)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestService_AddItemDefaultsWeight(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	item, err := f.svc.AddItem(context.Background(), couple, dice.Candidate{Label: "  Tapas ", Category: "meal", Emoji: "🫒"})
	require.NoError(t, err)
	assert.Equal(t, "Tapas", item.Label)
	assert.Equal(t, dice.DefaultWeight, item.Weight)
	assert.Equal(t, dice.CategoryMeal, item.Category)
}

func TestService_ItemsAndRemove(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	defaults := catalog.Default().Len()

	item, err := f.svc.AddItem(ctx, couple, dice.Candidate{Label: "Karaoke", Category: "activity", Emoji: "🎤"})
	require.NoError(t, err)

	items, err := f.svc.Items(ctx, couple)
	require.NoError(t, err)
	assert.Len(t, items, defaults+1)
	assert.Equal(t, item.ID, items[len(items)-1].ID)
	assert.False(t, f.svc.IsDefault(item.ID))

	assert.ErrorIs(t, f.svc.RemoveItem(ctx, couple, items[0].ID), diceserver.ErrDefaultItem)
	require.NoError(t, f.svc.RemoveItem(ctx, couple, item.ID))
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, couple, item.ID), postgres.ErrOutcomeNotFound)
}

func TestService_StorageErrors(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.outcomes.listErr = errStorage
	_, err := f.svc.Roll(context.Background(), couple)
	assert.ErrorIs(t, err, errStorage)
	assert.Equal(t, 1.0, rollCount(t, f.reg, "error"))

	f.outcomes.listErr = nil
	f.rolls.saveErr = errStorage
	_, err = f.svc.Roll(context.Background(), couple)
	assert.ErrorIs(t, err, errStorage)
}

func TestService_HistoryLimits(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	for i := 0; i < diceserver.MaxHistoryLimit+5; i++ {
		_, err := f.svc.Roll(ctx, couple)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	hist, err := f.svc.History(ctx, couple, 0)
	require.NoError(t, err)
	assert.Len(t, hist, diceserver.DefaultHistoryLimit)
	assert.Greater(t, hist[0].Timestamp, hist[1].Timestamp)

	hist, err = f.svc.History(ctx, couple, 1000)
	require.NoError(t, err)
	assert.Len(t, hist, diceserver.MaxHistoryLimit)
}

func TestService_LuaRulesNarrowCatalog(t *testing.T) {
	filter := scripting.NewFilter(zaptest.NewLogger(t))
	t.Cleanup(filter.Close)
	require.NoError(t, filter.LoadString(`
		function filter_item(item, ctx)
			if item.category == "activity" and ctx.hour >= 21 then
				return item.id == "act-movie-night"
			end
			return true
		end
	`, 0))

	reg := catalog.NewRegistry()
	for _, it := range []dice.OutcomeItem{
		{ID: "pay-me", Label: "Me", Category: dice.CategoryPayer, Emoji: "🙋", Weight: 1},
		{ID: "meal-pizza", Label: "Pizza", Category: dice.CategoryMeal, Emoji: "🍕", Weight: 1},
		{ID: "act-hike", Label: "Hike", Category: dice.CategoryActivity, Emoji: "🥾", Weight: 9},
		{ID: "act-movie-night", Label: "Movie night", Category: dice.CategoryActivity, Emoji: "🎬", Weight: 1},
	} {
		require.NoError(t, reg.Register(it))
	}
	f := newFixture(t, fixtureOpts{defaults: reg, filter: filter})

	for i := 0; i < 20; i++ {
		res, err := f.svc.Roll(context.Background(), couple)
		require.NoError(t, err)
		assert.Equal(t, "act-movie-night", res.Activity.ID)
		f.clock.Advance(time.Second)
	}
}

func TestProperty_RollAlwaysCompleteAndRecorded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t, fixtureOpts{})
		n := rapid.IntRange(1, 15).Draw(rt, "rolls")
		for i := 0; i < n; i++ {
			res, err := f.svc.Roll(context.Background(), couple)
			if err != nil {
				rt.Fatalf("roll %d: %v", i, err)
			}
			if res.Payer.Category != dice.CategoryPayer || res.Meal.Category != dice.CategoryMeal || res.Activity.Category != dice.CategoryActivity {
				rt.Fatalf("category mismatch in %v", res)
			}
			f.clock.Advance(time.Duration(rapid.IntRange(1, 3600).Draw(rt, "gap")) * time.Second)
		}
		if got := f.rolls.Len(couple); got != n {
			rt.Fatalf("recorded %d rolls, want %d", got, n)
		}
	})
}

func TestService_ConcurrentRollsSameAccountAreSerialized(t *testing.T) {
	f := newFixture(t, fixtureOpts{dailyFree: 5})
	ctx := context.Background()

	const partners = 8
	errs := make(chan error, partners)
	for i := 0; i < partners; i++ {
		go func() {
			_, err := f.svc.Roll(ctx, couple)
			errs <- err
		}()
	}
	var ok, quota int
	for i := 0; i < partners; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, diceserver.ErrQuotaExceeded):
			quota++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 3, quota)
}
