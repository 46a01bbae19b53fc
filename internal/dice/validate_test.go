package dice_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

func intPtr(v int) *int { return &v }

func validationField(t *testing.T, err error) string {
	t.Helper()
	var verr *dice.ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Field
}

func TestValidateCandidate_EmptyLabel(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: "", Category: "payer", Emoji: "🍷"})
	require.Error(t, err)
	assert.Equal(t, "label", validationField(t, err))
	assert.Contains(t, err.Error(), "required")
}

func TestValidateCandidate_WhitespaceLabel(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: "   ", Category: "payer", Emoji: "🍷"})
	require.Error(t, err)
	assert.Equal(t, "label", validationField(t, err))
}

func TestValidateCandidate_LabelTooLong(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: strings.Repeat("x", 51), Category: "payer", Emoji: "🍷"})
	require.Error(t, err)
	assert.Equal(t, "label", validationField(t, err))
	assert.Contains(t, err.Error(), "at most 50")
}

func TestValidateCandidate_LabelAtLimit(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: strings.Repeat("é", 50), Category: "payer", Emoji: "🍷"})
	assert.NoError(t, err, "50 runes is within the limit even when multi-byte")
}

func TestValidateCandidate_UnknownCategory(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: "Pizza", Category: "dessert", Emoji: "🍕"})
	require.Error(t, err)
	assert.Equal(t, "category", validationField(t, err))
}

func TestValidateCandidate_LegacyMealCategory(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: "Pizza", Category: "repas", Emoji: "🍕"})
	assert.NoError(t, err)
}

func TestValidateCandidate_MissingEmoji(t *testing.T) {
	err := dice.ValidateCandidate(dice.Candidate{Label: "Pizza", Category: "meal", Emoji: " "})
	require.Error(t, err)
	assert.Equal(t, "emoji", validationField(t, err))
}

func TestValidateCandidate_WeightBounds(t *testing.T) {
	base := dice.Candidate{Label: "Cinema", Category: "activity", Emoji: "🎬"}

	for _, w := range []int{0, 11, -3} {
		c := base
		c.Weight = intPtr(w)
		err := dice.ValidateCandidate(c)
		require.Error(t, err, "weight %d must be rejected", w)
		assert.Equal(t, "weight", validationField(t, err))
	}
	for _, w := range []int{1, 5, 10} {
		c := base
		c.Weight = intPtr(w)
		assert.NoError(t, dice.ValidateCandidate(c), "weight %d must be accepted", w)
	}
	assert.NoError(t, dice.ValidateCandidate(base), "absent weight must be accepted")
}

func TestCreateCandidate_TrimsAndClamps(t *testing.T) {
	it := dice.CreateCandidate("  Sushi  ", dice.CategoryMeal, " 🍣 ", 42)
	assert.Equal(t, "Sushi", it.Label)
	assert.Equal(t, "🍣", it.Emoji)
	assert.Equal(t, dice.CategoryMeal, it.Category)
	assert.Equal(t, dice.MaxWeight, it.Weight)
	assert.True(t, strings.HasPrefix(it.ID, "meal-"), "id %q must carry the category prefix", it.ID)

	low := dice.CreateCandidate("Walk", dice.CategoryActivity, "🚶", -7)
	assert.Equal(t, dice.MinWeight, low.Weight)
}

func TestCreateCandidate_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool, 5000)
	for i := 0; i < 5000; i++ {
		it := dice.CreateCandidate("x", dice.CategoryPayer, "💳", 1)
		require.False(t, seen[it.ID], "duplicate id %q", it.ID)
		seen[it.ID] = true
	}
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]dice.Category{
		"payer":    dice.CategoryPayer,
		" MEAL ":   dice.CategoryMeal,
		"repas":    dice.CategoryMeal,
		"Activity": dice.CategoryActivity,
	} {
		got, err := dice.ParseCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := dice.ParseCategory("")
	assert.Error(t, err)
}

func TestProperty_ClampWeight_AlwaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := rapid.Int().Draw(rt, "weight")
		got := dice.ClampWeight(w)
		assert.GreaterOrEqual(rt, got, dice.MinWeight)
		assert.LessOrEqual(rt, got, dice.MaxWeight)
		if w >= dice.MinWeight && w <= dice.MaxWeight {
			assert.Equal(rt, w, got)
		}
	})
}

func TestProperty_CreatedCandidatesValidate(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		label := rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,40}`).Draw(rt, "label")
		cat := rapid.SampledFrom(dice.Categories).Draw(rt, "category")
		w := rapid.IntRange(-100, 100).Draw(rt, "weight")

		it := dice.CreateCandidate(label, cat, "🎲", w)
		err := dice.ValidateCandidate(dice.Candidate{
			Label:    it.Label,
			Category: string(it.Category),
			Emoji:    it.Emoji,
			Weight:   &it.Weight,
		})
		assert.NoError(rt, err)
	})
}
