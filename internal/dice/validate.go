package dice

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Outcome item field limits.
const (
	MaxLabelLength = 50
	MinWeight      = 1
	MaxWeight      = 10
	DefaultWeight  = 1
)

// ValidateCandidate checks a user-submitted candidate against the outcome
// item constraints. It rejects out-of-range weights rather than clamping them.
//
// Postcondition: Returns nil if c may be admitted, or a *ValidationError
// naming the first violated field. Has no side effects.
func ValidateCandidate(c Candidate) error {
	label := strings.TrimSpace(c.Label)
	if label == "" {
		return &ValidationError{Field: "label", Reason: "label is required"}
	}
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return &ValidationError{
			Field:  "label",
			Reason: fmt.Sprintf("label must be at most %d characters", MaxLabelLength),
		}
	}
	if _, err := ParseCategory(c.Category); err != nil {
		return &ValidationError{
			Field:  "category",
			Reason: "category must be one of payer, meal, activity",
		}
	}
	if strings.TrimSpace(c.Emoji) == "" {
		return &ValidationError{Field: "emoji", Reason: "emoji is required"}
	}
	if c.Weight != nil && (*c.Weight < MinWeight || *c.Weight > MaxWeight) {
		return &ValidationError{
			Field:  "weight",
			Reason: fmt.Sprintf("weight must be between %d and %d", MinWeight, MaxWeight),
		}
	}
	return nil
}

// CreateCandidate builds a new outcome item. Label and emoji are trimmed and
// weight is clamped into [MinWeight, MaxWeight]; nothing is rejected.
//
// Postcondition: Returns an item with a fresh id. No shared catalog is touched.
func CreateCandidate(label string, category Category, emoji string, weight int) OutcomeItem {
	return OutcomeItem{
		ID:       NewItemID(category),
		Label:    strings.TrimSpace(label),
		Category: category,
		Emoji:    strings.TrimSpace(emoji),
		Weight:   ClampWeight(weight),
	}
}

// ClampWeight returns w limited to [MinWeight, MaxWeight].
func ClampWeight(w int) int {
	switch {
	case w < MinWeight:
		return MinWeight
	case w > MaxWeight:
		return MaxWeight
	}
	return w
}

// NewItemID returns an id of the form "<category>-<millis base36>-<random>".
// The random suffix keeps ids unique when several are minted in the same millisecond.
func NewItemID(category Category) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s-%s", category, strconv.FormatInt(time.Now().UnixMilli(), 36), suffix)
}
