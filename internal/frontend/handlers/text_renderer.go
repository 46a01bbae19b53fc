package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
	"github.com/cory-johannsen/coupledice/internal/frontend/command"
	"github.com/cory-johannsen/coupledice/internal/frontend/telnet"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

const labelColumn = 11

var categoryTitles = map[dice.Category]string{
	dice.CategoryPayer:    "Who pays",
	dice.CategoryMeal:     "Meal",
	dice.CategoryActivity: "Activity",
}

var categoryColors = map[dice.Category]string{
	dice.CategoryPayer:    telnet.BrightYellow,
	dice.CategoryMeal:     telnet.BrightGreen,
	dice.CategoryActivity: telnet.BrightCyan,
}

// RenderResult formats a composed roll as colored Telnet text.
func RenderResult(res dice.CompleteResult, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("\r\n")
	b.WriteString(telnet.Colorf(telnet.Bold+telnet.BrightMagenta, "🎲 Roll of %s", res.Time().In(loc).Format("2006-01-02 15:04")))
	b.WriteString("\r\n")
	for _, c := range dice.Categories {
		it := res.Pick(c)
		b.WriteString("  ")
		b.WriteString(telnet.PadRight(telnet.Colorize(categoryColors[c], categoryTitles[c]), labelColumn))
		b.WriteString(it.Emoji)
		b.WriteString(" ")
		b.WriteString(telnet.Colorize(telnet.Bold, it.Label))
		if len(it.Actions) > 0 {
			b.WriteString(telnet.Colorf(telnet.Dim, "  [%s]", strings.Join(it.Actions, ", ")))
		}
		b.WriteString("\r\n")
	}
	if res.Degraded {
		b.WriteString(telnet.Colorize(telnet.Yellow, "  (secure randomness was unavailable; this roll used a fallback generator)"))
		b.WriteString("\r\n")
	}
	return b.String()
}

// RenderHistory formats rolls as one line each, newest first.
func RenderHistory(results []dice.CompleteResult, loc *time.Location) string {
	if len(results) == 0 {
		return telnet.Colorize(telnet.Dim, "No rolls yet. Type 'roll' to start.") + "\r\n"
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "  %s  %s %s · %s %s · %s %s\r\n",
			telnet.Colorize(telnet.Dim, r.Time().In(loc).Format("01-02 15:04")),
			r.Payer.Emoji, r.Payer.Label,
			r.Meal.Emoji, r.Meal.Label,
			r.Activity.Emoji, r.Activity.Label,
		)
	}
	return b.String()
}

// RenderItems lists items grouped by category. Items for which isDefault
// returns false are marked as custom and show their id for 'remove'.
func RenderItems(items []dice.OutcomeItem, isDefault func(id string) bool) string {
	var b strings.Builder
	for _, c := range dice.Categories {
		var group []dice.OutcomeItem
		for _, it := range items {
			if it.Category == c {
				group = append(group, it)
			}
		}
		if len(group) == 0 {
			continue
		}
		b.WriteString(telnet.Colorf(categoryColors[c], "%s (%d)", categoryTitles[c], len(group)))
		b.WriteString("\r\n")
		for _, it := range group {
			line := "  " + it.Emoji + " " + it.Label
			if it.Weight > 1 {
				line += telnet.Colorf(telnet.Dim, " ×%d", it.Weight)
			}
			if !isDefault(it.ID) {
				line += telnet.Colorf(telnet.Magenta, "  custom %s", it.ID)
			}
			b.WriteString(line)
			b.WriteString("\r\n")
		}
	}
	if b.Len() == 0 {
		return telnet.Colorize(telnet.Dim, "No options configured.") + "\r\n"
	}
	return b.String()
}

// RenderQuota describes today's free-roll usage.
func RenderQuota(q diceserver.Quota) string {
	if q.Unlimited() {
		return telnet.Colorf(telnet.Green, "Unlimited rolls today (%d so far).", q.Used)
	}
	color := telnet.Green
	if q.Remaining() == 0 {
		color = telnet.Yellow
	}
	return telnet.Colorf(color, "%d of %d free rolls left today (%s).", q.Remaining(), q.Limit, q.Date)
}

// RenderHelp lists the registry's commands grouped by category.
func RenderHelp(reg *command.Registry) string {
	var b strings.Builder
	groups, names := reg.CommandsByCategory()
	for _, name := range names {
		b.WriteString(telnet.Colorize(telnet.Bold, strings.ToUpper(name[:1])+name[1:]))
		b.WriteString("\r\n")
		for _, cmd := range groups[name] {
			usage := cmd.Name
			if cmd.Usage != "" {
				usage += " " + cmd.Usage
			}
			b.WriteString("  ")
			b.WriteString(telnet.PadRight(telnet.Colorize(telnet.Green, usage), 56))
			b.WriteString(cmd.Help)
			if len(cmd.Aliases) > 0 {
				b.WriteString(telnet.Colorf(telnet.Dim, " (%s)", strings.Join(cmd.Aliases, ", ")))
			}
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

// RenderError turns a service error into the message shown to the couple.
// The second return value is false for errors that are not the couple's
// doing and should be logged.
func RenderError(err error) (string, bool) {
	var (
		ce *dice.CategoryError
		ve *dice.ValidationError
	)
	switch {
	case errors.As(err, &ce):
		return telnet.Colorf(telnet.Yellow, "No options configured for %s. Use 'add %s <emoji> <label>' to add one.", ce.Category, ce.Category), true
	case errors.Is(err, dice.ErrEmptyCatalog), errors.Is(err, dice.ErrEmptyPool):
		return telnet.Colorize(telnet.Yellow, "No options configured for this category. Use 'add' to create some."), true
	case errors.Is(err, diceserver.ErrQuotaExceeded):
		return telnet.Colorize(telnet.Yellow, "You have used today's free rolls. Come back tomorrow!"), true
	case errors.As(err, &ve):
		return telnet.Colorize(telnet.Red, "Cannot add that option: "+ve.Reason+"."), true
	case errors.Is(err, diceserver.ErrDefaultItem):
		return telnet.Colorize(telnet.Red, "Built-in options cannot be removed."), true
	case errors.Is(err, postgres.ErrOutcomeNotFound):
		return telnet.Colorize(telnet.Red, "No custom option has that id. Type 'items' to see ids."), true
	}
	return telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."), false
}
