package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/coupledice/internal/catalog"
	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
	"github.com/cory-johannsen/coupledice/internal/frontend/command"
	"github.com/cory-johannsen/coupledice/internal/frontend/telnet"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
	"github.com/cory-johannsen/coupledice/internal/testutil"
)

// loggedIn skips authentication and runs a DiceHandler for a fixed account.
type loggedIn struct {
	h    *DiceHandler
	acct postgres.Account
}

func (l loggedIn) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	return l.h.Run(ctx, conn, l.acct)
}

func newDiceClient(t *testing.T, defaults *catalog.Registry, dailyFree int) (*testutil.TelnetClient, *diceserver.MemoryRolls) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := diceserver.NewFixedClock(time.Date(2026, 10, 17, 21, 30, 0, 0, time.UTC))
	rolls := diceserver.NewMemoryRolls()
	svc := diceserver.NewService(diceserver.Options{
		Defaults: defaults,
		Outcomes: diceserver.NewMemoryOutcomes(),
		Rolls:    rolls,
		Roller: dice.NewComposer(
			dice.NewPicker(dice.NewSeededSource(3), dice.DefaultRepeatThreshold),
			dice.DefaultShares, clock, time.UTC,
		),
		Clock:          clock,
		DailyFreeRolls: dailyFree,
		Logger:         logger,
	})
	h := NewDiceHandler(svc, command.DefaultRegistry(), logger)
	addr := testServer(t, loggedIn{h: h, acct: postgres.Account{ID: 1, Username: "duo"}})
	c := testutil.NewTelnetClient(t, addr)
	c.ReadUntil("'help' for all commands.", 3*time.Second)
	return c, rolls
}

// sendCommand waits for the prompt, sends line, and returns the stripped output
// up to until.
func sendCommand(t *testing.T, c *testutil.TelnetClient, line, until string) string {
	t.Helper()
	c.ReadUntil("[duo]> ", 2*time.Second)
	c.Send(line)
	return c.Expect(until, 2*time.Second)
}

func TestDiceHandler_RollShowsEveryCategory(t *testing.T) {
	c, rolls := newDiceClient(t, catalog.Default(), 0)

	out := sendCommand(t, c, "roll", "Activity")
	assert.Contains(t, out, "Roll of 2026-10-17 21:30")
	assert.Contains(t, out, "Who pays")
	assert.Contains(t, out, "Meal")

	sendCommand(t, c, "quit", "Goodbye")
	assert.Equal(t, 1, rolls.Len(1))
}

func TestDiceHandler_AliasRollsAndLastRepeatsIt(t *testing.T) {
	c, _ := newDiceClient(t, catalog.Default(), 0)

	sendCommand(t, c, "lancer", "Activity")
	out := sendCommand(t, c, "last", "Activity")
	assert.Contains(t, out, "Roll of 2026-10-17 21:30")
}

func TestDiceHandler_LastWithoutRolls(t *testing.T) {
	c, _ := newDiceClient(t, catalog.Default(), 0)
	sendCommand(t, c, "last", "No rolls yet")
}

func TestDiceHandler_QuotaExhausted(t *testing.T) {
	c, rolls := newDiceClient(t, catalog.Default(), 1)

	out := sendCommand(t, c, "quota", "(2026-10-17)")
	assert.Contains(t, out, "1 of 1 free rolls left today")

	sendCommand(t, c, "roll", "Activity")
	sendCommand(t, c, "roll", "Come back tomorrow!")
	out = sendCommand(t, c, "q", "left today")
	assert.Contains(t, out, "0 of 1")

	sendCommand(t, c, "quit", "Goodbye")
	assert.Equal(t, 1, rolls.Len(1))
}

func TestDiceHandler_EmptyCategoryIsReported(t *testing.T) {
	defaults := catalog.NewRegistry()
	require.NoError(t, defaults.Register(dice.CreateCandidate("Moi", dice.CategoryPayer, "🙋", 1)))
	require.NoError(t, defaults.Register(dice.CreateCandidate("Pizza", dice.CategoryMeal, "🍕", 1)))
	c, rolls := newDiceClient(t, defaults, 0)

	out := sendCommand(t, c, "roll", "to add one.")
	assert.Contains(t, out, "No options configured for activity.")

	sendCommand(t, c, "add activity 🎬 Cinéma", "Added")
	out = sendCommand(t, c, "roll", "Cinéma")
	assert.Contains(t, out, "Activity")

	sendCommand(t, c, "quit", "Goodbye")
	assert.Equal(t, 1, rolls.Len(1))
}

func TestDiceHandler_EmptyCatalogIsReported(t *testing.T) {
	c, _ := newDiceClient(t, catalog.NewRegistry(), 0)
	sendCommand(t, c, "roll", "No options configured for this category.")
}

func TestDiceHandler_AddListRemove(t *testing.T) {
	c, _ := newDiceClient(t, catalog.Default(), 0)

	out := sendCommand(t, c, "add meal 🍣 Sushi bar *3", "to meal")
	assert.Contains(t, out, "Sushi bar to meal")

	out = sendCommand(t, c, "items meal", "Sushi bar")
	assert.Contains(t, out, "Pizza")

	// Custom items show their id after the label.
	rest := c.Expect("\r\n", time.Second)
	assert.Contains(t, rest, "×3")
	idx := strings.Index(rest, "custom ")
	require.GreaterOrEqual(t, idx, 0)
	id := strings.TrimSpace(rest[idx+len("custom "):])
	assert.True(t, strings.HasPrefix(id, "meal-"))

	sendCommand(t, c, "remove "+id, "Removed")
	sendCommand(t, c, "remove "+id, "No custom option has that id")
	sendCommand(t, c, "remove meal-pizza", "Built-in options cannot be removed.")
}

func TestDiceHandler_AddRejectsInvalidCandidates(t *testing.T) {
	c, _ := newDiceClient(t, catalog.Default(), 0)

	sendCommand(t, c, "add dessert 🍰 Tarte", "Cannot add that option")
	sendCommand(t, c, "add meal 🍣 Sushi *11", "Cannot add that option")
	sendCommand(t, c, "add meal", "usage: add")
	sendCommand(t, c, "add meal 🍣 Sushi *many", "not a whole number")
}

func TestDiceHandler_History(t *testing.T) {
	c, _ := newDiceClient(t, catalog.Default(), 0)

	sendCommand(t, c, "history", "No rolls yet")
	sendCommand(t, c, "roll", "Activity")
	sendCommand(t, c, "roll", "Activity")
	out := sendCommand(t, c, "hist 1", "10-17 21:30")
	assert.NotContains(t, out, "No rolls yet")
	sendCommand(t, c, "history zero", "Usage: history [count]")
}

func TestDiceHandler_HelpAndUnknown(t *testing.T) {
	c, _ := newDiceClient(t, catalog.Default(), 0)

	out := sendCommand(t, c, "help", "Leave")
	assert.Contains(t, out, "roll")
	assert.Contains(t, out, "add <payer|meal|activity>")

	sendCommand(t, c, "dance", "I don't know 'dance'")
	sendCommand(t, c, "bye", "Goodbye! Enjoy your evening.")
}
