package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
	"github.com/cory-johannsen/coupledice/internal/frontend/command"
	"github.com/cory-johannsen/coupledice/internal/frontend/telnet"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

// DiceService is the roll service surface used by DiceHandler.
type DiceService interface {
	Roll(ctx context.Context, accountID int64) (dice.CompleteResult, error)
	AddItem(ctx context.Context, accountID int64, c dice.Candidate) (dice.OutcomeItem, error)
	Items(ctx context.Context, accountID int64) ([]dice.OutcomeItem, error)
	IsDefault(id string) bool
	RemoveItem(ctx context.Context, accountID int64, id string) error
	Last(ctx context.Context, accountID int64) (*dice.CompleteResult, error)
	History(ctx context.Context, accountID int64, limit int) ([]dice.CompleteResult, error)
	Quota(ctx context.Context, accountID int64) (diceserver.Quota, error)
	Location() *time.Location
}

var _ DiceService = (*diceserver.Service)(nil)

// errQuit ends the command loop cleanly.
var errQuit = errors.New("quit")

// DiceHandler runs the command loop of a logged-in couple.
type DiceHandler struct {
	service  DiceService
	commands *command.Registry
	logger   *zap.Logger
}

// NewDiceHandler creates a DiceHandler.
//
// Precondition: service, commands, and logger must be non-nil.
func NewDiceHandler(service DiceService, commands *command.Registry, logger *zap.Logger) *DiceHandler {
	return &DiceHandler{service: service, commands: commands, logger: logger}
}

// Run implements AccountSession. It reads commands until the couple quits,
// the connection drops, or ctx is cancelled.
//
// Postcondition: Returns nil on quit.
func (h *DiceHandler) Run(ctx context.Context, conn *telnet.Conn, acct postgres.Account) error {
	log := h.logger.With(zap.Int64("account_id", acct.ID))
	_ = conn.WriteLine(telnet.Colorize(telnet.Dim, "Type 'roll' to let the dice decide, or 'help' for all commands."))

	prompt := telnet.Colorf(telnet.BrightMagenta, "[%s]> ", acct.Username)
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		default:
		}

		if err := conn.WritePrompt(prompt); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}
		line, err := conn.ReadLine()
		if errors.Is(err, telnet.ErrLineTooLong) {
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "That line is too long."))
			continue
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		parsed := command.Parse(line)
		if parsed.Command == "" {
			continue
		}
		cmd, ok := h.commands.Resolve(parsed.Command)
		if !ok {
			_ = conn.WriteLine(telnet.Colorf(telnet.Red, "I don't know '%s'. Type 'help' for available commands.", parsed.Command))
			continue
		}

		out, err := h.dispatch(ctx, acct, cmd, parsed)
		if errors.Is(err, errQuit) {
			_ = conn.WriteLine(telnet.Colorize(telnet.Cyan, out))
			log.Info("couple quit")
			return nil
		}
		if err != nil {
			msg, expected := RenderError(err)
			if !expected {
				log.Error("command failed", zap.String("command", cmd.Name), zap.Error(err))
			}
			out = msg
		}
		if err := conn.Write([]byte(out + "\r\n")); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
}

// dispatch runs one resolved command and returns its rendered output.
func (h *DiceHandler) dispatch(ctx context.Context, acct postgres.Account, cmd *command.Command, p command.ParseResult) (string, error) {
	loc := h.service.Location()
	switch cmd.Handler {
	case command.HandlerRoll:
		res, err := h.service.Roll(ctx, acct.ID)
		if err != nil {
			return "", err
		}
		return RenderResult(res, loc), nil

	case command.HandlerLast:
		res, err := h.service.Last(ctx, acct.ID)
		if err != nil {
			return "", err
		}
		if res == nil {
			return telnet.Colorize(telnet.Dim, "No rolls yet. Type 'roll' to start."), nil
		}
		return RenderResult(*res, loc), nil

	case command.HandlerHistory:
		limit := 0
		if len(p.Args) > 0 {
			n, err := strconv.Atoi(p.Args[0])
			if err != nil || n < 1 {
				return telnet.Colorize(telnet.Red, "Usage: history [count]"), nil
			}
			limit = n
		}
		hist, err := h.service.History(ctx, acct.ID, limit)
		if err != nil {
			return "", err
		}
		return RenderHistory(hist, loc), nil

	case command.HandlerQuota:
		q, err := h.service.Quota(ctx, acct.ID)
		if err != nil {
			return "", err
		}
		return RenderQuota(q), nil

	case command.HandlerAdd:
		c, err := command.ParseAdd(p.Args)
		if err != nil {
			return telnet.Colorize(telnet.Red, err.Error()), nil
		}
		item, err := h.service.AddItem(ctx, acct.ID, c)
		if err != nil {
			return "", err
		}
		return telnet.Colorf(telnet.BrightGreen, "Added %s %s to %s (id %s).", item.Emoji, item.Label, item.Category, item.ID), nil

	case command.HandlerItems:
		items, err := h.service.Items(ctx, acct.ID)
		if err != nil {
			return "", err
		}
		if len(p.Args) > 0 {
			c, err := dice.ParseCategory(p.Args[0])
			if err != nil {
				return telnet.Colorize(telnet.Red, "Usage: items [payer|meal|activity]"), nil
			}
			items = onlyCategory(items, c)
		}
		return RenderItems(items, h.service.IsDefault), nil

	case command.HandlerRemove:
		if len(p.Args) != 1 {
			return telnet.Colorize(telnet.Red, "Usage: remove <id>"), nil
		}
		if err := h.service.RemoveItem(ctx, acct.ID, p.Args[0]); err != nil {
			return "", err
		}
		return telnet.Colorf(telnet.Green, "Removed %s.", p.Args[0]), nil

	case command.HandlerHelp:
		return RenderHelp(h.commands), nil

	case command.HandlerQuit:
		return "Goodbye! Enjoy your evening.", errQuit
	}
	return "", fmt.Errorf("no handler for command %q", cmd.Name)
}

func onlyCategory(items []dice.OutcomeItem, c dice.Category) []dice.OutcomeItem {
	var out []dice.OutcomeItem
	for _, it := range items {
		if it.Category == c {
			out = append(out, it)
		}
	}
	return out
}
