// Package handlers provides Telnet session handling and command processing.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/coupledice/internal/frontend/telnet"
	"github.com/cory-johannsen/coupledice/internal/storage/postgres"
)

// AccountStore defines the account persistence operations required by AuthHandler.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (postgres.Account, error)
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
}

// AccountSession runs the authenticated part of a session.
type AccountSession interface {
	Run(ctx context.Context, conn *telnet.Conn, acct postgres.Account) error
}

const welcomeBanner = `
` + telnet.Bold + telnet.BrightMagenta + `
    ___     ___
   | o |   | o o|     Couple Dice
   |  o|   |    |
   |o  |   | o o|` + telnet.Reset + `

` + telnet.BrightYellow + `  Who pays, what to eat, what to do. Let the dice decide.` + telnet.Reset + `

  Type ` + telnet.Green + `login <username>` + telnet.Reset + ` to connect.
  Type ` + telnet.Green + `register <username> <password>` + telnet.Reset + ` to create a shared account.
  Type ` + telnet.Green + `quit` + telnet.Reset + ` to disconnect.
`

// AuthHandler implements telnet.SessionHandler and processes the
// authentication loop for a connected client.
type AuthHandler struct {
	accounts AccountStore
	session  AccountSession
	logger   *zap.Logger
}

// NewAuthHandler creates an AuthHandler that hands authenticated couples to session.
//
// Precondition: accounts, session, and logger must be non-nil.
func NewAuthHandler(accounts AccountStore, session AccountSession, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		session:  session,
		logger:   logger,
	}
}

// HandleSession implements telnet.SessionHandler. It shows the welcome banner
// and processes authentication commands until the couple logs in or quits.
//
// Postcondition: Returns nil on clean quit, or an error if the session ended abnormally.
func (h *AuthHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	addr := conn.RemoteAddr().String()

	if err := conn.Write([]byte(strings.ReplaceAll(welcomeBanner, "\n", "\r\n"))); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		default:
		}

		if err := conn.WritePrompt(telnet.Colorize(telnet.White, "> ")); err != nil {
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

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "quit", "exit":
			_ = conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye!"))
			h.logger.Info("client quit",
				zap.String("remote_addr", addr),
				zap.Duration("session_duration", time.Since(start)),
			)
			return nil

		case "login":
			acct, ok := h.handleLogin(ctx, conn, args)
			if !ok {
				continue
			}
			h.logger.Info("couple logged in",
				zap.String("remote_addr", addr),
				zap.String("username", acct.Username),
				zap.Duration("login_time", time.Since(start)),
			)
			return h.session.Run(ctx, conn, acct)

		case "register":
			h.handleRegister(ctx, conn, args)

		case "help":
			h.showHelp(conn)

		default:
			_ = conn.WriteLine(telnet.Colorf(telnet.Red, "Unknown command: %s. Type 'help' for available commands.", cmd))
		}
	}
}

// handleLogin authenticates a couple. When only a username is given the
// password is prompted for with client echo suppressed. Failures are
// reported to the client and leave the auth loop running.
//
// Postcondition: Returns (acct, true) on success.
func (h *AuthHandler) handleLogin(ctx context.Context, conn *telnet.Conn, args []string) (postgres.Account, bool) {
	if len(args) == 0 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Usage: login <username> [password]"))
		return postgres.Account{}, false
	}

	username := args[0]
	var password string
	if len(args) >= 2 {
		password = args[1]
	} else {
		if err := conn.WritePrompt("Password: "); err != nil {
			return postgres.Account{}, false
		}
		pw, err := conn.ReadPassword()
		if err != nil {
			return postgres.Account{}, false
		}
		password = pw
	}
	if password == "" {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Password must not be empty."))
		return postgres.Account{}, false
	}

	acct, err := h.accounts.Authenticate(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrAccountNotFound):
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Account not found. Use 'register' to create one."))
		case errors.Is(err, postgres.ErrInvalidCredentials):
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Invalid password."))
		default:
			h.logger.Error("authentication error", zap.Error(err))
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
		}
		return postgres.Account{}, false
	}

	_ = conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "Welcome back, %s!", acct.Username))
	return acct, true
}

func (h *AuthHandler) handleRegister(ctx context.Context, conn *telnet.Conn, args []string) {
	if len(args) < 2 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Usage: register <username> <password>"))
		return
	}

	username := args[0]
	password := args[1]

	if len(username) < 3 || len(username) > 32 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Username must be 3-32 characters."))
		return
	}
	if len(password) < 6 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Password must be at least 6 characters."))
		return
	}

	acct, err := h.accounts.Create(ctx, username, password)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountExists) {
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "That username is already taken."))
			return
		}
		h.logger.Error("registration error", zap.Error(err))
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
		return
	}

	h.logger.Info("account registered", zap.Int64("account_id", acct.ID))
	_ = conn.WriteLine(telnet.Colorf(telnet.BrightGreen,
		"Account created: %s. You may now 'login'.", acct.Username))
}

func (h *AuthHandler) showHelp(conn *telnet.Conn) {
	_ = conn.WriteLines(
		telnet.Colorize(telnet.Bold, "Available commands:"),
		"  "+telnet.PadRight(telnet.Colorize(telnet.Green, "login <username> [password]"), 32)+"Log in to your shared account",
		"  "+telnet.PadRight(telnet.Colorize(telnet.Green, "register <username> <password>"), 32)+"Create a shared account",
		"  "+telnet.PadRight(telnet.Colorize(telnet.Green, "help"), 32)+"Show this help",
		"  "+telnet.PadRight(telnet.Colorize(telnet.Green, "quit"), 32)+"Disconnect",
	)
}
