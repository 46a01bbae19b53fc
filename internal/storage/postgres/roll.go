package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

// ErrNoRolls is returned by Last when the account has never rolled.
var ErrNoRolls = errors.New("no rolls recorded")

const rollColumns = `id, payer_id, payer_label, payer_emoji, payer_actions,
		meal_id, meal_label, meal_emoji, meal_actions,
		activity_id, activity_label, activity_emoji, activity_actions,
		rolled_at_ms, roll_date, degraded`

// RollRepository records composed results per account.
type RollRepository struct {
	db DBTX
}

// NewRollRepository creates a RollRepository backed by db.
func NewRollRepository(db DBTX) *RollRepository {
	return &RollRepository{db: db}
}

// Save appends res to the history of accountID.
//
// Precondition: res must come from dice.Composer.RollComplete; res.ID must be a uuid.
func (r *RollRepository) Save(ctx context.Context, accountID int64, res dice.CompleteResult) error {
	id, err := uuid.Parse(res.ID)
	if err != nil {
		return fmt.Errorf("parsing roll id %q: %w", res.ID, err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO rolls (account_id, `+rollColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		accountID, id,
		res.Payer.ID, res.Payer.Label, res.Payer.Emoji, nonNil(res.Payer.Actions),
		res.Meal.ID, res.Meal.Label, res.Meal.Emoji, nonNil(res.Meal.Actions),
		res.Activity.ID, res.Activity.Label, res.Activity.Emoji, nonNil(res.Activity.Actions),
		res.Timestamp, res.Date, res.Degraded,
	)
	if err != nil {
		return fmt.Errorf("inserting roll: %w", err)
	}
	return nil
}

// Last returns the most recent roll of accountID.
//
// Postcondition: Returns ErrNoRolls if the account has no history.
func (r *RollRepository) Last(ctx context.Context, accountID int64) (dice.CompleteResult, error) {
	res, err := scanRoll(r.db.QueryRow(ctx,
		`SELECT `+rollColumns+`
		 FROM rolls WHERE account_id = $1
		 ORDER BY rolled_at_ms DESC, seq DESC LIMIT 1`,
		accountID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dice.CompleteResult{}, ErrNoRolls
		}
		return dice.CompleteResult{}, fmt.Errorf("querying last roll: %w", err)
	}
	return res, nil
}

// CountOnDate returns how many rolls accountID made on date (YYYY-MM-DD).
func (r *RollRepository) CountOnDate(ctx context.Context, accountID int64, date string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rolls WHERE account_id = $1 AND roll_date = $2`,
		accountID, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting rolls: %w", err)
	}
	return n, nil
}

// History returns up to limit rolls of accountID, newest first.
//
// Precondition: limit > 0.
func (r *RollRepository) History(ctx context.Context, accountID int64, limit int) ([]dice.CompleteResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+rollColumns+`
		 FROM rolls WHERE account_id = $1
		 ORDER BY rolled_at_ms DESC, seq DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rolls: %w", err)
	}
	defer rows.Close()

	var out []dice.CompleteResult
	for rows.Next() {
		res, err := scanRoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning roll: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rolls: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoll(row rowScanner) (dice.CompleteResult, error) {
	var (
		res dice.CompleteResult
		id  uuid.UUID
	)
	res.Payer.Category = dice.CategoryPayer
	res.Meal.Category = dice.CategoryMeal
	res.Activity.Category = dice.CategoryActivity
	err := row.Scan(&id,
		&res.Payer.ID, &res.Payer.Label, &res.Payer.Emoji, &res.Payer.Actions,
		&res.Meal.ID, &res.Meal.Label, &res.Meal.Emoji, &res.Meal.Actions,
		&res.Activity.ID, &res.Activity.Label, &res.Activity.Emoji, &res.Activity.Actions,
		&res.Timestamp, &res.Date, &res.Degraded,
	)
	if err != nil {
		return dice.CompleteResult{}, err
	}
	res.ID = id.String()
	return res, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
