package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

// ErrOutcomeNotFound is returned when a custom outcome lookup or delete matches nothing.
var ErrOutcomeNotFound = errors.New("outcome not found")

// ErrOutcomeExists is returned when an outcome id is already stored.
var ErrOutcomeExists = errors.New("outcome already exists")

// OutcomeRepository persists the custom outcome items a couple adds on top
// of the default catalog.
type OutcomeRepository struct {
	db DBTX
}

// NewOutcomeRepository creates an OutcomeRepository backed by db.
func NewOutcomeRepository(db DBTX) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create stores item for accountID.
//
// Precondition: item must have passed dice.ValidateCandidate and carry a non-empty ID.
// Postcondition: Returns ErrOutcomeExists if the id is taken.
func (r *OutcomeRepository) Create(ctx context.Context, accountID int64, item dice.OutcomeItem) error {
	actions := item.Actions
	if actions == nil {
		actions = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO outcomes (id, account_id, label, category, emoji, weight, actions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, accountID, item.Label, string(item.Category), item.Emoji, item.Weight, actions,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrOutcomeExists
		}
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// ListByAccount returns the custom items of accountID in creation order.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *OutcomeRepository) ListByAccount(ctx context.Context, accountID int64) ([]dice.OutcomeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, label, category, emoji, weight, actions
		 FROM outcomes WHERE account_id = $1 ORDER BY created_at ASC, id ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var out []dice.OutcomeItem
	for rows.Next() {
		var (
			it       dice.OutcomeItem
			category string
		)
		if err := rows.Scan(&it.ID, &it.Label, &category, &it.Emoji, &it.Weight, &it.Actions); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		it.Category = dice.Category(category)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcomes: %w", err)
	}
	return out, nil
}

// Delete removes the custom item id owned by accountID.
//
// Postcondition: Returns ErrOutcomeNotFound if no such item belongs to the account.
func (r *OutcomeRepository) Delete(ctx context.Context, accountID int64, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM outcomes WHERE id = $1 AND account_id = $2`,
		id, accountID,
	)
	if err != nil {
		return fmt.Errorf("deleting outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOutcomeNotFound
	}
	return nil
}
