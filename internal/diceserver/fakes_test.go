package diceserver_test

import (
	"context"
	"errors"

	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
)

var errStorage = errors.New("storage unavailable")

// failingOutcomes wraps MemoryOutcomes and fails listing when listErr is set.
type failingOutcomes struct {
	*diceserver.MemoryOutcomes
	listErr error
}

func (f *failingOutcomes) ListByAccount(ctx context.Context, accountID int64) ([]dice.OutcomeItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryOutcomes.ListByAccount(ctx, accountID)
}

// failingRolls wraps MemoryRolls and fails saving when saveErr is set.
type failingRolls struct {
	*diceserver.MemoryRolls
	saveErr error
}

func (f *failingRolls) Save(ctx context.Context, accountID int64, res dice.CompleteResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryRolls.Save(ctx, accountID, res)
}
