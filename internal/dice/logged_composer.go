package dice

import "go.uber.org/zap"

// LoggedComposer wraps a Composer and logs every roll.
// Successful rolls are logged at debug level; rolls drawn from a degraded
// random source are logged at warn level.
type LoggedComposer struct {
	*Composer
	logger *zap.Logger
}

// NewLoggedComposer creates a LoggedComposer that rolls with c and logs to logger.
//
// Precondition: c and logger must be non-nil.
func NewLoggedComposer(c *Composer, logger *zap.Logger) *LoggedComposer {
	return &LoggedComposer{Composer: c, logger: logger}
}

// RollComplete rolls with the wrapped Composer and logs the outcome.
//
// Postcondition: Same as Composer.RollComplete; the result is logged.
func (l *LoggedComposer) RollComplete(catalog []OutcomeItem, previous *CompleteResult) (CompleteResult, error) {
	result, err := l.Composer.RollComplete(catalog, previous)
	if err != nil {
		l.logger.Debug("dice roll failed",
			zap.Int("catalog_size", len(catalog)),
			zap.Error(err),
		)
		return CompleteResult{}, err
	}
	fields := []zap.Field{
		zap.String("roll_id", result.ID),
		zap.String("payer", result.Payer.ID),
		zap.String("meal", result.Meal.ID),
		zap.String("activity", result.Activity.ID),
		zap.String("date", result.Date),
	}
	if result.Degraded {
		l.logger.Warn("dice roll drawn from degraded random source",
			append(fields, zap.Error(ErrRandomSourceDegraded))...,
		)
		return result, nil
	}
	l.logger.Debug("dice roll", fields...)
	return result, nil
}
