package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

const defaultStaleAfter = 5 * time.Minute

type staleAttemptReader interface {
	FindStaleInitiated(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error)
}

// StaleAttemptsJobParams configure the stale attempt report.
type StaleAttemptsJobParams struct {
	Logger     *logger.Logger
	Attempts   staleAttemptReader
	StaleAfter time.Duration
	BatchSize  int
}

// NewStaleAttemptsJob reports attempts still initiated past the polling window.
// It never changes their status; a late callback can still complete them.
func NewStaleAttemptsJob(params StaleAttemptsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("attempt repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &staleAttemptsJob{
		logg:       params.Logger,
		attempts:   params.Attempts,
		staleAfter: staleAfter,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type staleAttemptsJob struct {
	logg       *logger.Logger
	attempts   staleAttemptReader
	staleAfter time.Duration
	batch      int
	now        func() time.Time
}

func (j *staleAttemptsJob) Name() string { return "stale-attempts" }

func (j *staleAttemptsJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	stale, err := j.attempts.FindStaleInitiated(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("query stale attempts: %w", err)
	}
	for _, attempt := range stale {
		attemptCtx := j.logg.WithPaymentID(j.logg.WithOrderID(ctx, attempt.OrderID.String()), attempt.ID.String())
		attemptCtx = j.logg.WithFields(attemptCtx, map[string]any{
			"provider":    string(attempt.Provider),
			"age_seconds": int(j.now().Sub(attempt.CreatedAt).Seconds()),
		})
		j.logg.Warn(attemptCtx, "payment attempt awaiting provider confirmation")
	}
	return len(stale), nil
}
