package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

func TestOutboxRetentionJobDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxRetentionRepo{remaining: 25}
	job := newOutboxRetentionJob(t, repo, 10)
	job.now = func() time.Time { return now }

	affected, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if affected != 25 {
		t.Fatalf("expected 25 rows reported, got %d", affected)
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", repo.calls)
	}
	if want := now.Add(-defaultOutboxRetention); !repo.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.lastCutoff)
	}
	if repo.minAttempts != outboxMinAttempts {
		t.Fatalf("expected min attempts %d, got %d", outboxMinAttempts, repo.minAttempts)
	}
}

func TestOutboxRetentionJobStopsAtBatchCap(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{remaining: 1 << 20}
	job := newOutboxRetentionJob(t, repo, 1)

	affected, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.calls != maxRetentionBatches || affected != maxRetentionBatches {
		t.Fatalf("expected %d capped batches, got calls=%d affected=%d", maxRetentionBatches, repo.calls, affected)
	}
}

func TestOutboxRetentionJobReportsPartialProgressOnError(t *testing.T) {
	repo := &fakeOutboxRetentionRepo{remaining: 30, failOnCall: 2, err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, 10)

	affected, err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if affected != 10 {
		t.Fatalf("expected first batch to count, got %d", affected)
	}
}

func TestNewOutboxRetentionJobRequiresDeps(t *testing.T) {
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.Nop(), DB: passthroughTx{}}); err == nil {
		t.Fatal("expected missing repository to fail")
	}
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxRetentionRepo, batch int) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         passthroughTx{},
		Repository: repo,
		BatchSize:  batch,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job, ok := jobIface.(*outboxRetentionJob)
	if !ok {
		t.Fatalf("expected outboxRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeOutboxRetentionRepo struct {
	remaining   int64
	calls       int
	failOnCall  int
	lastCutoff  time.Time
	minAttempts int
	err         error
}

func (f *fakeOutboxRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttempts, limit int) (int64, error) {
	f.calls++
	f.lastCutoff = cutoff
	f.minAttempts = minAttempts
	if f.err != nil && f.calls == f.failOnCall {
		return 0, f.err
	}
	n := int64(limit)
	if f.remaining < n {
		n = f.remaining
	}
	f.remaining -= n
	return n, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
