package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

// AttemptRepository persists payment attempts. Every status write is guarded on
// the attempt still being initiated.
type AttemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository binds the repository to the provided GORM handle.
func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	if tx == nil {
		return r
	}
	return &AttemptRepository{db: tx}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindByProviderReference(ctx context.Context, reference string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("provider_reference = ?", reference).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindLatestForOrder returns the newest attempt for the order.
func (r *AttemptRepository) FindLatestForOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// SetProviderReference records the provider correlation id once.
func (r *AttemptRepository) SetProviderReference(ctx context.Context, id uuid.UUID, reference string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND provider_reference IS NULL", id).
		Updates(map[string]any{"provider_reference": reference, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}

// MarkCompleted moves an initiated attempt to completed.
func (r *AttemptRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusInitiated).
		Updates(map[string]any{
			"status":       enums.PaymentStatusCompleted,
			"completed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkFailed moves an initiated attempt to failed, preserving the provider code.
func (r *AttemptRepository) MarkFailed(ctx context.Context, id uuid.UUID, code, message string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     enums.PaymentStatusFailed,
		"failed_at":  at,
		"updated_at": at,
	}
	if code != "" {
		updates["failure_code"] = code
	}
	if message != "" {
		updates["failure_message"] = truncate(message, 500)
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusInitiated).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// FindStaleInitiated lists attempts still initiated that were created before cutoff.
func (r *AttemptRepository) FindStaleInitiated(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusInitiated, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
