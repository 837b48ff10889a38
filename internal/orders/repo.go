package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/db"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

const (
	// IdempotencyKeyConstraint names the unique index that serializes checkouts.
	IdempotencyKeyConstraint = "ux_orders_idempotency_key"
	OrderNumberConstraint    = "ux_orders_order_number"
)

// IsIdempotencyConflict reports whether err is a duplicate checkout key.
func IsIdempotencyConflict(err error) bool {
	return db.IsUniqueViolation(err, IdempotencyKeyConstraint, "orders.idempotency_key")
}

// IsOrderNumberConflict reports whether err is a generated order number that
// is already taken.
func IsOrderNumberConflict(err error) bool {
	return db.IsUniqueViolation(err, OrderNumberConstraint, "orders.order_number")
}

type repository struct {
	db *gorm.DB
}

// Repository defines persistence operations for orders and their lines. Status
// changes are guarded on the current status and report whether a row moved.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its lines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":       enums.OrderStatusConfirmed,
			"confirmed_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		})
	return res.RowsAffected == 1, res.Error
}

// FindExpiredPending returns pending orders created before cutoff that have no
// attempt still initiated after cutoff.
func (r *repository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM payment_attempts pa WHERE pa.order_id = orders.id AND pa.status = ? AND pa.created_at >= ?)",
			enums.PaymentStatusInitiated, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// NewOrderNumber renders the customer-facing number DP-YYMMDD-XXXXXXXX.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("DP-%s-%s", now.UTC().Format("060102"), suffix)
}
