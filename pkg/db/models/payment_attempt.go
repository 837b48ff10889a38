package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

// PaymentAttempt is one provider-facing try to collect an order's total.
type PaymentAttempt struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	Provider          enums.PaymentProvider `gorm:"column:provider;not null"`
	Status            enums.PaymentStatus   `gorm:"column:status;not null;default:'initiated'"`
	AmountTZS         decimal.Decimal       `gorm:"column:amount_tzs;type:numeric(14,2);not null"`
	PayerPhone        string                `gorm:"column:payer_phone;not null"`
	ProviderReference *string               `gorm:"column:provider_reference;uniqueIndex:ux_payment_attempts_provider_reference"`
	IdempotencyKey    string                `gorm:"column:idempotency_key;not null;uniqueIndex:ux_payment_attempts_idempotency_key"`
	FailureCode       *string               `gorm:"column:failure_code"`
	FailureMessage    *string               `gorm:"column:failure_message"`
	CompletedAt       *time.Time            `gorm:"column:completed_at"`
	FailedAt          *time.Time            `gorm:"column:failed_at"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

func (p *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
