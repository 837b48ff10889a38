package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	"github.com/angelmondragon/dukapay-backend/pkg/types"
)

// Order is immutable after creation except for its status and the matching
// status timestamp.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string                `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	IdempotencyKey  string                `gorm:"column:idempotency_key;not null;uniqueIndex:ux_orders_idempotency_key"`
	Status          enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	SubtotalTZS     decimal.Decimal       `gorm:"column:subtotal_tzs;type:numeric(14,2);not null"`
	ShippingTZS     decimal.Decimal       `gorm:"column:shipping_tzs;type:numeric(14,2);not null"`
	TaxTZS          decimal.Decimal       `gorm:"column:tax_tzs;type:numeric(14,2);not null"`
	TotalTZS        decimal.Decimal       `gorm:"column:total_tzs;type:numeric(14,2);not null"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	Lines           []OrderLine           `gorm:"foreignKey:OrderID"`
	ConfirmedAt     *time.Time            `gorm:"column:confirmed_at"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
