package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine freezes the product price and vendor at materialization time.
type OrderLine struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VendorID     uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null"`
	ProductName  string          `gorm:"column:product_name;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	UnitPriceTZS decimal.Decimal `gorm:"column:unit_price_tzs;type:numeric(14,2);not null"`
	LineTotalTZS decimal.Decimal `gorm:"column:line_total_tzs;type:numeric(14,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLine) TableName() string { return "order_lines" }

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
