package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/dukapay-backend/pkg/config"
)

// Charges are the amounts added on top of the line subtotal.
type Charges struct {
	Shipping decimal.Decimal
	Tax      decimal.Decimal
}

// PricingPolicy computes shipping and tax for a subtotal.
type PricingPolicy interface {
	Quote(subtotal decimal.Decimal) Charges
}

// ZeroPolicy charges nothing beyond the lines.
type ZeroPolicy struct{}

func (ZeroPolicy) Quote(decimal.Decimal) Charges {
	return Charges{Shipping: decimal.Zero, Tax: decimal.Zero}
}

// FlatPolicy adds a flat shipping fee and a tax rate applied to the subtotal,
// rounded to whole shillings.
type FlatPolicy struct {
	Shipping decimal.Decimal
	TaxRate  decimal.Decimal
}

func (p FlatPolicy) Quote(subtotal decimal.Decimal) Charges {
	return Charges{
		Shipping: p.Shipping.Round(0),
		Tax:      subtotal.Mul(p.TaxRate).Round(0),
	}
}

// PolicyFromConfig returns ZeroPolicy unless a fee or rate is configured.
func PolicyFromConfig(cfg config.PaymentsConfig) PricingPolicy {
	shipping := cfg.ShippingFlat()
	rate := cfg.TaxRate()
	if shipping.IsZero() && rate.IsZero() {
		return ZeroPolicy{}
	}
	return FlatPolicy{Shipping: shipping, TaxRate: rate}
}
