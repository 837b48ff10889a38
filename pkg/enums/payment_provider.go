package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider names the mobile-money network a customer pays with.
type PaymentProvider string

const (
	PaymentProviderMpesa    PaymentProvider = "mpesa"
	PaymentProviderAirtel   PaymentProvider = "airtel"
	PaymentProviderTigo     PaymentProvider = "tigo"
	PaymentProviderHalopesa PaymentProvider = "halopesa"
	PaymentProviderAzampesa PaymentProvider = "azampesa"
	PaymentProviderSelcom   PaymentProvider = "selcom"
	PaymentProviderPesapal  PaymentProvider = "pesapal"
)

// DefaultPaymentProvider is used when a checkout does not name one.
const DefaultPaymentProvider = PaymentProviderMpesa

var validPaymentProviders = []PaymentProvider{
	PaymentProviderMpesa,
	PaymentProviderAirtel,
	PaymentProviderTigo,
	PaymentProviderHalopesa,
	PaymentProviderAzampesa,
	PaymentProviderSelcom,
	PaymentProviderPesapal,
}

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider is case-insensitive and falls back to the default for blank input.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return DefaultPaymentProvider, nil
	}
	for _, candidate := range validPaymentProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
