package checkout

import (
	"bytes"
	"encoding/json"

	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/types"
)

// ParseShippingAddress decodes the raw shipping_address member. Anything that is
// not a JSON object is an INVALID_ADDRESS.
func ParseShippingAddress(raw json.RawMessage) (*types.ShippingAddress, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAddress, "Shipping address is required")
	}
	var addr types.ShippingAddress
	if err := json.Unmarshal(trimmed, &addr); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidAddress, err, "Shipping address is malformed")
	}
	addr.Normalize()
	return &addr, nil
}

// ValidateShippingAddress checks the required fields in order; the first
// missing one is reported.
func ValidateShippingAddress(addr *types.ShippingAddress) error {
	if addr == nil {
		return pkgerrors.New(pkgerrors.CodeInvalidAddress, "Shipping address is required")
	}
	addr.Normalize()
	checks := []struct {
		value   string
		field   string
		message string
	}{
		{addr.Phone, "phone", "Phone required"},
		{addr.Region, "region", "Region required"},
		{addr.Street, "street", "Street required"},
	}
	for _, check := range checks {
		if check.value == "" {
			return pkgerrors.New(pkgerrors.CodeInvalidAddress, check.message).WithDetails(map[string]any{
				"field": check.field,
			})
		}
	}
	return nil
}
