package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShippingAddress is the delivery snapshot stored on an order as JSON.
type ShippingAddress struct {
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Region   string  `json:"region"`
	District string  `json:"district"`
	Ward     *string `json:"ward,omitempty"`
	Street   string  `json:"street"`
}

// Normalize trims every field in place.
func (a *ShippingAddress) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Region = strings.TrimSpace(a.Region)
	a.District = strings.TrimSpace(a.District)
	a.Street = strings.TrimSpace(a.Street)
	if a.Ward != nil {
		ward := strings.TrimSpace(*a.Ward)
		if ward == "" {
			a.Ward = nil
		} else {
			a.Ward = &ward
		}
	}
}

// Value marshals the address into a JSON document.
func (a ShippingAddress) Value() (driver.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("shipping address: marshal %w", err)
	}
	return string(raw), nil
}

// Scan decodes the JSON document.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("shipping address: unsupported scan type %T", value)
	}
	if strings.TrimSpace(raw) == "" {
		*a = ShippingAddress{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), a); err != nil {
		return fmt.Errorf("shipping address: unmarshal %w", err)
	}
	return nil
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
