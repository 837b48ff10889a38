package payments

import (
	"strings"

	"github.com/angelmondragon/dukapay-backend/internal/providers"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
)

// ResolvePayerPhone picks the phone to push to. The profile phone wins over the
// shipping phone; a candidate that does not normalize is skipped.
func ResolvePayerPhone(profilePhone, addressPhone string) (string, error) {
	for _, candidate := range []string{profilePhone, addressPhone} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if normalized, err := providers.NormalizePhone(candidate); err == nil {
			return normalized, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeMissingPhone, "A valid mobile number is required for payment")
}
