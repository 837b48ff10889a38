package azampay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

// Callback is the payload AzamPay posts once the payer answered the prompt.
type Callback struct {
	MSISDN            string `json:"msisdn"`
	Amount            string `json:"amount"`
	Message           string `json:"message"`
	UtilityRef        string `json:"utilityref"`
	Operator          string `json:"operator"`
	Reference         string `json:"reference"`
	TransactionStatus string `json:"transactionstatus"`
	SubmerchantAcc    string `json:"submerchantAcc"`
	FSPReferenceID    string `json:"fspReferenceId"`
}

// ParseCallback decodes a verified callback body.
func ParseCallback(body []byte) (Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Callback{}, fmt.Errorf("decode azampay callback: %w", err)
	}
	return cb, nil
}

// Status maps the provider status to an attempt status. Codes other than
// success and failure return false and must not change state.
func (c Callback) Status() (enums.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(c.TransactionStatus)) {
	case "success", "successful", "completed":
		return enums.PaymentStatusCompleted, true
	case "failure", "failed":
		return enums.PaymentStatusFailed, true
	default:
		return "", false
	}
}
