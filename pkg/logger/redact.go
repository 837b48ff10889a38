package logger

import "strings"

var secretKeys = map[string]struct{}{
	"authorization": {},
	"api_key":       {},
	"client_secret": {},
	"secret":        {},
	"token":         {},
	"access_token":  {},
	"signature":     {},
}

var phoneKeys = map[string]struct{}{
	"phone":          {},
	"msisdn":         {},
	"account_number": {},
	"accountnumber":  {},
}

// redact masks credentials entirely and keeps only the last three digits of
// subscriber numbers.
func redact(key string, value any) any {
	k := strings.ToLower(key)
	if _, ok := secretKeys[k]; ok {
		return "[redacted]"
	}
	if _, ok := phoneKeys[k]; ok {
		if s, ok := value.(string); ok {
			return MaskPhone(s)
		}
		return "[redacted]"
	}
	return value
}

// MaskPhone renders 255712345678 as *********678.
func MaskPhone(phone string) string {
	p := strings.TrimSpace(phone)
	if len(p) <= 3 {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-3) + p[len(p)-3:]
}
