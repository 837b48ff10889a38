// Package azampay implements the AzamPay mobile-network checkout used for
// M-Pesa, Airtel Money, Tigo Pesa, HaloPesa and AzamPesa pushes.
package azampay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/dukapay-backend/internal/providers"
	"github.com/angelmondragon/dukapay-backend/pkg/config"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
)

const (
	Name = "azampay"

	sandboxAuthURL        = "https://authenticator-sandbox.azampay.co.tz"
	sandboxCheckoutURL    = "https://sandbox.azampay.co.tz"
	productionAuthURL     = "https://authenticator.azampay.co.tz"
	productionCheckoutURL = "https://checkout.azampay.co.tz"

	tokenPath    = "AppRegistration/GenerateToken"
	checkoutPath = "azampay/mno/checkout"

	currency                   = "TZS"
	maxExternalIDLength        = 128
	maxDescriptionLength       = 100
	defaultTokenLifetime       = time.Hour
	bodyReadLimit        int64 = 4096
)

// Networks lists the customer-facing providers this adapter serves.
var Networks = []enums.PaymentProvider{
	enums.PaymentProviderMpesa,
	enums.PaymentProviderAirtel,
	enums.PaymentProviderTigo,
	enums.PaymentProviderHalopesa,
	enums.PaymentProviderAzampesa,
}

var networkNames = map[enums.PaymentProvider]string{
	enums.PaymentProviderMpesa:    "Mpesa",
	enums.PaymentProviderAirtel:   "Airtel",
	enums.PaymentProviderTigo:     "Tigo",
	enums.PaymentProviderHalopesa: "Halopesa",
	enums.PaymentProviderAzampesa: "Azampesa",
}

var (
	errClientIDRequired     = errors.New("azampay client id is required")
	errClientSecretRequired = errors.New("azampay client secret is required")
	errAppNameRequired      = errors.New("azampay app name is required")
)

// Client is the AzamPay adapter. It owns its credentials and shares a token
// cache with other adapters in the process.
type Client struct {
	httpClient   *http.Client
	authURL      string
	checkoutURL  string
	appName      string
	clientID     string
	clientSecret string
	apiKey       string
	tokens       *providers.TokenCache
	now          func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURLs overrides the authenticator and checkout hosts.
func WithBaseURLs(authURL, checkoutURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(authURL); trimmed != "" {
			c.authURL = trimmed
		}
		if trimmed := strings.TrimSpace(checkoutURL); trimmed != "" {
			c.checkoutURL = trimmed
		}
	}
}

// WithTokenCache shares a token cache across adapters.
func WithTokenCache(cache *providers.TokenCache) Option {
	return func(c *Client) {
		if cache != nil {
			c.tokens = cache
		}
	}
}

// NewClient builds the adapter from configuration.
func NewClient(cfg config.AzamPayConfig, opts ...Option) (*Client, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errClientSecretRequired
	}
	appName := strings.TrimSpace(cfg.AppName)
	if appName == "" {
		return nil, errAppNameRequired
	}

	authURL, checkoutURL := sandboxAuthURL, sandboxCheckoutURL
	if cfg.Environment() == "production" {
		authURL, checkoutURL = productionAuthURL, productionCheckoutURL
	}

	client := &Client{
		httpClient:   providers.NewHTTPClient(30 * time.Second),
		authURL:      authURL,
		checkoutURL:  checkoutURL,
		appName:      appName,
		clientID:     clientID,
		clientSecret: secret,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		now:          time.Now,
	}
	WithBaseURLs(cfg.AuthBaseURL, cfg.CheckoutBaseURL)(client)

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.tokens == nil {
		client.tokens = providers.NewTokenCache(cfg.TokenSkew)
	}

	return client, nil
}

// Name implements providers.Adapter.
func (c *Client) Name() string {
	return Name
}

func (c *Client) cacheKey() string {
	return providers.CacheKey(Name, c.clientID)
}

// Authenticate returns a cached bearer token, fetching a new one when needed.
func (c *Client) Authenticate(ctx context.Context) (providers.Token, error) {
	return c.tokens.Get(ctx, c.cacheKey(), c.generateToken)
}

// InvalidateToken drops a token the checkout API answered 401 for.
func (c *Client) InvalidateToken(token providers.Token) {
	c.tokens.Invalidate(c.cacheKey(), token)
}

type tokenRequest struct {
	AppName      string `json:"appName"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type tokenResponse struct {
	Data struct {
		AccessToken string `json:"accessToken"`
		Expire      string `json:"expire"`
	} `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
}

func (c *Client) generateToken(ctx context.Context) (providers.Token, error) {
	payload, err := json.Marshal(tokenRequest{AppName: c.appName, ClientID: c.clientID, ClientSecret: c.clientSecret})
	if err != nil {
		return providers.Token{}, fmt.Errorf("marshal token request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.authURL, tokenPath), bytes.NewReader(payload))
	if err != nil {
		return providers.Token{}, fmt.Errorf("build token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.Token{}, fmt.Errorf("execute token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
		return providers.Token{}, fmt.Errorf("token status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(msg)), providers.ErrAuthRefused)
	default:
		return providers.Token{}, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var apiResp tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, bodyReadLimit)).Decode(&apiResp); err != nil {
		return providers.Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(apiResp.Data.AccessToken) == "" {
		return providers.Token{}, fmt.Errorf("token response missing access token: %w", providers.ErrAuthRefused)
	}

	return providers.Token{
		Value:     apiResp.Data.AccessToken,
		ExpiresAt: c.parseExpiry(apiResp.Data.Expire),
	}, nil
}

func (c *Client) parseExpiry(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return c.now().Add(defaultTokenLifetime)
}

type checkoutRequest struct {
	AccountNumber        string            `json:"accountNumber"`
	Amount               string            `json:"amount"`
	Currency             string            `json:"currency"`
	ExternalID           string            `json:"externalId"`
	Provider             string            `json:"provider"`
	AdditionalProperties map[string]string `json:"additionalProperties,omitempty"`
}

type checkoutResponse struct {
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
	Success       *bool  `json:"success"`
}

// RequestPayment submits the push-to-phone checkout and interprets the reply.
func (c *Client) RequestPayment(ctx context.Context, token providers.Token, req providers.PaymentRequest) providers.Result {
	network, ok := networkNames[req.Network]
	if !ok {
		return providers.NotImplemented(string(req.Network))
	}
	phone, err := providers.NormalizePhone(req.Phone)
	if err != nil {
		return providers.Rejected("", "INVALID_PHONE", "payer phone is not a valid mobile number")
	}
	amount := req.Amount.Round(0)
	if !amount.IsPositive() {
		return providers.Rejected("", "INVALID_AMOUNT", "amount must be at least 1 TZS")
	}

	body := checkoutRequest{
		AccountNumber: phone,
		Amount:        amount.StringFixed(0),
		Currency:      currency,
		ExternalID:    truncate(req.Reference, maxExternalIDLength),
		Provider:      network,
	}
	if desc := truncate(strings.TrimSpace(req.Description), maxDescriptionLength); desc != "" {
		body.AdditionalProperties = map[string]string{"description": desc}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return providers.Malformed("", "marshal checkout request: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.checkoutURL, checkoutPath), bytes.NewReader(payload))
	if err != nil {
		return providers.Ambiguous(providers.CodeTransport, "build checkout request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token.Value)
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return providers.Ambiguous(providers.CodeTimeout, "checkout request timed out")
		}
		return providers.Ambiguous(providers.CodeTransport, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
	if err != nil {
		return providers.Ambiguous(providers.CodeTransport, "read checkout response: "+err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return providers.Unauthorized("checkout token rejected")
	case resp.StatusCode >= 500:
		return providers.Ambiguous(providers.CodeProviderError, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		var apiResp checkoutResponse
		_ = json.Unmarshal(raw, &apiResp)
		msg := strings.TrimSpace(apiResp.Message)
		if msg == "" {
			msg = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		return providers.Rejected(apiResp.TransactionID, classifyRejection(msg), msg)
	}

	var apiResp checkoutResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return providers.Malformed("", "decode checkout response: "+err.Error())
	}
	if apiResp.Success == nil {
		return providers.Malformed(apiResp.TransactionID, "checkout response missing success flag")
	}
	if !*apiResp.Success {
		return providers.Rejected(apiResp.TransactionID, classifyRejection(apiResp.Message), apiResp.Message)
	}
	return providers.Accepted(apiResp.TransactionID)
}

func classifyRejection(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "insufficient"):
		return "INSUFFICIENT_FUNDS"
	case strings.Contains(msg, "limit"):
		return "LIMIT_EXCEEDED"
	case strings.Contains(msg, "invalid") && (strings.Contains(msg, "phone") || strings.Contains(msg, "msisdn") || strings.Contains(msg, "account")):
		return "INVALID_PHONE"
	default:
		return providers.CodeRejected
	}
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}

func joinURL(base, path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(path, "/"))
}
