package azampaywebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/payments"
	"github.com/angelmondragon/dukapay-backend/internal/providers/azampay"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

const (
	providerName = "azampay"
	failureCode  = "PROVIDER_FAILED"
)

type attemptFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentAttempt, error)
	FindByProviderReference(ctx context.Context, reference string) (*models.PaymentAttempt, error)
}

type statusApplier interface {
	Apply(ctx context.Context, upd payments.Update) (*payments.Applied, error)
}

type metricsRecorder interface {
	IncWebhook(provider, outcome string)
}

// Result summarizes how a callback was handled.
type Result struct {
	Outcome   string     `json:"outcome"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
	Status    string     `json:"status,omitempty"`
}

// Service applies verified AzamPay callbacks to payment attempts.
type Service struct {
	attempts attemptFinder
	status   statusApplier
	logg     *logger.Logger
	metrics  metricsRecorder
}

func NewService(attempts attemptFinder, status statusApplier, logg *logger.Logger, metrics metricsRecorder) (*Service, error) {
	if attempts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "attempt repository required")
	}
	if status == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment status service required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{attempts: attempts, status: status, logg: logg, metrics: metrics}, nil
}

// Handle decodes a callback whose signature was already verified and moves the
// matching attempt. Unknown provider statuses and amount mismatches are
// acknowledged without changing state.
func (s *Service) Handle(ctx context.Context, body []byte) (*Result, error) {
	cb, err := azampay.ParseCallback(body)
	if err != nil {
		s.record("malformed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "callback body is not valid JSON")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"provider_reference": cb.Reference,
		"utility_ref":        cb.UtilityRef,
		"transaction_status": cb.TransactionStatus,
	})

	attempt, err := s.findAttempt(ctx, cb)
	if err != nil {
		s.record("unknown_attempt")
		return nil, err
	}
	id := attempt.ID
	ctx = s.logg.WithPaymentID(ctx, id.String())

	status, ok := cb.Status()
	if !ok {
		s.logg.Info(ctx, "callback status not actionable")
		s.record("ignored")
		return &Result{Outcome: "ignored", PaymentID: &id, Status: string(attempt.Status)}, nil
	}
	event, _ := payments.EventForStatus(status)

	if event == payments.EventCompleted && !amountMatches(cb.Amount, attempt.AmountTZS) {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"callback_amount": cb.Amount,
			"attempt_amount":  attempt.AmountTZS.String(),
		}), "callback amount does not match attempt", errors.New("amount mismatch"))
		s.record("amount_mismatch")
		return &Result{Outcome: "amount_mismatch", PaymentID: &id, Status: string(attempt.Status)}, nil
	}

	upd := payments.Update{
		AttemptID:         id,
		Event:             event,
		ProviderReference: strings.TrimSpace(cb.Reference),
		Source:            "webhook",
	}
	if event == payments.EventFailed {
		upd.FailureCode = failureCode
		upd.FailureMessage = strings.TrimSpace(cb.Message)
	}
	applied, err := s.status.Apply(ctx, upd)
	if err != nil {
		s.record("error")
		return nil, err
	}
	s.record(string(applied.Outcome))
	return &Result{Outcome: string(applied.Outcome), PaymentID: &id, Status: string(applied.Attempt.Status)}, nil
}

// findAttempt matches by provider reference first, then by the utilityref we
// sent as externalId (the attempt id).
func (s *Service) findAttempt(ctx context.Context, cb azampay.Callback) (*models.PaymentAttempt, error) {
	if ref := strings.TrimSpace(cb.Reference); ref != "" {
		attempt, err := s.attempts.FindByProviderReference(ctx, ref)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup attempt by reference")
		}
	}
	if id, err := uuid.Parse(strings.TrimSpace(cb.UtilityRef)); err == nil {
		attempt, err := s.attempts.FindByID(ctx, id)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup attempt by id")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no payment attempt for reference %q", cb.Reference))
}

// amountMatches tolerates callbacks that omit the amount.
func amountMatches(raw string, expected decimal.Decimal) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	got, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return got.Round(0).Equal(expected.Round(0))
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(providerName, outcome)
	}
}
