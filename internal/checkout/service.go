package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/dukapay-backend/internal/cart"
	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/payments"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"

	checkoutrules "github.com/angelmondragon/dukapay-backend/pkg/checkout"
)

const maxIdempotencyKeyLength = 255

type phoneLookup interface {
	FindPhone(ctx context.Context, userID uuid.UUID) (string, error)
}

type metricsRecorder interface {
	IncCheckout(flow, outcome string)
}

// Request is a checkout submission.
type Request struct {
	UserID          uuid.UUID
	IdempotencyKey  string
	ShippingAddress json.RawMessage
	PaymentProvider string
}

// Service runs checkout end to end: gate, materialize, pay.
type Service struct {
	gate         *Gate
	materializer *Materializer
	profiles     phoneLookup
	orchestrator *payments.Orchestrator
	carts        *cart.Repository
	logg         *logger.Logger
	metrics      metricsRecorder
}

// NewService wires the checkout flow.
func NewService(gate *Gate, materializer *Materializer, profiles phoneLookup, orchestrator *payments.Orchestrator, carts *cart.Repository, logg *logger.Logger, metrics metricsRecorder) (*Service, error) {
	if gate == nil || materializer == nil || profiles == nil || orchestrator == nil || carts == nil {
		return nil, fmt.Errorf("checkout dependencies required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		gate:         gate,
		materializer: materializer,
		profiles:     profiles,
		orchestrator: orchestrator,
		carts:        carts,
		logg:         logg,
		metrics:      metrics,
	}, nil
}

// Checkout materializes the cart into at most one order per idempotency key and
// pushes its first payment attempt. Once the order exists the call succeeds;
// provider failures are reported in the summary.
func (s *Service) Checkout(ctx context.Context, req Request) (*payments.Summary, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, s.fail(pkgerrors.New(pkgerrors.CodeMissingIdempotency, "Idempotency-Key header required"))
	}
	if len(key) > maxIdempotencyKeyLength {
		return nil, s.fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long"))
	}

	replay, err := s.gate.Lookup(ctx, key, req.UserID)
	if err != nil {
		return nil, s.fail(err)
	}
	if replay != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, replay.OrderID.String()), "checkout replayed")
		s.record(replay.Outcome())
		return replay, nil
	}

	provider, err := enums.ParsePaymentProvider(req.PaymentProvider)
	if err != nil {
		return nil, s.fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Unsupported payment provider"))
	}
	addr, err := checkoutrules.ParseShippingAddress(req.ShippingAddress)
	if err != nil {
		return nil, s.fail(err)
	}

	draft, err := s.materializer.Prepare(ctx, req.UserID, key, addr)
	if err != nil {
		// A concurrent request with the same key may have won and cleared the cart.
		if replay, lookupErr := s.gate.Lookup(ctx, key, req.UserID); lookupErr == nil && replay != nil {
			s.record(replay.Outcome())
			return replay, nil
		}
		return nil, s.fail(err)
	}

	profilePhone, err := s.profiles.FindPhone(ctx, req.UserID)
	if err != nil {
		return nil, s.fail(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load profile"))
	}
	phone, err := payments.ResolvePayerPhone(profilePhone, addr.Phone)
	if err != nil {
		return nil, s.fail(err)
	}

	order, err := s.materializer.Commit(ctx, draft)
	if pkgerrors.As(err) == nil && orders.IsIdempotencyConflict(err) {
		replay, resolveErr := s.gate.Resolve(ctx, key, req.UserID)
		if resolveErr != nil {
			return nil, s.fail(resolveErr)
		}
		s.logg.Info(s.logg.WithOrderID(ctx, replay.OrderID.String()), "concurrent checkout resolved to existing order")
		s.record(replay.Outcome())
		return replay, nil
	}
	if err != nil {
		return nil, s.fail(err)
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order materialized")

	start, err := s.orchestrator.Start(ctx, payments.StartInput{
		Order:          order,
		Provider:       provider,
		Phone:          phone,
		IdempotencyKey: key + ":pay",
		Actor:          outbox.UserActor(req.UserID),
	})
	if err != nil {
		return nil, s.fail(err)
	}

	if start.Result.IsAccepted() {
		if err := s.carts.ClearItems(context.WithoutCancel(ctx), draft.CartID); err != nil {
			s.logg.Warn(ctx, "failed to clear cart after accepted payment request")
		}
	}

	summary := payments.Summarize(order, start)
	s.record(summary.Outcome())
	return summary, nil
}

func (s *Service) fail(err error) error {
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	s.record(strings.ToLower(string(code)))
	return err
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheckout("checkout", outcome)
	}
}
