package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/dukapay-backend/api/responses"
	"github.com/angelmondragon/dukapay-backend/internal/webhooks"
	azampaywebhook "github.com/angelmondragon/dukapay-backend/internal/webhooks/azampay"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/logger"
)

const maxCallbackBytes = 64 << 10

// AzamPayWebhookService applies a verified callback body.
type AzamPayWebhookService interface {
	Handle(ctx context.Context, body []byte) (*azampaywebhook.Result, error)
}

// DeliveryGuard remembers callback deliveries that were already applied. A
// claim only lasts while the delivery is being processed.
type DeliveryGuard interface {
	Claim(ctx context.Context, deliveryID string) (bool, error)
	MarkProcessed(ctx context.Context, deliveryID string) error
	Delete(ctx context.Context, deliveryID string) error
}

type webhookMetrics interface {
	IncWebhook(provider, outcome string)
}

// AzamPaySignature carries the shared secret and the header it is presented in.
type AzamPaySignature struct {
	Header string
	Secret string
}

// AzamPayWebhook verifies and applies AzamPay payment callbacks. Nothing is read
// from or written to storage before the signature checks out.
func AzamPayWebhook(svc AzamPayWebhookService, sig AzamPaySignature, guard DeliveryGuard, metrics webhookMetrics, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if err := webhooks.VerifySignature(payload, r.Header.Get(sig.Header), sig.Secret); err != nil {
			record(metrics, "invalid_signature")
			code := pkgerrors.CodeUnauthorized
			if errors.Is(err, webhooks.ErrSecretMissing) {
				code = pkgerrors.CodeInternal
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(code, err, "Invalid callback signature"))
			return
		}

		deliveryID := webhooks.DeliveryID(payload)
		ctx = logg.WithField(ctx, "delivery_id", deliveryID)

		alreadyProcessed, err := guard.Claim(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			record(metrics, "duplicate_delivery")
			responses.WriteSuccess(w, &azampaywebhook.Result{Outcome: "duplicate"})
			return
		}

		result, err := svc.Handle(ctx, payload)
		if err != nil {
			if delErr := guard.Delete(context.WithoutCancel(ctx), deliveryID); delErr != nil {
				logg.Warn(ctx, "failed to release webhook delivery marker")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := guard.MarkProcessed(context.WithoutCancel(ctx), deliveryID); err != nil {
			logg.Warn(ctx, "failed to mark webhook delivery processed")
		}
		logg.Info(ctx, "azampay callback processed")
		responses.WriteSuccess(w, result)
	}
}

func record(metrics webhookMetrics, outcome string) {
	if metrics != nil {
		metrics.IncWebhook("azampay", outcome)
	}
}
