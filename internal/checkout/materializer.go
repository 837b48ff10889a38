package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/dukapay-backend/internal/cart"
	"github.com/angelmondragon/dukapay-backend/internal/orders"
	"github.com/angelmondragon/dukapay-backend/internal/products"
	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
	"github.com/angelmondragon/dukapay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox"
	"github.com/angelmondragon/dukapay-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/dukapay-backend/pkg/types"

	checkoutrules "github.com/angelmondragon/dukapay-backend/pkg/checkout"
)

const maxOrderNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Draft is a priced order that has not been written yet.
type Draft struct {
	Order  *models.Order
	CartID uuid.UUID
}

// Materializer turns a user's cart into an immutable order.
type Materializer struct {
	tx       txRunner
	orders   orders.Repository
	carts    *cart.Repository
	products *products.Repository
	outbox   outbox.Emitter
	pricing  PricingPolicy
	now      func() time.Time
}

// NewMaterializer wires the materializer. A nil policy charges no shipping or tax.
func NewMaterializer(tx txRunner, ordersRepo orders.Repository, carts *cart.Repository, productsRepo *products.Repository, emitter outbox.Emitter, pricing PricingPolicy) (*Materializer, error) {
	if tx == nil || ordersRepo == nil || carts == nil || productsRepo == nil || emitter == nil {
		return nil, fmt.Errorf("materializer dependencies required")
	}
	if pricing == nil {
		pricing = ZeroPolicy{}
	}
	return &Materializer{
		tx:       tx,
		orders:   ordersRepo,
		carts:    carts,
		products: productsRepo,
		outbox:   emitter,
		pricing:  pricing,
		now:      time.Now,
	}, nil
}

// Prepare validates the address, snapshots the cart lines at current catalog
// prices and prices the order. Nothing is written.
func (m *Materializer) Prepare(ctx context.Context, userID uuid.UUID, key string, addr *types.ShippingAddress) (*Draft, error) {
	if err := checkoutrules.ValidateShippingAddress(addr); err != nil {
		return nil, err
	}

	userCart, err := m.carts.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeCartNotFound, "Cart not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCartEmpty, "Cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(userCart.Items))
	for _, item := range userCart.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := m.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	lines := make([]models.OrderLine, 0, len(userCart.Items))
	subtotal := decimal.Zero
	for _, item := range userCart.Items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "A product in the cart is no longer available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart line quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		lineTotal := product.PriceTZS.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.OrderLine{
			ProductID:    product.ID,
			VendorID:     product.VendorID,
			ProductName:  product.Name,
			Quantity:     item.Quantity,
			UnitPriceTZS: product.PriceTZS,
			LineTotalTZS: lineTotal,
		})
	}

	charges := m.pricing.Quote(subtotal)
	total := subtotal.Add(charges.Shipping).Add(charges.Tax)
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "Order total must be greater than zero")
	}
	now := m.now()
	order := &models.Order{
		OrderNumber:     orders.NewOrderNumber(now),
		UserID:          userID,
		IdempotencyKey:  key,
		Status:          enums.OrderStatusPending,
		SubtotalTZS:     subtotal,
		ShippingTZS:     charges.Shipping,
		TaxTZS:          charges.Tax,
		TotalTZS:        total,
		ShippingAddress: *addr,
		Lines:           lines,
	}
	return &Draft{Order: order, CartID: userCart.ID}, nil
}

// Commit inserts the order, its lines and order_created in one transaction.
// A taken order number is regenerated and retried. A unique violation on the
// idempotency key is returned unwrapped so the caller can resolve the winning
// order.
func (m *Materializer) Commit(ctx context.Context, draft *Draft) (*models.Order, error) {
	order := draft.Order
	var err error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		err = m.insert(ctx, order)
		if !orders.IsOrderNumberConflict(err) {
			break
		}
		order.OrderNumber = orders.NewOrderNumber(m.now())
	}
	if orders.IsIdempotencyConflict(err) {
		return nil, err
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderCreateFailed, err, "order could not be created")
	}
	return order, nil
}

func (m *Materializer) insert(ctx context.Context, order *models.Order) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := m.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.UserActor(order.UserID),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				LineCount:   len(order.Lines),
				SubtotalTZS: order.SubtotalTZS,
				ShippingTZS: order.ShippingTZS,
				TaxTZS:      order.TaxTZS,
				TotalTZS:    order.TotalTZS,
			},
		})
	})
}
