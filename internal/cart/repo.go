package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/dukapay-backend/pkg/db/models"
)

// Repository encapsulates cart persistence. A user owns at most one cart row;
// checkout clears its lines and keeps the row.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser returns the user's cart with its lines. gorm.ErrRecordNotFound is
// returned when the user never added anything.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem creates the cart lazily and adds qty of the product, merging with an
// existing line for the same product.
func (r *Repository) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.Cart, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&models.Cart{UserID: userID}).Error; err != nil {
			return err
		}
		var cart models.Cart
		if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
			return err
		}

		var existing models.CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Limit(1).Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != uuid.Nil {
			return tx.Model(&models.CartItem{}).
				Where("id = ?", existing.ID).
				Update("quantity", gorm.Expr("quantity + ?", qty)).Error
		}
		return tx.Create(&models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}).Error
	})
	if err != nil {
		return nil, err
	}
	return r.FindByUser(ctx, userID)
}

// ClearItems removes every line from the cart.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
