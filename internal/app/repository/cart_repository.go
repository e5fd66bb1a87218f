package repository

import (
	"time"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(cart *model.Cart) error
	FindByOwnerKey(ownerKey string) (*model.Cart, error)
	FindItem(cartID, variantID uint) (*model.CartItem, error)
	SaveItem(item *model.CartItem) error
	DeleteItem(cartID, variantID uint) (bool, error)
	ClearItems(cartID uint) error
	SetExpiry(cartID uint, expiresAt *time.Time) error
	DeleteExpired(now time.Time) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) Create(cart *model.Cart) error {
	logger.Debug("Creating cart in database", map[string]interface{}{
		"owner_key": cart.OwnerKey,
	})

	if err := r.db.Create(cart).Error; err != nil {
		logger.Warn("Failed to create cart in database", map[string]interface{}{
			"owner_key": cart.OwnerKey,
			"error":     err.Error(),
		})
		return err
	}
	return nil
}

func (r *cartRepository) FindByOwnerKey(ownerKey string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.id ASC")
		}).
		Preload("Items.Variant").
		Where("owner_key = ?", ownerKey).
		First(&cart).Error
	if err != nil {
		return nil, err
	}

	logger.Debug("Cart found in database", map[string]interface{}{
		"cart_id":    cart.ID,
		"owner_key":  ownerKey,
		"item_count": len(cart.Items),
	})
	return &cart, nil
}

func (r *cartRepository) FindItem(cartID, variantID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.Where("cart_id = ? AND variant_id = ?", cartID, variantID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) SaveItem(item *model.CartItem) error {
	logger.Debug("Saving cart item in database", map[string]interface{}{
		"cart_id":    item.CartID,
		"variant_id": item.VariantID,
		"quantity":   item.Quantity,
	})

	if err := r.db.Omit("Variant").Save(item).Error; err != nil {
		logger.Error("Failed to save cart item in database", err, map[string]interface{}{
			"cart_id":    item.CartID,
			"variant_id": item.VariantID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) DeleteItem(cartID, variantID uint) (bool, error) {
	result := r.db.Where("cart_id = ? AND variant_id = ?", cartID, variantID).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart item from database", result.Error, map[string]interface{}{
			"cart_id":    cartID,
			"variant_id": variantID,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *cartRepository) ClearItems(cartID uint) error {
	if err := r.db.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to clear cart items", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) SetExpiry(cartID uint, expiresAt *time.Time) error {
	return r.db.Model(&model.Cart{}).Where("id = ?", cartID).Update("expires_at", expiresAt).Error
}

// DeleteExpired removes guest carts whose TTL has passed, lines first.
func (r *cartRepository) DeleteExpired(now time.Time) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&model.Cart{}).Select("id").
			Where("expires_at IS NOT NULL AND expires_at <= ?", now)
		if err := tx.Where("cart_id IN (?)", expired).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&model.Cart{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete expired carts", err)
		return 0, err
	}
	return deleted, nil
}
