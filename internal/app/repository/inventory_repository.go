package repository

import (
	"sort"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository
	FindVariant(productID, colorID uint, size string) (*model.Variant, error)
	FindVariantByID(id uint) (*model.Variant, error)
	FindVariantWithProduct(id uint) (*model.Variant, error)
	// LockVariants row-locks the variants in ascending id order so that
	// concurrent checkouts touching the same variants cannot deadlock.
	LockVariants(ids []uint) (map[uint]*model.Variant, error)
	// DecrementStock subtracts qty only if enough stock remains and reports
	// whether a row was changed.
	DecrementStock(id uint, qty int) (bool, error)
	IncrementStock(id uint, qty int) error
	CreateMovement(movement *model.StockMovement) error
	ListMovements(variantID uint, limit int) ([]model.StockMovement, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) WithTx(tx *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: tx}
}

func (r *inventoryRepository) FindVariant(productID, colorID uint, size string) (*model.Variant, error) {
	logger.Debug("Finding variant in database", map[string]interface{}{
		"product_id": productID,
		"color_id":   colorID,
		"size":       size,
	})

	var variant model.Variant
	err := r.db.
		Where("product_id = ? AND color_id = ? AND size = ?", productID, colorID, size).
		Preload("Color").
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *inventoryRepository) FindVariantByID(id uint) (*model.Variant, error) {
	var variant model.Variant
	if err := r.db.First(&variant, id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *inventoryRepository) FindVariantWithProduct(id uint) (*model.Variant, error) {
	var variant model.Variant
	if err := r.db.Preload("Product").Preload("Color").First(&variant, id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *inventoryRepository) LockVariants(ids []uint) (map[uint]*model.Variant, error) {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locked := make(map[uint]*model.Variant, len(sorted))
	for _, id := range sorted {
		if _, seen := locked[id]; seen {
			continue
		}
		var variant model.Variant
		err := r.db.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Product").
			First(&variant, id).Error
		if err != nil {
			logger.Warn("Failed to lock variant", map[string]interface{}{
				"variant_id": id,
				"error":      err.Error(),
			})
			return nil, err
		}
		locked[id] = &variant
	}
	return locked, nil
}

func (r *inventoryRepository) DecrementStock(id uint, qty int) (bool, error) {
	result := r.db.Model(&model.Variant{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		logger.Error("Failed to decrement variant stock", result.Error, map[string]interface{}{
			"variant_id": id,
			"quantity":   qty,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *inventoryRepository) IncrementStock(id uint, qty int) error {
	result := r.db.Model(&model.Variant{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if result.Error != nil {
		logger.Error("Failed to increment variant stock", result.Error, map[string]interface{}{
			"variant_id": id,
			"quantity":   qty,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) CreateMovement(movement *model.StockMovement) error {
	if err := r.db.Create(movement).Error; err != nil {
		logger.Error("Failed to record stock movement", err, map[string]interface{}{
			"variant_id": movement.VariantID,
			"delta":      movement.Delta,
			"reason":     movement.Reason,
		})
		return err
	}
	return nil
}

func (r *inventoryRepository) ListMovements(variantID uint, limit int) ([]model.StockMovement, error) {
	query := r.db.Where("variant_id = ?", variantID).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var movements []model.StockMovement
	if err := query.Find(&movements).Error; err != nil {
		logger.Error("Failed to list stock movements", err, map[string]interface{}{
			"variant_id": variantID,
		})
		return nil, err
	}
	return movements, nil
}
