package repository

import (
	"fmt"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

type ProductFilter struct {
	Search string
	Limit  int
	Offset int
}

type ProductRepository interface {
	Create(product *model.Product) error
	FindByID(id uint) (*model.Product, error)
	List(filter ProductFilter) ([]model.Product, int64, error)
	ReplaceVariants(productID uint, variants []model.Variant) ([]model.Variant, error)

	CreateColor(color *model.Color) error
	FindColorByID(id uint) (*model.Color, error)
	ListColors() ([]model.Color, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts the product together with its variants.
func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":          product.Name,
		"variant_count": len(product.Variants),
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
	})
	return nil
}

func (r *productRepository) FindByID(id uint) (*model.Product, error) {
	var product model.Product
	err := r.db.
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("variants.id ASC")
		}).
		Preload("Variants.Color").
		First(&product, id).Error
	if err != nil {
		logger.Error("Failed to find product by ID in database", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(filter ProductFilter) ([]model.Product, int64, error) {
	logger.Debug("Listing products from database", map[string]interface{}{
		"search": filter.Search,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})

	query := r.db.Model(&model.Product{})
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count products", err)
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []model.Product
	if err := query.Preload("Variants").Order("id ASC").Find(&products).Error; err != nil {
		logger.Error("Failed to list products", err)
		return nil, 0, err
	}
	return products, total, nil
}

// ReplaceVariants makes the product's variant set equal to variants, matched by
// (color, size). Matching rows keep their id so cart lines stay valid; rows not
// in the new set are removed along with any cart lines pointing at them.
func (r *productRepository) ReplaceVariants(productID uint, variants []model.Variant) ([]model.Variant, error) {
	logger.Debug("Replacing product variants", map[string]interface{}{
		"product_id":    productID,
		"variant_count": len(variants),
	})

	var result []model.Variant
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing []model.Variant
		if err := tx.Where("product_id = ?", productID).Find(&existing).Error; err != nil {
			return err
		}
		byKey := make(map[string]model.Variant, len(existing))
		for _, v := range existing {
			byKey[variantKey(v.ColorID, v.Size)] = v
		}

		var matched []uint
		for _, in := range variants {
			if current, ok := byKey[variantKey(in.ColorID, in.Size)]; ok {
				matched = append(matched, current.ID)
			}
		}
		// Matched rows change stock, so they take the same locks as checkout
		// and every change lands in the ledger.
		inventory := NewInventoryRepository(tx)
		locked := map[uint]*model.Variant{}
		if len(matched) > 0 {
			var err error
			if locked, err = inventory.LockVariants(matched); err != nil {
				return err
			}
		}

		keep := make(map[uint]bool)
		for _, in := range variants {
			if current, ok := byKey[variantKey(in.ColorID, in.Size)]; ok {
				row := locked[current.ID]
				if row.Quantity != in.Quantity {
					if err := tx.Model(&model.Variant{}).Where("id = ?", current.ID).
						Update("quantity", in.Quantity).Error; err != nil {
						return err
					}
					if err := inventory.CreateMovement(&model.StockMovement{
						VariantID:     current.ID,
						Delta:         in.Quantity - row.Quantity,
						QuantityAfter: in.Quantity,
						Reason:        model.MovementAdjustment,
					}); err != nil {
						return err
					}
					row.Quantity = in.Quantity
				}
				current.Quantity = in.Quantity
				keep[current.ID] = true
				result = append(result, current)
				continue
			}
			created := model.Variant{
				ProductID: productID,
				ColorID:   in.ColorID,
				Size:      in.Size,
				Quantity:  in.Quantity,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
			keep[created.ID] = true
			result = append(result, created)
		}

		for _, v := range existing {
			if keep[v.ID] {
				continue
			}
			if err := tx.Where("variant_id = ?", v.ID).Delete(&model.CartItem{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&model.Variant{}, v.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to replace product variants", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}
	return result, nil
}

func variantKey(colorID uint, size string) string {
	return fmt.Sprintf("%d|%s", colorID, size)
}

func (r *productRepository) CreateColor(color *model.Color) error {
	if err := r.db.Create(color).Error; err != nil {
		logger.Error("Failed to create color in database", err, map[string]interface{}{
			"name": color.Name,
		})
		return err
	}
	return nil
}

func (r *productRepository) FindColorByID(id uint) (*model.Color, error) {
	var color model.Color
	if err := r.db.First(&color, id).Error; err != nil {
		return nil, err
	}
	return &color, nil
}

func (r *productRepository) ListColors() ([]model.Color, error) {
	var colors []model.Color
	if err := r.db.Order("name ASC").Find(&colors).Error; err != nil {
		logger.Error("Failed to list colors", err)
		return nil, err
	}
	return colors, nil
}
