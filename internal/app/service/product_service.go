package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrColorNotFound   = errors.New("color not found")
	ErrColorExists     = errors.New("color already exists")
)

const maxProductPageSize = 100

type ProductListOptions struct {
	Search string
	Limit  int
	Offset int
}

type VariantInput struct {
	ColorID  uint
	Size     string
	Quantity int
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	SalePrice   *decimal.Decimal
	Images      []string
	Variants    []VariantInput
}

type ProductService interface {
	ListProducts(opts ProductListOptions) ([]model.Product, int64, error)
	GetProductByID(id uint) (*model.Product, error)
	CreateProduct(input CreateProductInput) (*model.Product, error)
	ReplaceVariants(productID uint, variants []VariantInput) ([]model.Variant, error)
	ListColors() ([]model.Color, error)
	CreateColor(name, hex string) (*model.Color, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) ListProducts(opts ProductListOptions) ([]model.Product, int64, error) {
	if opts.Limit <= 0 || opts.Limit > maxProductPageSize {
		opts.Limit = maxProductPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	products, total, err := s.productRepo.List(repository.ProductFilter{
		Search: strings.TrimSpace(opts.Search),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, 0, err
	}

	logger.Debug("Products listed", map[string]interface{}{
		"count": len(products),
		"total": total,
	})
	return products, total, nil
}

func (s *productService) GetProductByID(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Product not found", map[string]interface{}{
				"product_id": id,
			})
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(input CreateProductInput) (*model.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("product name is required")
	}
	if !input.Price.IsPositive() {
		return nil, validationError("price must be positive")
	}

	product := &model.Product{
		Name:        name,
		Description: input.Description,
		Price:       input.Price.Round(2),
		Images:      input.Images,
	}
	if input.SalePrice != nil {
		if !input.SalePrice.IsPositive() || input.SalePrice.GreaterThan(input.Price) {
			return nil, validationError("sale price must be positive and not above price")
		}
		product.SalePrice = decimal.NewNullDecimal(input.SalePrice.Round(2))
	}

	variants, err := s.buildVariants(input.Variants)
	if err != nil {
		return nil, err
	}
	product.Variants = variants

	if err := s.productRepo.Create(product); err != nil {
		logger.Error("Failed to create product", err, map[string]interface{}{
			"name": name,
		})
		return nil, err
	}

	logger.Info("Product created", map[string]interface{}{
		"product_id":    product.ID,
		"variant_count": len(product.Variants),
	})
	return s.productRepo.FindByID(product.ID)
}

func (s *productService) ReplaceVariants(productID uint, inputs []VariantInput) ([]model.Variant, error) {
	if _, err := s.GetProductByID(productID); err != nil {
		return nil, err
	}

	variants, err := s.buildVariants(inputs)
	if err != nil {
		return nil, err
	}

	result, err := s.productRepo.ReplaceVariants(productID, variants)
	if err != nil {
		return nil, err
	}

	logger.Info("Product variants replaced", map[string]interface{}{
		"product_id":    productID,
		"variant_count": len(result),
	})
	return result, nil
}

func (s *productService) buildVariants(inputs []VariantInput) ([]model.Variant, error) {
	seen := make(map[string]bool, len(inputs))
	colors := make(map[uint]bool)
	variants := make([]model.Variant, 0, len(inputs))

	for _, in := range inputs {
		size := strings.ToUpper(strings.TrimSpace(in.Size))
		if size == "" {
			return nil, validationError("variant size is required")
		}
		if in.Quantity < 0 {
			return nil, validationError("variant quantity cannot be negative")
		}
		key := variantInputKey(in.ColorID, size)
		if seen[key] {
			return nil, validationError("duplicate variant for color %d size %s", in.ColorID, size)
		}
		seen[key] = true

		if !colors[in.ColorID] {
			if _, err := s.productRepo.FindColorByID(in.ColorID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, ErrColorNotFound
				}
				return nil, err
			}
			colors[in.ColorID] = true
		}

		variants = append(variants, model.Variant{
			ColorID:  in.ColorID,
			Size:     size,
			Quantity: in.Quantity,
		})
	}
	return variants, nil
}

func variantInputKey(colorID uint, size string) string {
	return fmt.Sprintf("%d|%s", colorID, size)
}

func (s *productService) ListColors() ([]model.Color, error) {
	return s.productRepo.ListColors()
}

func (s *productService) CreateColor(name, hex string) (*model.Color, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("color name is required")
	}

	color := &model.Color{Name: name, Hex: strings.ToUpper(strings.TrimSpace(hex))}
	if err := s.productRepo.CreateColor(color); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrColorExists
		}
		return nil, err
	}
	return color, nil
}
