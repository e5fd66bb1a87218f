package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrVariantNotFound   = errors.New("variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// InsufficientStockError names the variant that could not cover the request.
type InsufficientStockError struct {
	VariantID uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %d: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

const defaultMovementLimit = 50

type InventoryService interface {
	WithTx(tx *gorm.DB) InventoryService
	GetVariant(productID, colorID uint, size string) (*model.Variant, error)
	GetVariantByID(id uint) (*model.Variant, error)
	HasSufficientStock(variantID uint, qty int) (bool, error)
	DecrementStock(variantID uint, qty int, orderID *uint) (*model.Variant, error)
	Restock(variantID uint, qty int, reason model.StockMovementReason, orderID *uint) (*model.Variant, error)
	ListMovements(variantID uint, limit int) ([]model.StockMovement, error)
}

type inventoryService struct {
	db            *gorm.DB
	inventoryRepo repository.InventoryRepository
}

func NewInventoryService(db *gorm.DB, inventoryRepo repository.InventoryRepository) InventoryService {
	return &inventoryService{
		db:            db,
		inventoryRepo: inventoryRepo,
	}
}

// WithTx binds the service to an open transaction; nested calls become savepoints.
func (s *inventoryService) WithTx(tx *gorm.DB) InventoryService {
	return &inventoryService{
		db:            tx,
		inventoryRepo: s.inventoryRepo.WithTx(tx),
	}
}

func (s *inventoryService) GetVariant(productID, colorID uint, size string) (*model.Variant, error) {
	variant, err := s.inventoryRepo.FindVariant(productID, colorID, strings.ToUpper(strings.TrimSpace(size)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	return variant, nil
}

func (s *inventoryService) GetVariantByID(id uint) (*model.Variant, error) {
	variant, err := s.inventoryRepo.FindVariantWithProduct(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	return variant, nil
}

func (s *inventoryService) HasSufficientStock(variantID uint, qty int) (bool, error) {
	if qty < 1 {
		return false, ErrInvalidQuantity
	}
	variant, err := s.inventoryRepo.FindVariantByID(variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrVariantNotFound
		}
		return false, err
	}
	return qty <= variant.Quantity, nil
}

// DecrementStock is the only path that lowers a variant's quantity. It fails
// closed: the row is locked and the update is conditional on enough stock.
func (s *inventoryService) DecrementStock(variantID uint, qty int, orderID *uint) (*model.Variant, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	var updated *model.Variant
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.inventoryRepo.WithTx(tx)
		locked, err := repo.LockVariants([]uint{variantID})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVariantNotFound
			}
			return err
		}
		updated, err = decrementLocked(repo, locked[variantID], qty, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *inventoryService) Restock(variantID uint, qty int, reason model.StockMovementReason, orderID *uint) (*model.Variant, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	if reason == "" {
		reason = model.MovementRestock
	}
	if reason == model.MovementOrderPlaced {
		return nil, validationError("reason %q cannot add stock", reason)
	}

	var updated *model.Variant
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.inventoryRepo.WithTx(tx)
		locked, err := repo.LockVariants([]uint{variantID})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVariantNotFound
			}
			return err
		}
		updated, err = incrementLocked(repo, locked[variantID], qty, reason, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Variant restocked", map[string]interface{}{
		"variant_id": variantID,
		"quantity":   qty,
		"reason":     reason,
		"stock":      updated.Quantity,
	})
	return updated, nil
}

func (s *inventoryService) ListMovements(variantID uint, limit int) ([]model.StockMovement, error) {
	if _, err := s.inventoryRepo.FindVariantByID(variantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	return s.inventoryRepo.ListMovements(variantID, limit)
}

// decrementLocked expects variant to be locked by the caller's transaction.
func decrementLocked(repo repository.InventoryRepository, variant *model.Variant, qty int, orderID *uint) (*model.Variant, error) {
	if variant.Quantity < qty {
		return nil, &InsufficientStockError{VariantID: variant.ID, Requested: qty, Available: variant.Quantity}
	}
	ok, err := repo.DecrementStock(variant.ID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("Conditional stock decrement matched no row", map[string]interface{}{
			"variant_id": variant.ID,
			"requested":  qty,
		})
		return nil, &InsufficientStockError{VariantID: variant.ID, Requested: qty, Available: variant.Quantity}
	}

	variant.Quantity -= qty
	movement := &model.StockMovement{
		VariantID:     variant.ID,
		OrderID:       orderID,
		Delta:         -qty,
		QuantityAfter: variant.Quantity,
		Reason:        model.MovementOrderPlaced,
	}
	if err := repo.CreateMovement(movement); err != nil {
		return nil, err
	}
	return variant, nil
}

func incrementLocked(repo repository.InventoryRepository, variant *model.Variant, qty int, reason model.StockMovementReason, orderID *uint) (*model.Variant, error) {
	if err := repo.IncrementStock(variant.ID, qty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}

	variant.Quantity += qty
	movement := &model.StockMovement{
		VariantID:     variant.ID,
		OrderID:       orderID,
		Delta:         qty,
		QuantityAfter: variant.Quantity,
		Reason:        reason,
	}
	if err := repo.CreateMovement(movement); err != nil {
		return nil, err
	}
	return variant, nil
}
