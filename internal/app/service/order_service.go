package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/internal/events"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidStatus     = errors.New("invalid order status")
)

const maxOrderPageSize = 200

type OrderService interface {
	ListUserOrders(userID uint) ([]model.Order, error)
	GetUserOrder(userID, orderID uint) (*model.Order, error)
	GetGuestOrder(orderNumber, email string) (*model.Order, error)
	ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error)
	UpdateStatus(orderID uint, status model.OrderStatus, actorID uint) (*model.Order, error)
	// ForceStatus bypasses the lifecycle rules. It is audited and needs a reason.
	ForceStatus(orderID uint, status model.OrderStatus, actorID uint, reason string) (*model.Order, error)
	UpdateTracking(orderID uint, carrier, trackingNumber string) (*model.Order, error)
}

type orderService struct {
	db            *gorm.DB
	orderRepo     repository.OrderRepository
	inventoryRepo repository.InventoryRepository
	publisher     events.Publisher
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	inventoryRepo repository.InventoryRepository,
	publisher events.Publisher,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		db:            db,
		orderRepo:     orderRepo,
		inventoryRepo: inventoryRepo,
		publisher:     publisher,
	}
}

func (s *orderService) ListUserOrders(userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (s *orderService) findOrder(orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetUserOrder hides orders of other users behind ErrOrderNotFound.
func (s *orderService) GetUserOrder(userID, orderID uint) (*model.Order, error) {
	order, err := s.findOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(userID) {
		logger.Warn("Order access denied", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) GetGuestOrder(orderNumber, email string) (*model.Order, error) {
	order, err := s.orderRepo.FindByNumber(strings.TrimSpace(orderNumber))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !order.IsGuest || !strings.EqualFold(order.GuestEmail, strings.TrimSpace(email)) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(filter repository.OrderFilter) ([]model.Order, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Limit <= 0 || filter.Limit > maxOrderPageSize {
		filter.Limit = maxOrderPageSize
	}
	return s.orderRepo.List(filter)
}

func (s *orderService) UpdateStatus(orderID uint, status model.OrderStatus, actorID uint) (*model.Order, error) {
	return s.changeStatus(orderID, status, actorID, "", false)
}

func (s *orderService) ForceStatus(orderID uint, status model.OrderStatus, actorID uint, reason string) (*model.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("a reason is required to force an order status")
	}
	return s.changeStatus(orderID, status, actorID, reason, true)
}

func (s *orderService) changeStatus(orderID uint, status model.OrderStatus, actorID uint, reason string, forced bool) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var previous model.OrderStatus
	err := s.db.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.LockByID(orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		previous = order.Status

		if previous == status || (!forced && !previous.CanTransitionTo(status)) {
			logger.Warn("Rejected order status transition", map[string]interface{}{
				"order_id": orderID,
				"from":     previous,
				"to":       status,
				"forced":   forced,
			})
			return ErrInvalidTransition
		}

		ok, err := orderRepo.CompareAndSetStatus(order.ID, previous, status)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}

		change := &model.OrderStatusChange{
			OrderID:    order.ID,
			FromStatus: previous,
			ToStatus:   status,
			Forced:     forced,
			Reason:     reason,
		}
		if actorID != 0 {
			change.ChangedBy = &actorID
		}
		if err := orderRepo.CreateStatusChange(change); err != nil {
			return err
		}

		return s.adjustStockForStatus(tx, order, previous, status)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.findOrder(orderID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(events.NewStatusChanged(updated, previous, forced))

	logger.Info("Order status changed", map[string]interface{}{
		"order_id": orderID,
		"from":     previous,
		"to":       status,
		"forced":   forced,
		"actor_id": actorID,
	})
	return updated, nil
}

// adjustStockForStatus returns stock when an order is cancelled and takes it
// again when a forced override revives a cancelled order.
func (s *orderService) adjustStockForStatus(tx *gorm.DB, order *model.Order, from, to model.OrderStatus) error {
	cancelling := to == model.OrderStatusCancelled && from != model.OrderStatusCancelled
	reviving := from == model.OrderStatusCancelled && to != model.OrderStatusCancelled
	if !cancelling && !reviving {
		return nil
	}

	inventoryRepo := s.inventoryRepo.WithTx(tx)
	ids := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.VariantID)
	}
	locked, err := inventoryRepo.LockVariants(ids)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if reviving {
			return ErrVariantNotFound
		}
		// a variant removed from the catalog has nothing to return stock to
		locked, err = lockExisting(inventoryRepo, ids)
		if err != nil {
			return err
		}
	}

	for _, item := range order.Items {
		variant, ok := locked[item.VariantID]
		if !ok {
			logger.Warn("Skipping stock return for removed variant", map[string]interface{}{
				"order_id":   order.ID,
				"variant_id": item.VariantID,
			})
			continue
		}
		if cancelling {
			_, err = incrementLocked(inventoryRepo, variant, item.Quantity, model.MovementOrderCancelled, &order.ID)
		} else {
			_, err = decrementLocked(inventoryRepo, variant, item.Quantity, &order.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func lockExisting(repo repository.InventoryRepository, ids []uint) (map[uint]*model.Variant, error) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	locked := make(map[uint]*model.Variant, len(ids))
	for _, id := range ids {
		if _, seen := locked[id]; seen {
			continue
		}
		one, err := repo.LockVariants([]uint{id})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		locked[id] = one[id]
	}
	return locked, nil
}

func (s *orderService) UpdateTracking(orderID uint, carrier, trackingNumber string) (*model.Order, error) {
	carrier = strings.TrimSpace(carrier)
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, validationError("tracking number is required")
	}

	if err := s.orderRepo.UpdateTracking(orderID, carrier, trackingNumber); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	logger.Info("Order tracking updated", map[string]interface{}{
		"order_id": orderID,
		"carrier":  carrier,
	})
	return s.findOrder(orderID)
}
