package repository

import (
	"time"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderFilter struct {
	Status model.OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(order *model.Order) error
	FindByID(id uint) (*model.Order, error)
	FindByNumber(orderNumber string) (*model.Order, error)
	FindByUserID(userID uint) ([]model.Order, error)
	List(filter OrderFilter) ([]model.Order, int64, error)
	LockByID(id uint) (*model.Order, error)
	// CompareAndSetStatus moves the order from -> to and reports whether the
	// row was still in from.
	CompareAndSetStatus(id uint, from, to model.OrderStatus) (bool, error)
	CreateStatusChange(change *model.OrderStatusChange) error
	UpdateTracking(id uint, carrier, trackingNumber string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) preloadOrder() *gorm.DB {
	return r.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.id ASC")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_status_changes.id ASC")
		}).
		Preload("User")
}

func (r *orderRepository) Create(order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"is_guest":     order.IsGuest,
		"item_count":   len(order.Items),
	})

	if err := r.db.Omit("User", "History").Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_number": order.OrderNumber,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return nil
}

func (r *orderRepository) FindByID(id uint) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder().First(&order, id).Error; err != nil {
		logger.Debug("Order not found by ID in database", map[string]interface{}{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByNumber(orderNumber string) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder().Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(userID uint) ([]model.Order, error) {
	logger.Debug("Finding orders by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var orders []model.Order
	err := r.db.
		Preload("Items").
		Where("user_id = ? AND is_guest = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) List(filter OrderFilter) ([]model.Order, int64, error) {
	query := r.db.Model(&model.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count orders", err)
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var orders []model.Order
	if err := query.Preload("Items").Preload("User").Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		logger.Error("Failed to list orders", err, map[string]interface{}{
			"status": filter.Status,
		})
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) LockByID(id uint) (*model.Order, error) {
	var order model.Order
	err := r.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Preload("User").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) CompareAndSetStatus(id uint, from, to model.OrderStatus) (bool, error) {
	result := r.db.Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		logger.Error("Failed to update order status", result.Error, map[string]interface{}{
			"order_id": id,
			"from":     from,
			"to":       to,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepository) CreateStatusChange(change *model.OrderStatusChange) error {
	if err := r.db.Create(change).Error; err != nil {
		logger.Error("Failed to record order status change", err, map[string]interface{}{
			"order_id": change.OrderID,
		})
		return err
	}
	return nil
}

func (r *orderRepository) UpdateTracking(id uint, carrier, trackingNumber string) error {
	result := r.db.Model(&model.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"carrier":         carrier,
		"tracking_number": trackingNumber,
	})
	if result.Error != nil {
		logger.Error("Failed to update order tracking", result.Error, map[string]interface{}{
			"order_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
