package repository

import (
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

type AddressRepository interface {
	WithTx(tx *gorm.DB) AddressRepository
	Create(address *model.Address) error
	FindByID(id uint) (*model.Address, error)
	FindByUserID(userID uint) ([]model.Address, error)
	CountByUserID(userID uint) (int64, error)
	FindDefault(userID uint) (*model.Address, error)
	FindOldest(userID uint) (*model.Address, error)
	Update(address *model.Address) error
	Delete(id uint) error
	// ClearDefault unsets is_default on every address of the user except keepID (0 keeps none).
	ClearDefault(userID, keepID uint) error
	MarkDefault(id uint) error
}

type addressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) WithTx(tx *gorm.DB) AddressRepository {
	return &addressRepository{db: tx}
}

func (r *addressRepository) Create(address *model.Address) error {
	logger.Debug("Creating address in database", map[string]interface{}{
		"user_id":    address.UserID,
		"is_default": address.IsDefault,
	})

	if err := r.db.Create(address).Error; err != nil {
		logger.Error("Failed to create address in database", err, map[string]interface{}{
			"user_id": address.UserID,
		})
		return err
	}

	logger.Debug("Address created in database", map[string]interface{}{
		"address_id": address.ID,
		"user_id":    address.UserID,
	})
	return nil
}

func (r *addressRepository) FindByID(id uint) (*model.Address, error) {
	var address model.Address
	if err := r.db.First(&address, id).Error; err != nil {
		logger.Debug("Address not found in database", map[string]interface{}{
			"address_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}
	return &address, nil
}

func (r *addressRepository) FindByUserID(userID uint) ([]model.Address, error) {
	var addresses []model.Address
	err := r.db.Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC, id DESC").
		Find(&addresses).Error
	if err != nil {
		logger.Error("Failed to find addresses by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	logger.Debug("Addresses found by user ID in database", map[string]interface{}{
		"user_id": userID,
		"count":   len(addresses),
	})
	return addresses, nil
}

func (r *addressRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Address{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *addressRepository) FindDefault(userID uint) (*model.Address, error) {
	var address model.Address
	err := r.db.Where("user_id = ? AND is_default = ?", userID, true).First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *addressRepository) FindOldest(userID uint) (*model.Address, error) {
	var address model.Address
	err := r.db.Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (r *addressRepository) Update(address *model.Address) error {
	if err := r.db.Save(address).Error; err != nil {
		logger.Error("Failed to update address in database", err, map[string]interface{}{
			"address_id": address.ID,
		})
		return err
	}
	return nil
}

func (r *addressRepository) Delete(id uint) error {
	logger.Debug("Deleting address from database", map[string]interface{}{
		"address_id": id,
	})

	if err := r.db.Delete(&model.Address{}, id).Error; err != nil {
		logger.Error("Failed to delete address from database", err, map[string]interface{}{
			"address_id": id,
		})
		return err
	}
	return nil
}

func (r *addressRepository) ClearDefault(userID, keepID uint) error {
	query := r.db.Model(&model.Address{}).Where("user_id = ? AND is_default = ?", userID, true)
	if keepID != 0 {
		query = query.Where("id <> ?", keepID)
	}
	if err := query.Update("is_default", false).Error; err != nil {
		logger.Error("Failed to clear default addresses", err, map[string]interface{}{
			"user_id": userID,
		})
		return err
	}
	return nil
}

func (r *addressRepository) MarkDefault(id uint) error {
	result := r.db.Model(&model.Address{}).Where("id = ?", id).Update("is_default", true)
	if result.Error != nil {
		logger.Error("Failed to mark address as default", result.Error, map[string]interface{}{
			"address_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
