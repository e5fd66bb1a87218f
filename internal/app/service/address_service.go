package service

import (
	"errors"
	"strings"

	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/app/repository"
	"github.com/ikkim/shopcore-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrAddressNotFound    = errors.New("address not found")
	ErrUnauthorizedAccess = errors.New("unauthorized access to address")
)

type AddressInput struct {
	Name       string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

// AddressPatch carries only the fields being changed.
type AddressPatch struct {
	Name       *string
	Street     *string
	City       *string
	State      *string
	PostalCode *string
	Country    *string
	Phone      *string
	IsDefault  *bool
}

type AddressService interface {
	List(userID uint) ([]model.Address, error)
	Add(userID uint, input AddressInput) (*model.Address, error)
	Update(userID, addressID uint, patch AddressPatch) (*model.Address, error)
	// Remove returns the id of the address promoted to default, if any.
	Remove(userID, addressID uint) (*uint, error)
	SetDefault(userID, addressID uint) (*model.Address, error)
}

type addressService struct {
	db          *gorm.DB
	addressRepo repository.AddressRepository
	userRepo    repository.UserRepository
}

func NewAddressService(db *gorm.DB, addressRepo repository.AddressRepository, userRepo repository.UserRepository) AddressService {
	return &addressService{
		db:          db,
		addressRepo: addressRepo,
		userRepo:    userRepo,
	}
}

func (s *addressService) List(userID uint) ([]model.Address, error) {
	addresses, err := s.addressRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user addresses", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return addresses, nil
}

// ownerTx runs fn in a transaction holding the owner's user row lock, which
// serialises all address book writes for that owner.
func (s *addressService) ownerTx(userID uint, fn func(repo repository.AddressRepository) error) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.userRepo.WithTx(tx).LockByID(userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return fn(s.addressRepo.WithTx(tx))
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		logger.Warn("Address default race lost", map[string]interface{}{
			"user_id": userID,
		})
		return ErrConflict
	}
	return err
}

func (s *addressService) Add(userID uint, input AddressInput) (*model.Address, error) {
	var created *model.Address
	err := s.ownerTx(userID, func(repo repository.AddressRepository) error {
		var err error
		created, err = addAddressLocked(repo, userID, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Address created", map[string]interface{}{
		"user_id":    userID,
		"address_id": created.ID,
		"is_default": created.IsDefault,
	})
	return created, nil
}

// addAddressLocked expects the owner row to be locked. The first address of an
// owner always becomes the default.
func addAddressLocked(repo repository.AddressRepository, userID uint, input AddressInput) (*model.Address, error) {
	address, err := buildAddress(input)
	if err != nil {
		return nil, err
	}
	address.UserID = &userID

	count, err := repo.CountByUserID(userID)
	if err != nil {
		return nil, err
	}
	address.IsDefault = input.IsDefault || count == 0

	if address.IsDefault {
		if err := repo.ClearDefault(userID, 0); err != nil {
			return nil, err
		}
	}
	if err := repo.Create(address); err != nil {
		return nil, err
	}
	return address, nil
}

// buildAddress normalises input into an ownerless address.
func buildAddress(input AddressInput) (*model.Address, error) {
	address := &model.Address{
		Name:       strings.TrimSpace(input.Name),
		Street:     strings.TrimSpace(input.Street),
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(input.Country)),
		Phone:      strings.TrimSpace(input.Phone),
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	return address, nil
}

func validateAddress(a *model.Address) error {
	switch {
	case a.Name == "":
		return validationError("address name is required")
	case a.Street == "":
		return validationError("street is required")
	case a.City == "":
		return validationError("city is required")
	case a.PostalCode == "":
		return validationError("postal code is required")
	case len(a.Country) != 2:
		return validationError("country must be a two-letter code")
	}
	return nil
}

func findOwnedAddress(repo repository.AddressRepository, userID, addressID uint) (*model.Address, error) {
	address, err := repo.FindByID(addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	if !address.OwnedBy(userID) {
		logger.Warn("Address access denied", map[string]interface{}{
			"user_id":    userID,
			"address_id": addressID,
		})
		return nil, ErrUnauthorizedAccess
	}
	return address, nil
}

func (s *addressService) Update(userID, addressID uint, patch AddressPatch) (*model.Address, error) {
	var updated *model.Address
	err := s.ownerTx(userID, func(repo repository.AddressRepository) error {
		address, err := findOwnedAddress(repo, userID, addressID)
		if err != nil {
			return err
		}

		applyString(&address.Name, patch.Name)
		applyString(&address.Street, patch.Street)
		applyString(&address.City, patch.City)
		applyString(&address.State, patch.State)
		applyString(&address.PostalCode, patch.PostalCode)
		applyString(&address.Phone, patch.Phone)
		if patch.Country != nil {
			address.Country = strings.ToUpper(strings.TrimSpace(*patch.Country))
		}
		if err := validateAddress(address); err != nil {
			return err
		}

		// unsetting the default is ignored so the owner keeps exactly one
		if patch.IsDefault != nil && *patch.IsDefault && !address.IsDefault {
			if err := repo.ClearDefault(userID, address.ID); err != nil {
				return err
			}
			address.IsDefault = true
		}

		if err := repo.Update(address); err != nil {
			return err
		}
		updated = address
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Address updated", map[string]interface{}{
		"user_id":    userID,
		"address_id": addressID,
	})
	return updated, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (s *addressService) Remove(userID, addressID uint) (*uint, error) {
	var promoted *uint
	err := s.ownerTx(userID, func(repo repository.AddressRepository) error {
		address, err := findOwnedAddress(repo, userID, addressID)
		if err != nil {
			return err
		}
		if err := repo.Delete(address.ID); err != nil {
			return err
		}
		if !address.IsDefault {
			return nil
		}

		oldest, err := repo.FindOldest(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := repo.MarkDefault(oldest.ID); err != nil {
			return err
		}
		promoted = &oldest.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Address removed", map[string]interface{}{
		"user_id":     userID,
		"address_id":  addressID,
		"promoted_id": promoted,
	})
	return promoted, nil
}

func (s *addressService) SetDefault(userID, addressID uint) (*model.Address, error) {
	var address *model.Address
	err := s.ownerTx(userID, func(repo repository.AddressRepository) error {
		var err error
		address, err = findOwnedAddress(repo, userID, addressID)
		if err != nil {
			return err
		}
		if address.IsDefault {
			return nil
		}
		if err := repo.ClearDefault(userID, address.ID); err != nil {
			return err
		}
		if err := repo.MarkDefault(address.ID); err != nil {
			return err
		}
		address.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}
