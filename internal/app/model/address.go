package model

import (
	"time"

	"gorm.io/gorm"
)

// Address belongs to a user, or to nobody when it was entered at guest checkout.
// The partial unique index keeps at most one live default per user.
type Address struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     *uint          `gorm:"index;uniqueIndex:idx_addresses_user_default,where:is_default = true AND deleted_at IS NULL" json:"user_id,omitempty"`
	Name       string         `gorm:"size:100;not null" json:"name"`
	Street     string         `gorm:"type:text;not null" json:"street"`
	City       string         `gorm:"size:100;not null" json:"city"`
	State      string         `gorm:"size:100" json:"state"`
	PostalCode string         `gorm:"size:20;not null" json:"postal_code"`
	Country    string         `gorm:"size:2;not null" json:"country"`
	Phone      string         `gorm:"size:30" json:"phone"`
	IsDefault  bool           `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Address) TableName() string {
	return "addresses"
}

func (a *Address) OwnedBy(userID uint) bool {
	return a.UserID != nil && *a.UserID == userID
}

// Snapshot copies the destination fields that an order keeps forever.
func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Name:       a.Name,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
