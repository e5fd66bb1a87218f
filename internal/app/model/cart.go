package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Cart is keyed by OwnerKey so that user and guest carts share one shape.
type Cart struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	OwnerKey  string     `gorm:"size:80;uniqueIndex;not null" json:"-"`
	UserID    *uint      `gorm:"index" json:"user_id,omitempty"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Cart) TableName() string {
	return "carts"
}

func UserCartKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func GuestCartKey(session string) string {
	return "guest:" + session
}

func (c *Cart) IsGuest() bool {
	return c.UserID == nil
}

func (c *Cart) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Subtotal sums the snapshotted unit prices.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

type CartItem struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CartID    uint            `gorm:"not null;uniqueIndex:idx_cart_items_cart_variant" json:"cart_id"`
	VariantID uint            `gorm:"not null;uniqueIndex:idx_cart_items_cart_variant" json:"variant_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"` // price at line-add time
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Variant *Variant `gorm:"foreignKey:VariantID" json:"variant,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
