package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Color struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Hex       string    `gorm:"size:7" json:"hex"`
	CreatedAt time.Time `json:"created_at"`
}

func (Color) TableName() string {
	return "colors"
}

type Product struct {
	ID          uint                `gorm:"primarykey" json:"id"`
	Name        string              `gorm:"not null" json:"name"`
	Description string              `gorm:"type:text" json:"description"`
	Price       decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	SalePrice   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"sale_price"`
	Images      pq.StringArray      `gorm:"type:text" json:"images"` // postgres array literal
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"-"`

	Variants []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// EffectivePrice is the sale price when one is set, otherwise the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// Variant is a purchasable (product, color, size) combination with its own stock.
type Variant struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_variants_product_color_size" json:"product_id"`
	ColorID   uint      `gorm:"not null;uniqueIndex:idx_variants_product_color_size" json:"color_id"`
	Size      string    `gorm:"size:20;not null;uniqueIndex:idx_variants_product_color_size" json:"size"`
	Quantity  int       `gorm:"not null;default:0;check:chk_variants_quantity,quantity >= 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Color   *Color   `gorm:"foreignKey:ColorID" json:"color,omitempty"`
}

func (Variant) TableName() string {
	return "variants"
}
