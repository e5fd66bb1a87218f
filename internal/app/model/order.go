package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string
type PaymentMethod string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"

	PaymentCredit    PaymentMethod = "CREDIT"
	PaymentPayPal    PaymentMethod = "PAYPAL"
	PaymentGooglePay PaymentMethod = "GOOGLEPAY"
	PaymentApplePay  PaymentMethod = "APPLEPAY"
	PaymentCOD       PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCredit, PaymentPayPal, PaymentGooglePay, PaymentApplePay, PaymentCOD:
		return true
	}
	return false
}

// ShippingAddress is embedded in Order so that later address edits never
// rewrite where an order was sent.
type ShippingAddress struct {
	Name       string `gorm:"size:100" json:"name"`
	Street     string `gorm:"type:text" json:"street"`
	City       string `gorm:"size:100" json:"city"`
	State      string `gorm:"size:100" json:"state"`
	PostalCode string `gorm:"size:20" json:"postal_code"`
	Country    string `gorm:"size:2" json:"country"`
	Phone      string `gorm:"size:30" json:"phone"`
}

type Order struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	OrderNumber string          `gorm:"size:36;uniqueIndex;not null" json:"order_number"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	IsGuest    bool   `gorm:"not null;default:false" json:"is_guest"`
	UserID     *uint  `gorm:"index" json:"user_id,omitempty"`
	GuestName  string `gorm:"size:100" json:"guest_name,omitempty"`
	GuestEmail string `gorm:"size:255;index" json:"guest_email,omitempty"`
	GuestPhone string `gorm:"size:30" json:"guest_phone,omitempty"`

	// Payment descriptor is stored as given; nothing here is verified.
	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	CardHolder    string        `gorm:"size:100" json:"card_holder,omitempty"`
	CardLast4     string        `gorm:"size:4" json:"card_last4,omitempty"`
	CardExpiry    string        `gorm:"size:7" json:"card_expiry,omitempty"`

	ShippingAddressID *uint           `gorm:"index" json:"shipping_address_id,omitempty"`
	ShippingAddress   ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`

	Notes          string    `gorm:"type:text" json:"notes,omitempty"`
	Carrier        string    `gorm:"size:50" json:"carrier,omitempty"`
	TrackingNumber string    `gorm:"size:100" json:"tracking_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	User    *User               `gorm:"foreignKey:UserID" json:"-"`
	Items   []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	History []OrderStatusChange `gorm:"foreignKey:OrderID" json:"history,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// ContactEmail is where notifications for this order go.
func (o *Order) ContactEmail() string {
	if o.IsGuest {
		return o.GuestEmail
	}
	if o.User != nil {
		return o.User.Email
	}
	return ""
}

func (o *Order) OwnedBy(userID uint) bool {
	return !o.IsGuest && o.UserID != nil && *o.UserID == userID
}

// OrderItem keeps only the variant and quantity; pricing lives in Order.Total.
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	VariantID uint      `gorm:"not null;index" json:"variant_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusChange audits every status write, forced or not.
type OrderStatusChange struct {
	ID         uint        `gorm:"primarykey" json:"id"`
	OrderID    uint        `gorm:"not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy  *uint       `json:"changed_by,omitempty"`
	Forced     bool        `gorm:"not null;default:false" json:"forced"`
	Reason     string      `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (OrderStatusChange) TableName() string {
	return "order_status_changes"
}
