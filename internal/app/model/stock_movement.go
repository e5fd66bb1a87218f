package model

import "time"

type StockMovementReason string

const (
	MovementOrderPlaced    StockMovementReason = "order_placed"
	MovementOrderCancelled StockMovementReason = "order_cancelled"
	MovementRestock        StockMovementReason = "restock"
	MovementAdjustment     StockMovementReason = "adjustment"
)

// StockMovement is an append-only ledger row written alongside every stock change.
type StockMovement struct {
	ID            uint                `gorm:"primarykey" json:"id"`
	VariantID     uint                `gorm:"not null;index" json:"variant_id"`
	OrderID       *uint               `gorm:"index" json:"order_id,omitempty"`
	Delta         int                 `gorm:"not null" json:"delta"`
	QuantityAfter int                 `gorm:"not null" json:"quantity_after"`
	Reason        StockMovementReason `gorm:"type:varchar(30);not null" json:"reason"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}
