package models

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses. Transitions are enforced by the ledger package.
const (
	OrderStatusOrdered   = "ordered"
	OrderStatusInTransit = "in_transit"
	OrderStatusDelivered = "delivered"
	OrderStatusCanceled  = "canceled"
)

// UnknownOrderID marks shipments whose notification carried a tracking
// number but no resolvable order number.
const UnknownOrderID = "Unknown"

// Order is one purchase extracted from a retailer confirmation email.
// A row is addressed solely by (user_id, retailer, order_number);
// later shipping/delivery/cancellation messages patch it in place.
type Order struct {
	gorm.Model
	UserID      uint   `gorm:"not null;uniqueIndex:idx_orders_key,priority:1" json:"user_id"`
	Retailer    string `gorm:"not null;uniqueIndex:idx_orders_key,priority:2" json:"retailer"`
	OrderNumber string `gorm:"not null;uniqueIndex:idx_orders_key,priority:3" json:"order_number"`

	OrderDate      *time.Time `json:"order_date"`
	ItemName       string     `json:"item_name"`
	Quantity       int        `gorm:"default:1" json:"quantity"`
	UnitPriceCents *int64     `json:"unit_price_cents"`
	TotalCents     *int64     `json:"total_cents"`
	ImageURL       string     `json:"image_url"`

	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	Status      string     `gorm:"not null;default:'ordered'" json:"status"`

	SourceMessageID string `gorm:"index" json:"source_message_id"`

	// Relations
	User User `json:"-"`
}

// Shipment is one physical package belonging to an order. A row is
// never created without at least a tracking number or an order number.
type Shipment struct {
	gorm.Model
	UserID         uint   `gorm:"not null;uniqueIndex:idx_shipments_key,priority:1" json:"user_id"`
	Retailer       string `gorm:"not null;uniqueIndex:idx_shipments_key,priority:2" json:"retailer"`
	OrderNumber    string `gorm:"not null;uniqueIndex:idx_shipments_key,priority:3" json:"order_number"`
	TrackingNumber string `gorm:"not null;uniqueIndex:idx_shipments_key,priority:4" json:"tracking_number"`

	Carrier     string     `json:"carrier"`
	Status      string     `gorm:"not null;default:'in_transit'" json:"status"`
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`

	// Relations
	User User `json:"-"`
}
