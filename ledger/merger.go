package ledger

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"shopsync/models"
	"shopsync/retailers"
)

// Outcome says what one merge did to the ledger.
type Outcome int

const (
	// OutcomeNone: nothing written (no usable key in the extraction).
	OutcomeNone Outcome = iota
	// OutcomeImported: a new order row was created.
	OutcomeImported
	// OutcomeUpdated: an existing row was patched or a shipment upserted.
	OutcomeUpdated
	// OutcomeSkipped: the order already existed; message is a re-read.
	OutcomeSkipped
)

// Merger folds extracted message facts into the order/shipment ledger.
// Every write is keyed, so replaying the same message is a no-op or a
// harmless re-patch, never a duplicate row.
type Merger struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewMerger(db *gorm.DB, logger *log.Logger) *Merger {
	return &Merger{db: db, logger: logger}
}

// Apply merges one classified message into the ledger.
func (mg *Merger) Apply(userID uint, retailer string, typ retailers.MessageType, ex retailers.Extracted, sourceMessageID string) (Outcome, error) {
	switch typ {
	case retailers.TypeOrder:
		return mg.applyOrder(userID, retailer, ex, sourceMessageID)
	case retailers.TypeShipping:
		return mg.applyShipping(userID, retailer, ex)
	case retailers.TypeDelivered:
		return mg.applyDelivered(userID, retailer, ex)
	case retailers.TypeCanceled:
		return mg.applyCanceled(userID, retailer, ex)
	}
	return OutcomeNone, nil
}

func (mg *Merger) applyOrder(userID uint, retailer string, ex retailers.Extracted, sourceMessageID string) (Outcome, error) {
	if ex.OrderNumber == nil {
		return OutcomeNone, nil
	}

	var existing models.Order
	err := mg.db.Where("user_id = ? AND retailer = ? AND order_number = ?",
		userID, retailer, *ex.OrderNumber).First(&existing).Error
	if err == nil {
		return OutcomeSkipped, nil
	}
	if err != gorm.ErrRecordNotFound {
		return OutcomeNone, fmt.Errorf("order lookup failed: %w", err)
	}

	order := models.Order{
		UserID:          userID,
		Retailer:        retailer,
		OrderNumber:     *ex.OrderNumber,
		OrderDate:       ex.OrderDate,
		Quantity:        1,
		UnitPriceCents:  ex.UnitPriceCents,
		TotalCents:      ex.TotalCents,
		Status:          models.OrderStatusOrdered,
		SourceMessageID: sourceMessageID,
	}
	if ex.ItemName != nil {
		order.ItemName = *ex.ItemName
	}
	if ex.Quantity != nil {
		order.Quantity = *ex.Quantity
	}
	if ex.ImageURL != nil {
		order.ImageURL = *ex.ImageURL
	}

	if err := mg.db.Create(&order).Error; err != nil {
		return OutcomeNone, fmt.Errorf("failed to create order: %w", err)
	}
	return OutcomeImported, nil
}

func (mg *Merger) applyShipping(userID uint, retailer string, ex retailers.Extracted) (Outcome, error) {
	if ex.OrderNumber == nil && ex.TrackingNumber == nil {
		return OutcomeNone, nil
	}

	touched := false

	if ex.TrackingNumber != nil {
		orderNumber := models.UnknownOrderID
		if ex.OrderNumber != nil {
			orderNumber = *ex.OrderNumber
		}
		if err := mg.upsertShipment(userID, retailer, orderNumber, ex, models.OrderStatusInTransit); err != nil {
			return OutcomeNone, err
		}
		touched = true
	}

	if ex.OrderNumber != nil {
		updates := map[string]interface{}{}
		if ex.ShippedAt != nil {
			updates["shipped_at"] = ex.ShippedAt
		}
		patched, err := mg.patchOrder(userID, retailer, *ex.OrderNumber, updates, models.OrderStatusInTransit)
		if err != nil {
			return OutcomeNone, err
		}
		touched = touched || patched
	}

	if touched {
		return OutcomeUpdated, nil
	}
	return OutcomeNone, nil
}

func (mg *Merger) applyDelivered(userID uint, retailer string, ex retailers.Extracted) (Outcome, error) {
	if ex.OrderNumber == nil && ex.TrackingNumber == nil {
		return OutcomeNone, nil
	}

	touched := false

	if ex.TrackingNumber != nil {
		orderNumber := models.UnknownOrderID
		if ex.OrderNumber != nil {
			orderNumber = *ex.OrderNumber
		}
		if err := mg.upsertShipment(userID, retailer, orderNumber, ex, models.OrderStatusDelivered); err != nil {
			return OutcomeNone, err
		}
		touched = true
	}

	if ex.OrderNumber != nil {
		updates := map[string]interface{}{}
		if ex.DeliveredAt != nil {
			updates["delivered_at"] = ex.DeliveredAt
		}
		patched, err := mg.patchOrder(userID, retailer, *ex.OrderNumber, updates, models.OrderStatusDelivered)
		if err != nil {
			return OutcomeNone, err
		}
		touched = touched || patched
	}

	if touched {
		return OutcomeUpdated, nil
	}
	return OutcomeNone, nil
}

func (mg *Merger) applyCanceled(userID uint, retailer string, ex retailers.Extracted) (Outcome, error) {
	if ex.OrderNumber == nil {
		return OutcomeNone, nil
	}

	var order models.Order
	err := mg.db.Where("user_id = ? AND retailer = ? AND order_number = ?",
		userID, retailer, *ex.OrderNumber).First(&order).Error
	if err == gorm.ErrRecordNotFound {
		// Nothing to cancel; the order was never seen.
		return OutcomeNone, nil
	}
	if err != nil {
		return OutcomeNone, fmt.Errorf("order lookup failed: %w", err)
	}

	updates := map[string]interface{}{}
	if order.OrderDate == nil && ex.OrderDate != nil {
		updates["order_date"] = ex.OrderDate
	}
	if canAdvance(order.Status, models.OrderStatusCanceled) {
		updates["status"] = models.OrderStatusCanceled
	}
	if len(updates) == 0 {
		return OutcomeSkipped, nil
	}
	if err := mg.db.Model(&order).Updates(updates).Error; err != nil {
		return OutcomeNone, fmt.Errorf("failed to cancel order: %w", err)
	}
	return OutcomeUpdated, nil
}

// patchOrder applies a partial, non-destructive update to an existing
// order: only supplied fields are written, and status moves only along
// the allowed transitions. Returns false when no row matched.
func (mg *Merger) patchOrder(userID uint, retailer, orderNumber string, updates map[string]interface{}, nextStatus string) (bool, error) {
	var order models.Order
	err := mg.db.Where("user_id = ? AND retailer = ? AND order_number = ?",
		userID, retailer, orderNumber).First(&order).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("order lookup failed: %w", err)
	}

	if canAdvance(order.Status, nextStatus) {
		updates["status"] = nextStatus
	}
	if len(updates) == 0 {
		return false, nil
	}
	if err := mg.db.Model(&order).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("failed to patch order: %w", err)
	}
	return true, nil
}

// upsertShipment creates or partially updates a shipment row keyed by
// (user, retailer, order number, tracking number).
func (mg *Merger) upsertShipment(userID uint, retailer, orderNumber string, ex retailers.Extracted, nextStatus string) error {
	var shipment models.Shipment
	err := mg.db.Where("user_id = ? AND retailer = ? AND order_number = ? AND tracking_number = ?",
		userID, retailer, orderNumber, *ex.TrackingNumber).First(&shipment).Error

	if err == gorm.ErrRecordNotFound {
		shipment = models.Shipment{
			UserID:         userID,
			Retailer:       retailer,
			OrderNumber:    orderNumber,
			TrackingNumber: *ex.TrackingNumber,
			Status:         nextStatus,
			ShippedAt:      ex.ShippedAt,
			DeliveredAt:    ex.DeliveredAt,
		}
		if ex.Carrier != nil {
			shipment.Carrier = *ex.Carrier
		}
		if err := mg.db.Create(&shipment).Error; err != nil {
			return fmt.Errorf("failed to create shipment: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("shipment lookup failed: %w", err)
	}

	updates := map[string]interface{}{}
	if ex.Carrier != nil && shipment.Carrier == "" {
		updates["carrier"] = *ex.Carrier
	}
	if ex.ShippedAt != nil && shipment.ShippedAt == nil {
		updates["shipped_at"] = ex.ShippedAt
	}
	if ex.DeliveredAt != nil {
		updates["delivered_at"] = ex.DeliveredAt
	}
	if canAdvance(shipment.Status, nextStatus) {
		updates["status"] = nextStatus
	}
	if len(updates) == 0 {
		return nil
	}
	if err := mg.db.Model(&shipment).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return nil
}
