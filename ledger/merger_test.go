package ledger

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopsync/models"
	"shopsync/retailers"
)

func testMerger(t *testing.T) (*Merger, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.MailboxAccount{}, &models.Order{}, &models.Shipment{}))
	return NewMerger(db, log.New(io.Discard, "", 0)), db
}

func strPtr(s string) *string       { return &s }
func intPtr(n int) *int             { return &n }
func i64Ptr(n int64) *int64         { return &n }
func timePtr(t time.Time) *time.Time { return &t }

func TestApplyOrderImportAndIdempotence(t *testing.T) {
	mg, db := testMerger(t)

	ex := retailers.Extracted{
		OrderNumber:    strPtr("113-1234567-1234567"),
		OrderDate:      timePtr(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
		ItemName:       strPtr("USB-C Cable"),
		Quantity:       intPtr(2),
		UnitPriceCents: i64Ptr(1199),
		TotalCents:     i64Ptr(2598),
	}

	outcome, err := mg.Apply(1, "Amazon", retailers.TypeOrder, ex, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeImported, outcome)

	// Replaying the same message must not duplicate the row.
	outcome, err = mg.Apply(1, "Amazon", retailers.TypeOrder, ex, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	var orders []models.Order
	require.NoError(t, db.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, "113-1234567-1234567", orders[0].OrderNumber)
	assert.Equal(t, "USB-C Cable", orders[0].ItemName)
	assert.Equal(t, 2, orders[0].Quantity)
	assert.Equal(t, models.OrderStatusOrdered, orders[0].Status)
	assert.Equal(t, "msg-1", orders[0].SourceMessageID)
	require.NotNil(t, orders[0].TotalCents)
	assert.Equal(t, int64(2598), *orders[0].TotalCents)
}

func TestApplyWithoutKeysWritesNothing(t *testing.T) {
	mg, db := testMerger(t)

	// No order number: order and cancellation merges are no-ops.
	for _, typ := range []retailers.MessageType{retailers.TypeOrder, retailers.TypeCanceled} {
		outcome, err := mg.Apply(1, "Amazon", typ, retailers.Extracted{TotalCents: i64Ptr(999)}, "msg-1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeNone, outcome)
	}

	// Neither order number nor tracking number: shipping/delivery no-ops.
	for _, typ := range []retailers.MessageType{retailers.TypeShipping, retailers.TypeDelivered} {
		outcome, err := mg.Apply(1, "Amazon", typ, retailers.Extracted{Carrier: strPtr("UPS")}, "msg-2")
		require.NoError(t, err)
		assert.Equal(t, OutcomeNone, outcome)
	}

	var orderCount, shipmentCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	db.Model(&models.Shipment{}).Count(&shipmentCount)
	assert.Zero(t, orderCount)
	assert.Zero(t, shipmentCount)
}

func TestOrderLifecycle(t *testing.T) {
	mg, db := testMerger(t)

	orderNo := strPtr("113-1234567-1234567")
	shippedAt := timePtr(time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))
	deliveredAt := timePtr(time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC))

	outcome, err := mg.Apply(1, "Amazon", retailers.TypeOrder,
		retailers.Extracted{OrderNumber: orderNo, ItemName: strPtr("Cable")}, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeImported, outcome)

	outcome, err = mg.Apply(1, "Amazon", retailers.TypeShipping, retailers.Extracted{
		OrderNumber:    orderNo,
		TrackingNumber: strPtr("1Z999AA10123456784"),
		Carrier:        strPtr("UPS"),
		ShippedAt:      shippedAt,
	}, "msg-2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	outcome, err = mg.Apply(1, "Amazon", retailers.TypeDelivered, retailers.Extracted{
		OrderNumber:    orderNo,
		TrackingNumber: strPtr("1Z999AA10123456784"),
		DeliveredAt:    deliveredAt,
	}, "msg-3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	var order models.Order
	require.NoError(t, db.Where("order_number = ?", *orderNo).First(&order).Error)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
	assert.Equal(t, "Cable", order.ItemName)
	require.NotNil(t, order.ShippedAt)
	assert.True(t, order.ShippedAt.Equal(*shippedAt))
	require.NotNil(t, order.DeliveredAt)
	assert.True(t, order.DeliveredAt.Equal(*deliveredAt))

	var shipments []models.Shipment
	require.NoError(t, db.Find(&shipments).Error)
	require.Len(t, shipments, 1)
	assert.Equal(t, *orderNo, shipments[0].OrderNumber)
	assert.Equal(t, "UPS", shipments[0].Carrier)
	assert.Equal(t, models.OrderStatusDelivered, shipments[0].Status)
	require.NotNil(t, shipments[0].ShippedAt)
	require.NotNil(t, shipments[0].DeliveredAt)
}

func TestStandaloneShipmentUsesUnknownOrderID(t *testing.T) {
	mg, db := testMerger(t)

	outcome, err := mg.Apply(1, "Walmart", retailers.TypeShipping, retailers.Extracted{
		TrackingNumber: strPtr("9400111899223100001234"),
		Carrier:        strPtr("USPS"),
	}, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	var shipment models.Shipment
	require.NoError(t, db.First(&shipment).Error)
	assert.Equal(t, models.UnknownOrderID, shipment.OrderNumber)
	assert.Equal(t, models.OrderStatusInTransit, shipment.Status)
	assert.Equal(t, "USPS", shipment.Carrier)

	// No phantom order is fabricated for it.
	var orderCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	assert.Zero(t, orderCount)
}

func TestStaleShippingDoesNotRegressDelivered(t *testing.T) {
	mg, db := testMerger(t)

	orderNo := strPtr("113-1234567-1234567")
	_, err := mg.Apply(1, "Amazon", retailers.TypeOrder, retailers.Extracted{OrderNumber: orderNo}, "msg-1")
	require.NoError(t, err)
	_, err = mg.Apply(1, "Amazon", retailers.TypeDelivered, retailers.Extracted{
		OrderNumber: orderNo,
		DeliveredAt: timePtr(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)),
	}, "msg-2")
	require.NoError(t, err)

	// A shipping notice read after the delivery confirmation may fill in
	// shipped_at but must not move the status backwards.
	outcome, err := mg.Apply(1, "Amazon", retailers.TypeShipping, retailers.Extracted{
		OrderNumber: orderNo,
		ShippedAt:   timePtr(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)),
	}, "msg-3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	var order models.Order
	require.NoError(t, db.Where("order_number = ?", *orderNo).First(&order).Error)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.ShippedAt)

	// With nothing new to add, the same stale notice is a no-op.
	outcome, err = mg.Apply(1, "Amazon", retailers.TypeShipping,
		retailers.Extracted{OrderNumber: orderNo}, "msg-3")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
}

func TestCanceledIsTerminal(t *testing.T) {
	mg, db := testMerger(t)

	orderNo := strPtr("113-1234567-1234567")
	_, err := mg.Apply(1, "Amazon", retailers.TypeOrder, retailers.Extracted{OrderNumber: orderNo}, "msg-1")
	require.NoError(t, err)

	outcome, err := mg.Apply(1, "Amazon", retailers.TypeCanceled,
		retailers.Extracted{OrderNumber: orderNo}, "msg-2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	var order models.Order
	require.NoError(t, db.Where("order_number = ?", *orderNo).First(&order).Error)
	assert.Equal(t, models.OrderStatusCanceled, order.Status)

	// A late delivery notice cannot resurrect a canceled order.
	_, err = mg.Apply(1, "Amazon", retailers.TypeDelivered, retailers.Extracted{
		OrderNumber: orderNo,
		DeliveredAt: timePtr(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)),
	}, "msg-3")
	require.NoError(t, err)
	require.NoError(t, db.Where("order_number = ?", *orderNo).First(&order).Error)
	assert.Equal(t, models.OrderStatusCanceled, order.Status)

	// Replaying the cancellation changes nothing.
	outcome, err = mg.Apply(1, "Amazon", retailers.TypeCanceled,
		retailers.Extracted{OrderNumber: orderNo}, "msg-2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestCancelUnseenOrderIsNoop(t *testing.T) {
	mg, db := testMerger(t)

	outcome, err := mg.Apply(1, "Target", retailers.TypeCanceled,
		retailers.Extracted{OrderNumber: strPtr("1012345678901")}, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
}
