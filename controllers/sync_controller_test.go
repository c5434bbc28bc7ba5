package controller

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"shopsync/config"
	"shopsync/ledger"
	"shopsync/models"
	"shopsync/retailers"
	"shopsync/utils"
)

type fakeSession struct {
	ids    []uint32
	msgs   map[uint32]*retailers.Message
	closed bool
}

func (f *fakeSession) ListCandidates(lookbackDays, max int) ([]uint32, error) {
	if len(f.ids) > max {
		return f.ids[:max], nil
	}
	return f.ids, nil
}

func (f *fakeSession) FetchMessage(uid uint32) (*retailers.Message, error) {
	msg, ok := f.msgs[uid]
	if !ok {
		return nil, fmt.Errorf("no such message: %d", uid)
	}
	return msg, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func amazonOrderMessage(uid uint32) *retailers.Message {
	return &retailers.Message{
		ID:      fmt.Sprintf("msg-%d", uid),
		From:    "auto-confirm@amazon.com",
		Subject: fmt.Sprintf("Your Amazon.com order of \"Item %d\"", uid),
		Date:    time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Text:    fmt.Sprintf("Order #113-1234567-%07d\nOrder Total: $19.99", uid),
	}
}

func setupSyncTest(t *testing.T, session *fakeSession) (*SyncController, *gorm.DB, *models.MailboxAccount) {
	t.Helper()

	config.AppConfig = config.Config{
		EncryptionKey: "0123456789abcdef",
		Sync: config.SyncConfig{
			LookbackDays:    90,
			MaxMessages:     200,
			BatchSize:       25,
			BudgetSeconds:   60,
			SafetyMarginSec: 5,
		},
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.MailboxAccount{}, &models.Order{}, &models.Shipment{}))

	user := models.User{Email: "user@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	encrypted, err := utils.Encrypt("access-token")
	require.NoError(t, err)
	account := models.MailboxAccount{
		UserID:       user.ID,
		EmailAddress: "user@example.com",
		Provider:     "google",
		AccessToken:  encrypted,
		TokenExpiry:  time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&account).Error)

	logger := log.New(io.Discard, "", 0)
	sc := &SyncController{
		db:     db,
		logger: logger,
		merger: ledger.NewMerger(db, logger),
		lease:  utils.NewLease(nil),
		now:    time.Now,
		dial: func(email, accessToken string) (MailboxSession, error) {
			return session, nil
		},
	}
	return sc, db, &account
}

func TestRunCommitImportsAndIsIdempotent(t *testing.T) {
	session := &fakeSession{
		ids: []uint32{1, 2, 3, 99},
		msgs: map[uint32]*retailers.Message{
			1: amazonOrderMessage(1),
			2: amazonOrderMessage(2),
			3: amazonOrderMessage(3),
			// 99 has no body and fails to fetch; the run continues.
		},
	}
	sc, db, account := setupSyncTest(t, session)

	counts, err := sc.runCommit(context.Background(), account, 200)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Imported)
	assert.Equal(t, 0, counts.SkippedExisting)
	assert.True(t, session.closed)

	var orderCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	assert.Equal(t, int64(3), orderCount)

	var refreshed models.MailboxAccount
	require.NoError(t, db.First(&refreshed, account.ID).Error)
	assert.NotNil(t, refreshed.LastSyncedAt)
	assert.Nil(t, refreshed.LastError)

	// Re-reading the same mailbox is a no-op on the ledger.
	counts, err = sc.runCommit(context.Background(), account, 200)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Imported)
	assert.Equal(t, 3, counts.SkippedExisting)
	db.Model(&models.Order{}).Count(&orderCount)
	assert.Equal(t, int64(3), orderCount)
}

func TestRunCommitBudgetExhaustionReturnsPartialCounts(t *testing.T) {
	session := &fakeSession{
		ids:  []uint32{1, 2, 3, 4, 5},
		msgs: map[uint32]*retailers.Message{},
	}
	for _, id := range session.ids {
		session.msgs[id] = amazonOrderMessage(id)
	}
	sc, db, account := setupSyncTest(t, session)

	// The first four clock reads (start, batch check, two message
	// checks) sit inside the budget; the fifth jumps past the deadline.
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	calls := 0
	sc.now = func() time.Time {
		calls++
		if calls >= 5 {
			return base.Add(90 * time.Second)
		}
		return base
	}

	counts, err := sc.runCommit(context.Background(), account, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Imported)

	var orderCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	assert.Equal(t, int64(2), orderCount)

	// The next run picks up the remainder without double-counting.
	sc.now = time.Now
	counts, err = sc.runCommit(context.Background(), account, 200)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Imported)
	assert.Equal(t, 2, counts.SkippedExisting)
	db.Model(&models.Order{}).Count(&orderCount)
	assert.Equal(t, int64(5), orderCount)
}

func TestRunCommitFailsWithoutCredentials(t *testing.T) {
	sc, db, account := setupSyncTest(t, &fakeSession{})

	// Expired access token and nothing to refresh with: the run must
	// abort instead of silently syncing nothing.
	require.NoError(t, db.Model(account).Updates(map[string]interface{}{
		"token_expiry":  time.Now().Add(-time.Hour),
		"refresh_token": "",
	}).Error)
	account.TokenExpiry = time.Now().Add(-time.Hour)
	account.RefreshToken = ""

	_, err := sc.runCommit(context.Background(), account, 200)
	require.ErrorIs(t, err, utils.ErrNoRefreshToken)
}

func TestRunPreviewSkipsExistingAndWritesNothing(t *testing.T) {
	session := &fakeSession{
		ids: []uint32{1, 2, 3},
		msgs: map[uint32]*retailers.Message{
			1: amazonOrderMessage(1),
			2: amazonOrderMessage(2),
			3: {
				ID:      "msg-3",
				From:    "ship-confirm@amazon.com",
				Subject: "Shipped: Your package was shipped",
				Text:    "Order #113-1234567-0000001",
			},
		},
	}
	sc, db, account := setupSyncTest(t, session)

	// Order 1 is already in the ledger.
	require.NoError(t, db.Create(&models.Order{
		UserID:      account.UserID,
		Retailer:    "Amazon",
		OrderNumber: "113-1234567-0000001",
		Status:      models.OrderStatusOrdered,
	}).Error)

	proposed, err := sc.runPreview(context.Background(), account, 200)
	require.NoError(t, err)
	require.Len(t, proposed, 1)
	assert.Equal(t, "Amazon", proposed[0].Retailer)
	assert.Equal(t, "113-1234567-0000002", proposed[0].OrderNumber)
	assert.Equal(t, "Item 2", proposed[0].ItemName)
	assert.Equal(t, 1, proposed[0].Quantity)
	require.NotNil(t, proposed[0].TotalCents)
	assert.Equal(t, int64(1999), *proposed[0].TotalCents)

	// Preview never touches the ledger.
	var orderCount int64
	db.Model(&models.Order{}).Count(&orderCount)
	assert.Equal(t, int64(1), orderCount)
}

func TestHandleSyncConflictWhileLeaseHeld(t *testing.T) {
	sc, db, account := setupSyncTest(t, &fakeSession{})

	var user models.User
	require.NoError(t, db.First(&user, account.UserID).Error)

	leaseKey := fmt.Sprintf("sync:account:%d", account.ID)
	acquired, err := sc.lease.Acquire(context.Background(), leaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	app := fiber.New()
	fctx := app.AcquireCtx(&fasthttp.RequestCtx{})
	defer app.ReleaseCtx(fctx)
	fctx.Request().URI().SetQueryString("mode=commit")
	fctx.Locals("user", &user)

	require.NoError(t, sc.HandleSync(fctx))
	assert.Equal(t, fiber.StatusConflict, fctx.Response().StatusCode())
}

func TestHandleSyncUnknownMode(t *testing.T) {
	sc, db, account := setupSyncTest(t, &fakeSession{})

	var user models.User
	require.NoError(t, db.First(&user, account.UserID).Error)

	app := fiber.New()
	fctx := app.AcquireCtx(&fasthttp.RequestCtx{})
	defer app.ReleaseCtx(fctx)
	fctx.Request().URI().SetQueryString("mode=bogus")
	fctx.Locals("user", &user)

	require.NoError(t, sc.HandleSync(fctx))
	assert.Equal(t, fiber.StatusBadRequest, fctx.Response().StatusCode())
}
