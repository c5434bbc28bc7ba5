package controller

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/badoux/checkmail"
	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shopsync/config"
	"shopsync/ledger"
	"shopsync/mailbox"
	"shopsync/models"
	"shopsync/retailers"
	"shopsync/utils"
)

// MailboxSession is the slice of the mailbox client the sync loop
// needs; tests substitute a fake provider through the dial hook.
type MailboxSession interface {
	ListCandidates(lookbackDays, max int) ([]uint32, error)
	FetchMessage(uid uint32) (*retailers.Message, error)
	Close() error
}

type SyncController struct {
	db     *gorm.DB
	logger *log.Logger
	merger *ledger.Merger
	lease  *utils.Lease

	// Injection points for tests.
	now  func() time.Time
	dial func(email, accessToken string) (MailboxSession, error)
}

func NewSyncController(db *gorm.DB, logger *log.Logger, lease *utils.Lease) *SyncController {
	return &SyncController{
		db:     db,
		logger: logger,
		merger: ledger.NewMerger(db, logger),
		lease:  lease,
		now:    time.Now,
		dial: func(email, accessToken string) (MailboxSession, error) {
			return mailbox.Dial(config.AppConfig.Sync.IMAPHost, config.AppConfig.Sync.IMAPPort, email, accessToken)
		},
	}
}

// SyncCounts aggregates what one commit run did.
type SyncCounts struct {
	Imported        int `json:"imported"`
	Updated         int `json:"updated"`
	SkippedExisting int `json:"skipped_existing"`
}

// ProposedOrder is one candidate row returned by preview mode.
type ProposedOrder struct {
	Retailer       string     `json:"retailer"`
	OrderNumber    string     `json:"order_id"`
	OrderDate      *time.Time `json:"order_date"`
	ItemName       string     `json:"item_name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents *int64     `json:"unit_price_cents"`
	TotalCents     *int64     `json:"total_cents"`
	ImageURL       string     `json:"image_url"`
}

// HandleSync is the sync trigger. Query params: mode=preview|commit
// (default commit), max=N to cap candidate messages, health=1 to report
// readiness without syncing.
func (sc *SyncController) HandleSync(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if c.QueryBool("health") {
		return sc.healthCheck(c, user)
	}

	maxMessages := config.AppConfig.Sync.MaxMessages
	if v, err := strconv.Atoi(c.Query("max")); err == nil && v > 0 {
		maxMessages = v
	}

	account, err := sc.latestAccount(user.ID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No connected mailbox account",
		})
	}

	mode := c.Query("mode", "commit")
	switch mode {
	case "preview":
		proposed, err := sc.runPreview(c.Context(), account, maxMessages)
		if err != nil {
			return sc.runFailed(c, account, err)
		}
		return c.JSON(fiber.Map{"proposed": proposed})

	case "commit", "sync":
		leaseKey := fmt.Sprintf("sync:account:%d", account.ID)
		leaseTTL := time.Duration(config.AppConfig.Sync.BudgetSeconds+config.AppConfig.Sync.SafetyMarginSec) * time.Second
		acquired, err := sc.lease.Acquire(c.Context(), leaseKey, leaseTTL)
		if err != nil {
			return sc.runFailed(c, account, fmt.Errorf("failed to acquire sync lease: %w", err))
		}
		if !acquired {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A sync for this account is already running",
			})
		}
		defer sc.lease.Release(context.Background(), leaseKey)

		counts, err := sc.runCommit(c.Context(), account, maxMessages)
		if err != nil {
			return sc.runFailed(c, account, err)
		}
		return c.JSON(counts)

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown mode: " + mode,
		})
	}
}

// runFailed reports a run-level (configuration/credential/transport)
// failure. Per-message problems never land here.
func (sc *SyncController) runFailed(c *fiber.Ctx, account *models.MailboxAccount, err error) error {
	sc.logger.Printf("Sync failed for account %d: %v", account.ID, err)
	sentry.CaptureException(err)

	msg := err.Error()
	sc.db.Model(account).Update("last_error", &msg)

	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": msg,
	})
}

func (sc *SyncController) healthCheck(c *fiber.Ctx, user *models.User) error {
	oauthConfigured := config.AppConfig.Google.ClientID != "" && config.AppConfig.Google.ClientSecret != ""

	resp := fiber.Map{
		"oauth_configured": oauthConfigured,
	}

	account, err := sc.latestAccount(user.ID)
	resp["account_connected"] = err == nil

	ready := oauthConfigured && err == nil
	if err == nil {
		emailValid := checkmail.ValidateFormat(account.EmailAddress) == nil
		hasRefreshToken := account.RefreshToken != ""
		resp["email_valid"] = emailValid
		resp["has_refresh_token"] = hasRefreshToken
		ready = ready && emailValid && hasRefreshToken
	}
	resp["ready"] = ready

	return c.JSON(resp)
}

// latestAccount selects the most-recently-updated mailbox account for
// the user; one account is synced per run.
func (sc *SyncController) latestAccount(userID uint) (*models.MailboxAccount, error) {
	var account models.MailboxAccount
	if err := sc.db.Where("user_id = ?", userID).Order("updated_at DESC").First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// deadline computes the soft cutoff for one run, once at entry.
func (sc *SyncController) deadline(start time.Time) time.Time {
	budget := time.Duration(config.AppConfig.Sync.BudgetSeconds) * time.Second
	margin := time.Duration(config.AppConfig.Sync.SafetyMarginSec) * time.Second
	return start.Add(budget - margin)
}

// openSession refreshes credentials and dials the mailbox.
func (sc *SyncController) openSession(ctx context.Context, account *models.MailboxAccount) (MailboxSession, error) {
	token, err := utils.EnsureValidToken(ctx, sc.db, account)
	if err != nil {
		return nil, err
	}
	session, err := sc.dial(account.EmailAddress, token)
	if err != nil {
		return nil, fmt.Errorf("mailbox connect failed: %w", err)
	}
	return session, nil
}

func (sc *SyncController) runCommit(ctx context.Context, account *models.MailboxAccount, maxMessages int) (*SyncCounts, error) {
	start := sc.now()
	deadline := sc.deadline(start)
	runLog := logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"mode":       "commit",
	})

	session, err := sc.openSession(ctx, account)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ids, err := session.ListCandidates(config.AppConfig.Sync.LookbackDays, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("mailbox search failed: %w", err)
	}

	counts := &SyncCounts{}
	batchSize := config.AppConfig.Sync.BatchSize
	if batchSize <= 0 {
		batchSize = len(ids)
	}

loop:
	for i := 0; i < len(ids); i += batchSize {
		if sc.now().After(deadline) {
			runLog.Warn("sync budget exhausted between batches, returning partial counts")
			break
		}
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		for _, id := range ids[i:end] {
			if sc.now().After(deadline) {
				runLog.Warn("sync budget exhausted, returning partial counts")
				break loop
			}
			sc.processMessage(session, account.UserID, id, counts)
		}
	}

	syncedAt := sc.now()
	sc.db.Model(account).Updates(map[string]interface{}{
		"last_synced_at": &syncedAt,
		"last_error":     nil,
	})

	runLog.WithFields(logrus.Fields{
		"imported":         counts.Imported,
		"updated":          counts.Updated,
		"skipped_existing": counts.SkippedExisting,
		"candidates":       len(ids),
		"elapsed":          sc.now().Sub(start).String(),
	}).Info("sync completed")

	return counts, nil
}

// processMessage runs one message through fetch, classification,
// extraction and merge. Failures are logged and skipped; the run
// continues.
func (sc *SyncController) processMessage(session MailboxSession, userID uint, id uint32, counts *SyncCounts) {
	msg, err := session.FetchMessage(id)
	if err != nil {
		sc.logger.Printf("Failed to fetch message %d: %v", id, err)
		return
	}

	profile := retailers.Match(msg.From)
	if profile == nil {
		return
	}
	typ := retailers.ClassifyType(profile, msg.Subject)
	if typ == retailers.TypeUnknown {
		return
	}

	ex := retailers.Extract(profile, typ, msg)
	outcome, err := sc.merger.Apply(userID, profile.Name(), typ, ex, msg.ID)
	if err != nil {
		sc.logger.Printf("Failed to merge message %s: %v", msg.ID, err)
		return
	}

	switch outcome {
	case ledger.OutcomeImported:
		counts.Imported++
	case ledger.OutcomeUpdated:
		counts.Updated++
	case ledger.OutcomeSkipped:
		counts.SkippedExisting++
	}
}

// runPreview classifies and extracts order messages only, filters out
// ones already in the ledger, and writes nothing.
func (sc *SyncController) runPreview(ctx context.Context, account *models.MailboxAccount, maxMessages int) ([]ProposedOrder, error) {
	start := sc.now()
	deadline := sc.deadline(start)

	session, err := sc.openSession(ctx, account)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	ids, err := session.ListCandidates(config.AppConfig.Sync.LookbackDays, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("mailbox search failed: %w", err)
	}

	proposed := make([]ProposedOrder, 0)
	for _, id := range ids {
		if sc.now().After(deadline) {
			break
		}

		msg, err := session.FetchMessage(id)
		if err != nil {
			sc.logger.Printf("Failed to fetch message %d: %v", id, err)
			continue
		}

		profile := retailers.Match(msg.From)
		if profile == nil {
			continue
		}
		if retailers.ClassifyType(profile, msg.Subject) != retailers.TypeOrder {
			continue
		}

		ex := profile.ParseOrder(msg)
		if ex.OrderNumber == nil {
			continue
		}

		var existing models.Order
		err = sc.db.Where("user_id = ? AND retailer = ? AND order_number = ?",
			account.UserID, profile.Name(), *ex.OrderNumber).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			sc.logger.Printf("Order lookup failed for message %s: %v", msg.ID, err)
			continue
		}

		row := ProposedOrder{
			Retailer:       profile.Name(),
			OrderNumber:    *ex.OrderNumber,
			OrderDate:      ex.OrderDate,
			Quantity:       1,
			UnitPriceCents: ex.UnitPriceCents,
			TotalCents:     ex.TotalCents,
		}
		if ex.ItemName != nil {
			row.ItemName = *ex.ItemName
		}
		if ex.Quantity != nil {
			row.Quantity = *ex.Quantity
		}
		if ex.ImageURL != nil {
			row.ImageURL = *ex.ImageURL
		}
		proposed = append(proposed, row)
	}

	return proposed, nil
}
