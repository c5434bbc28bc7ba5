package worker

import (
	"context"
	"log"
	"time"

	controller "shopsync/controllers"
	"shopsync/config"
	"shopsync/models"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
)

// SyncWorker runs the default continuous sync: a periodic commit pass
// over every user with a connected mailbox.
type SyncWorker struct {
	db     *gorm.DB
	sync   *controller.SyncController
	logger *log.Logger
}

func NewSyncWorker(db *gorm.DB, sync *controller.SyncController, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		db:     db,
		sync:   sync,
		logger: logger,
	}
}

func (sw *SyncWorker) Start(ctx context.Context) {
	sw.logger.Println("Starting sync worker...")
	interval := time.Duration(config.AppConfig.Sync.WorkerInterval) * time.Minute
	ticker := time.NewTicker(interval)

	for {
		select {
		case <-ticker.C:
			sw.syncAllUsers()
		case <-ctx.Done():
			sw.logger.Println("Stopping sync worker...")
			ticker.Stop()
			return
		}
	}
}

func (sw *SyncWorker) syncAllUsers() {
	sw.logger.Println("Running scheduled sync for all users...")

	var users []models.User
	if err := sw.db.Preload("MailboxAccounts").Find(&users).Error; err != nil {
		sw.logger.Printf("Failed to fetch users: %v", err)
		return
	}

	// A minimal Fiber app provides proper contexts for the controller.
	app := fiber.New()

	for _, user := range users {
		if len(user.MailboxAccounts) == 0 {
			continue
		}

		fctx := app.AcquireCtx(&fasthttp.RequestCtx{})
		fctx.Locals("user", &user)

		if err := sw.sync.HandleSync(fctx); err != nil {
			sw.logger.Printf("Scheduled sync failed for user %d: %v", user.ID, err)
		}
		app.ReleaseCtx(fctx)
	}
}
