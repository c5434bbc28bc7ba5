package routes

import (
	"log"
	"os"

	controller "shopsync/controllers"
	"shopsync/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, syncController *controller.SyncController) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Public auth endpoints
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)

	accountController := controller.NewAccountController(db, log.New(os.Stdout, "ACCOUNT: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Mailbox account routes
	accounts := api.Group("/accounts")
	accounts.Post("/", accountController.ConnectAccount)
	accounts.Get("/", accountController.GetAccounts)
	accounts.Delete("/:id", accountController.DisconnectAccount)

	// Sync trigger
	api.Post("/sync", syncController.HandleSync)

	authLogger.Println("Routes initialized successfully")
}
