package controller

import (
	"log"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"shopsync/models"
	"shopsync/utils"
)

// AccountController manages connected mailbox accounts. It only stores
// tokens that were already issued elsewhere; the OAuth consent flow is
// not this service's job.
type AccountController struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewAccountController(db *gorm.DB, logger *log.Logger) *AccountController {
	return &AccountController{db: db, logger: logger}
}

type ConnectAccountRequest struct {
	EmailAddress string `json:"email_address" validate:"required,email"`
	Provider     string `json:"provider" validate:"omitempty,oneof=google"`
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ConnectAccount stores (or replaces) the credentials for one mailbox.
func (ac *AccountController) ConnectAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req ConnectAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := checkmail.ValidateFormat(req.EmailAddress); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid mailbox address",
		})
	}

	encryptedAccess, err := utils.Encrypt(req.AccessToken)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encrypt credentials",
		})
	}
	encryptedRefresh, err := utils.Encrypt(req.RefreshToken)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encrypt credentials",
		})
	}

	expiry := time.Now()
	if req.ExpiresIn > 0 {
		expiry = expiry.Add(time.Duration(req.ExpiresIn) * time.Second)
	}

	provider := req.Provider
	if provider == "" {
		provider = "google"
	}

	var account models.MailboxAccount
	err = ac.db.Where("user_id = ? AND email_address = ?", user.ID, req.EmailAddress).First(&account).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		account = models.MailboxAccount{
			UserID:       user.ID,
			EmailAddress: req.EmailAddress,
			Provider:     provider,
			AccessToken:  encryptedAccess,
			RefreshToken: encryptedRefresh,
			TokenExpiry:  expiry,
		}
		if err := ac.db.Create(&account).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to save mailbox account",
			})
		}
	case err == nil:
		updates := map[string]interface{}{
			"provider":     provider,
			"access_token": encryptedAccess,
			"token_expiry": expiry,
			"last_error":   nil,
		}
		if req.RefreshToken != "" {
			updates["refresh_token"] = encryptedRefresh
		}
		if err := ac.db.Model(&account).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update mailbox account",
			})
		}
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up mailbox account",
		})
	}

	ac.logger.Printf("Mailbox account %d connected for user %d", account.ID, user.ID)

	account.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(account)
}

// GetAccounts lists the user's connected mailboxes without credentials.
func (ac *AccountController) GetAccounts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var accounts []models.MailboxAccount
	if err := ac.db.Where("user_id = ?", user.ID).Order("updated_at DESC").Find(&accounts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch mailbox accounts",
		})
	}

	for i := range accounts {
		accounts[i].Sanitize()
	}
	return c.JSON(accounts)
}

// DisconnectAccount removes a connected mailbox and its credentials.
func (ac *AccountController) DisconnectAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	accountID := c.Params("id")

	var account models.MailboxAccount
	if err := ac.db.Where("id = ? AND user_id = ?", accountID, user.ID).First(&account).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mailbox account not found",
		})
	}

	if err := ac.db.Delete(&account).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to disconnect mailbox account",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
