package models

import (
	"time"

	"gorm.io/gorm"
)

// MailboxAccount holds the OAuth credentials for one connected mailbox.
// Rows are created when a user connects a mailbox with already-issued
// provider tokens; only the token refresh path mutates them afterwards.
type MailboxAccount struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	EmailAddress string `gorm:"not null" json:"email_address"`
	Provider     string `gorm:"not null;default:'google'" json:"provider"`

	// Tokens are encrypted in the application layer
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"token_expiry"`

	LastSyncedAt *time.Time `json:"last_synced_at"`
	LastError    *string    `json:"last_error"`

	// Relations
	User User `json:"-"`
}

// Sanitize clears credential fields before the account is returned to a client.
func (a *MailboxAccount) Sanitize() {
	a.AccessToken = ""
	a.RefreshToken = ""
}
