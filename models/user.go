package models

import (
	"gorm.io/gorm"
)

// User represents an account owner in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name     *string `json:"name,omitempty"`
	Timezone string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relations
	MailboxAccounts []MailboxAccount `gorm:"foreignKey:UserID" json:"mailbox_accounts,omitempty"`
	Orders          []Order          `gorm:"foreignKey:UserID" json:"-"`
}
