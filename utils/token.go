package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"shopsync/config"
	"shopsync/models"
)

// ErrNoRefreshToken means the stored access token is expired and the
// account has no refresh token to trade in. Nothing else in the run can
// succeed, so callers must abort rather than skip.
var ErrNoRefreshToken = errors.New("access token expired and no refresh token available")

// expirySlack keeps us from starting a run with a token that dies mid-flight.
const expirySlack = time.Minute

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.AppConfig.Google.ClientID,
		ClientSecret: config.AppConfig.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://mail.google.com/"},
	}
}

// EnsureValidToken returns a usable access token for the account,
// refreshing through the provider and persisting the rotated pair when
// the stored one is expired. Called once at the start of a sync run.
func EnsureValidToken(ctx context.Context, db *gorm.DB, account *models.MailboxAccount) (string, error) {
	access, err := Decrypt(account.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}

	if access != "" && time.Until(account.TokenExpiry) > expirySlack {
		return access, nil
	}

	refresh, err := Decrypt(account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	stale := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       account.TokenExpiry,
	}
	fresh, err := oauthConfig().TokenSource(ctx, stale).Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	if fresh.AccessToken != access {
		if err := persistToken(db, account, fresh); err != nil {
			return "", err
		}
	}

	return fresh.AccessToken, nil
}

// persistToken writes a rotated token pair back to the account record.
func persistToken(db *gorm.DB, account *models.MailboxAccount, tok *oauth2.Token) error {
	encryptedAccess, err := Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	updates := map[string]interface{}{
		"access_token": encryptedAccess,
		"token_expiry": tok.Expiry,
	}

	// Providers only rotate the refresh token sometimes; keep the old one otherwise.
	if tok.RefreshToken != "" {
		encryptedRefresh, err := Encrypt(tok.RefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		updates["refresh_token"] = encryptedRefresh
	}

	if err := db.Model(account).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	account.AccessToken = encryptedAccess
	account.TokenExpiry = tok.Expiry
	return nil
}
