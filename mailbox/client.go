package mailbox

import (
	"crypto/tls"
	"fmt"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
)

// Client wraps one authenticated, read-only IMAP session against the
// mailbox provider. One is dialed per sync run and closed at the end.
type Client struct {
	c *client.Client
}

// Dial connects over TLS and authenticates with the OAuth access token.
func Dial(host string, port int, email, accessToken string) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	c, err := client.DialTLS(addr, &tls.Config{
		InsecureSkipVerify: false,
		ServerName:         host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	saslClient := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: email,
		Token:    accessToken,
		Host:     host,
		Port:     port,
	})
	if err := c.Authenticate(saslClient); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to authenticate with IMAP server: %w", err)
	}

	// Read-only select: syncing must never flag messages as seen.
	if _, err := c.Select("INBOX", true); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to select mailbox: %w", err)
	}

	return &Client{c: c}, nil
}

func (m *Client) Close() error {
	return m.c.Logout()
}
