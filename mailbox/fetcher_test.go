package mailbox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawMessage(lines ...string) *bytes.Buffer {
	return bytes.NewBufferString(strings.Join(lines, "\r\n"))
}

func TestDecodeBodyMultipartAlternative(t *testing.T) {
	literal := rawMessage(
		"From: ship-confirm@amazon.com",
		"Subject: Shipped: Your package was shipped",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=BOUNDARY",
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Order Total: $19.99",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>Order Total: $19.99</p></body></html>",
		"--BOUNDARY--",
		"",
	)

	text, html, err := decodeBody(literal)
	require.NoError(t, err)
	assert.Contains(t, text, "Order Total: $19.99")
	assert.Contains(t, html, "<p>Order Total: $19.99</p>")
}

func TestDecodeBodyPlainOnly(t *testing.T) {
	literal := rawMessage(
		"From: auto-confirm@amazon.com",
		"Subject: Your order",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Order #113-1234567-1234567",
		"",
	)

	text, html, err := decodeBody(literal)
	require.NoError(t, err)
	assert.Contains(t, text, "113-1234567-1234567")
	assert.Empty(t, html)
}

func TestDecodeBodyQuotedPrintable(t *testing.T) {
	literal := rawMessage(
		"From: auto-confirm@amazon.com",
		"Subject: Your order",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Order Total: =2419.99",
		"",
	)

	text, _, err := decodeBody(literal)
	require.NoError(t, err)
	assert.Contains(t, text, "Order Total: $19.99")
}

func TestDecodeBodySkipsAttachments(t *testing.T) {
	literal := rawMessage(
		"From: auto-confirm@amazon.com",
		"Subject: Your order",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=BOUNDARY",
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Order #113-1234567-1234567",
		"--BOUNDARY",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=\"invoice.pdf\"",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQK",
		"--BOUNDARY--",
		"",
	)

	text, html, err := decodeBody(literal)
	require.NoError(t, err)
	assert.Contains(t, text, "113-1234567-1234567")
	assert.Empty(t, html)
}
