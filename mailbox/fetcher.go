package mailbox

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"

	"shopsync/retailers"
)

// FetchMessage retrieves one message by UID and decodes it into its
// headers plus best-effort plain-text and HTML bodies. A malformed
// message returns an error; the caller logs it and moves on.
func (m *Client) FetchMessage(uid uint32) (*retailers.Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", uid, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d not returned by server", uid)
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return nil, fmt.Errorf("message %d body not found", uid)
	}

	bodyText, bodyHTML, err := decodeBody(literal)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %d: %w", uid, err)
	}

	out := &retailers.Message{
		ID:   strconv.FormatUint(uint64(uid), 10),
		HTML: bodyHTML,
		Text: bodyText,
	}
	if env := msg.Envelope; env != nil {
		if env.MessageId != "" {
			out.ID = env.MessageId
		}
		out.Subject = env.Subject
		out.Date = env.Date
		if len(env.From) > 0 {
			out.From = env.From[0].Address()
		}
	}

	return out, nil
}

// decodeBody walks the possibly-nested multipart structure, decoding
// each inline leaf by its declared media type.
func decodeBody(literal imap.Literal) (bodyText, bodyHTML string, err error) {
	mr, err := mail.CreateReader(literal)
	if err != nil {
		return "", "", fmt.Errorf("failed to create message reader: %w", err)
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", "", fmt.Errorf("failed to read next part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return "", "", fmt.Errorf("failed to read body part: %w", err)
			}

			if strings.Contains(contentType, "text/html") && bodyHTML == "" {
				bodyHTML = string(b)
			} else if strings.Contains(contentType, "text/plain") && bodyText == "" {
				bodyText = string(b)
			}
		case *mail.AttachmentHeader:
			// Attachments carry no purchase facts; skip them.
			_ = h
		}
	}

	return bodyText, bodyHTML, nil
}
