package retailers

import (
	nm "net/mail"
	"regexp"
	"strings"
	"time"
)

// MessageType is the bounded taxonomy a subject line classifies into.
type MessageType int

const (
	TypeUnknown MessageType = iota
	TypeOrder
	TypeShipping
	TypeDelivered
	TypeCanceled
)

func (t MessageType) String() string {
	switch t {
	case TypeOrder:
		return "order"
	case TypeShipping:
		return "shipping"
	case TypeDelivered:
		return "delivered"
	case TypeCanceled:
		return "canceled"
	}
	return "unknown"
}

// Message is one fetched mailbox message. It lives only for the
// duration of processing and is never persisted.
type Message struct {
	ID      string
	From    string
	Subject string
	Date    time.Time
	HTML    string
	Text    string
}

// BodyText returns the plain-text body, falling back to the flattened
// HTML body when the message had no text part.
func (m *Message) BodyText() string {
	if m.Text != "" {
		return m.Text
	}
	return htmlToText(m.HTML)
}

// Extracted carries the fields one extractor pulled out of a message.
// Every field is independently optional; extractors never fail, they
// just leave fields nil.
type Extracted struct {
	OrderNumber    *string
	OrderDate      *time.Time
	ItemName       *string
	Quantity       *int
	UnitPriceCents *int64
	TotalCents     *int64
	ImageURL       *string
	TrackingNumber *string
	Carrier        *string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}

// Profile bundles everything known about one retailer: how to recognize
// its sender addresses, its subject lines, and how to scrape its
// message bodies. Adding a retailer means adding an implementation and
// registering it below.
type Profile interface {
	Name() string
	MatchesSender(addr string) bool
	Classify(subject string) MessageType
	ParseOrder(m *Message) Extracted
	ParseShipping(m *Message) Extracted
	ParseDelivered(m *Message) Extracted
}

var registry = []Profile{
	&Amazon{},
	&Walmart{},
	&BestBuy{},
	&Target{},
	&EBay{},
}

// Profiles returns the closed set of known retailer profiles.
func Profiles() []Profile {
	return registry
}

// Match maps a sender address to a retailer profile, first match wins.
// An unmatched sender returns nil and the message is excluded.
func Match(from string) Profile {
	addr := senderAddress(from)
	if addr == "" {
		return nil
	}
	for _, p := range registry {
		if p.MatchesSender(addr) {
			return p
		}
	}
	return nil
}

func senderAddress(from string) string {
	if a, err := nm.ParseAddress(from); err == nil {
		return strings.ToLower(a.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// domainMatches reports whether addr belongs to domain or a subdomain of it.
func domainMatches(addr, domain string) bool {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	host := addr[at+1:]
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Generic fallback subject patterns shared by all retailers, checked
// only after the profile's own patterns found nothing.
var (
	reGenericCanceled  = regexp.MustCompile(`(?i)\bcancel(?:l?ed|lation)\b`)
	reGenericDelivered = regexp.MustCompile(`(?i)\b(?:delivered|has arrived)\b`)
	reGenericShipping  = regexp.MustCompile(`(?i)\b(?:shipped|shipping confirmation|on its way|out for delivery|tracking number)\b`)
	reGenericOrder     = regexp.MustCompile(`(?i)\b(?:order confirm(?:ation|ed)|order (?:received|placed)|thank(?:s| you) for your (?:order|purchase)|we received your order)\b`)
)

// ClassifyType resolves a subject to a message type: the retailer's own
// patterns first, then the generic fallbacks. Priority is
// canceled > delivered > shipping > order in both passes, because
// delivery and cancellation subjects often contain shipping and order
// substrings.
func ClassifyType(p Profile, subject string) MessageType {
	if t := p.Classify(subject); t != TypeUnknown {
		return t
	}
	switch {
	case reGenericCanceled.MatchString(subject):
		return TypeCanceled
	case reGenericDelivered.MatchString(subject):
		return TypeDelivered
	case reGenericShipping.MatchString(subject):
		return TypeShipping
	case reGenericOrder.MatchString(subject):
		return TypeOrder
	}
	return TypeUnknown
}

// Extract dispatches to the profile's extractor for the message type.
// Cancellations carry no dedicated parser; the order parser recovers
// the order number and date, which is all a cancellation patch needs.
func Extract(p Profile, t MessageType, m *Message) Extracted {
	switch t {
	case TypeOrder, TypeCanceled:
		return p.ParseOrder(m)
	case TypeShipping:
		return p.ParseShipping(m)
	case TypeDelivered:
		return p.ParseDelivered(m)
	}
	return Extracted{}
}
