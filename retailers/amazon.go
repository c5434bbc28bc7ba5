package retailers

import (
	"regexp"
	"strings"
)

// Amazon order, shipping, delivery and cancellation notifications.
type Amazon struct{}

var (
	amazonSenders = map[string]struct{}{
		"auto-confirm@amazon.com":      {},
		"ship-confirm@amazon.com":      {},
		"order-update@amazon.com":      {},
		"shipment-tracking@amazon.com": {},
		"delivery-update@amazon.com":   {},
	}

	// 111-2222222-3333333
	reAmazonOrderNo = regexp.MustCompile(`\b[0-9]{3}-[0-9]{7}-[0-9]{7}\b`)

	// Subject: Your Amazon.com order of "Widget" has shipped!
	reAmazonItemOf = regexp.MustCompile(`(?i)order of ["\x{201c}]?(.+?)["\x{201d}]?(?:\.\.\.|\x{2026}| has\b|!|$)`)

	reAmazonCanceled  = regexp.MustCompile(`(?i)\bcancel(?:l?ed|lation)\b`)
	reAmazonDelivered = regexp.MustCompile(`(?i)\bdelivered\b`)
	reAmazonShipped   = regexp.MustCompile(`(?i)\bshipped\b|on its way|out for delivery|arriving`)
	reAmazonOrder     = regexp.MustCompile(`(?i)your amazon(?:\.com)? order|order confirmation|thanks for your order`)
)

func (a *Amazon) Name() string { return "Amazon" }

func (a *Amazon) MatchesSender(addr string) bool {
	if _, ok := amazonSenders[addr]; ok {
		return true
	}
	return domainMatches(addr, "amazon.com")
}

func (a *Amazon) Classify(subject string) MessageType {
	switch {
	case reAmazonCanceled.MatchString(subject):
		return TypeCanceled
	case reAmazonDelivered.MatchString(subject):
		return TypeDelivered
	case reAmazonShipped.MatchString(subject):
		return TypeShipping
	case reAmazonOrder.MatchString(subject):
		return TypeOrder
	}
	return TypeUnknown
}

func (a *Amazon) ParseOrder(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reAmazonOrderNo, m)

	if mm := reAmazonItemOf.FindStringSubmatch(m.Subject); mm != nil {
		v := strings.TrimSpace(mm[1])
		if v != "" {
			ex.ItemName = &v
		}
	}
	if ex.ItemName == nil {
		ex.ItemName = quotedItem(m.Subject)
	}

	body := m.BodyText()
	ex.TotalCents = moneyNear(body, "order total", "grand total", "total")
	ex.UnitPriceCents = moneyNear(body, "item subtotal", "price")
	ex.Quantity = findQuantity(body)
	ex.ImageURL = findProductImage(m.HTML)
	if !m.Date.IsZero() {
		d := m.Date
		ex.OrderDate = &d
	}
	return ex
}

func (a *Amazon) ParseShipping(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reAmazonOrderNo, m)
	ex.ItemName = quotedItem(m.Subject)

	body := m.BodyText()
	tn, implied := findTracking(body)
	ex.TrackingNumber = tn
	// Amazon mostly delivers through its own logistics arm.
	ex.Carrier = detectCarrier(body, implied, "Amazon")
	if !m.Date.IsZero() {
		d := m.Date
		ex.ShippedAt = &d
	}
	return ex
}

func (a *Amazon) ParseDelivered(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reAmazonOrderNo, m)

	body := m.BodyText()
	tn, implied := findTracking(body)
	ex.TrackingNumber = tn
	if tn != nil {
		ex.Carrier = detectCarrier(body, implied, "Amazon")
	}
	if !m.Date.IsZero() {
		d := m.Date
		ex.DeliveredAt = &d
	}
	return ex
}
