package retailers

import "regexp"

// Walmart.com transactional notifications.
type Walmart struct{}

var (
	walmartSenders = map[string]struct{}{
		"help@walmart.com":     {},
		"no-reply@walmart.com": {},
	}

	// 2000123-4567890
	reWalmartOrderNo = regexp.MustCompile(`\b[0-9]{7}-[0-9]{6,8}\b`)

	reWalmartCanceled  = regexp.MustCompile(`(?i)\bcancel(?:l?ed|lation)\b`)
	reWalmartDelivered = regexp.MustCompile(`(?i)\bdelivered\b|has arrived`)
	reWalmartShipped   = regexp.MustCompile(`(?i)\bshipped\b|on its way|out for delivery`)
	reWalmartOrder     = regexp.MustCompile(`(?i)thanks for your (?:pre)?order|order confirmation|we got your order`)
)

func (w *Walmart) Name() string { return "Walmart" }

func (w *Walmart) MatchesSender(addr string) bool {
	if _, ok := walmartSenders[addr]; ok {
		return true
	}
	return domainMatches(addr, "walmart.com")
}

func (w *Walmart) Classify(subject string) MessageType {
	switch {
	case reWalmartCanceled.MatchString(subject):
		return TypeCanceled
	case reWalmartDelivered.MatchString(subject):
		return TypeDelivered
	case reWalmartShipped.MatchString(subject):
		return TypeShipping
	case reWalmartOrder.MatchString(subject):
		return TypeOrder
	}
	return TypeUnknown
}

func (w *Walmart) ParseOrder(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reWalmartOrderNo, m)
	ex.ItemName = quotedItem(m.Subject)

	body := m.BodyText()
	ex.TotalCents = moneyNear(body, "order total", "total")
	ex.UnitPriceCents = moneyNear(body, "item price", "price")
	ex.Quantity = findQuantity(body)
	ex.ImageURL = findProductImage(m.HTML)
	if !m.Date.IsZero() {
		d := m.Date
		ex.OrderDate = &d
	}
	return ex
}

func (w *Walmart) ParseShipping(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reWalmartOrderNo, m)
	ex.ItemName = quotedItem(m.Subject)

	body := m.BodyText()
	tn, implied := findTracking(body)
	ex.TrackingNumber = tn
	ex.Carrier = detectCarrier(body, implied, "")
	if !m.Date.IsZero() {
		d := m.Date
		ex.ShippedAt = &d
	}
	return ex
}

func (w *Walmart) ParseDelivered(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reWalmartOrderNo, m)

	body := m.BodyText()
	tn, implied := findTracking(body)
	ex.TrackingNumber = tn
	if tn != nil {
		ex.Carrier = detectCarrier(body, implied, "")
	}
	if !m.Date.IsZero() {
		d := m.Date
		ex.DeliveredAt = &d
	}
	return ex
}
