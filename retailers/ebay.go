package retailers

import "regexp"

// eBay transactional notifications.
type EBay struct{}

var (
	// 12-34567-89012
	reEBayOrderNo = regexp.MustCompile(`\b[0-9]{2}-[0-9]{5}-[0-9]{5}\b`)

	reEBayCanceled  = regexp.MustCompile(`(?i)\bcancel(?:l?ed|lation)\b`)
	reEBayDelivered = regexp.MustCompile(`(?i)\bdelivered\b`)
	reEBayShipped   = regexp.MustCompile(`(?i)\bshipped\b|on its way|tracking number`)
	reEBayOrder     = regexp.MustCompile(`(?i)order confirmed|you bought|confirmation of your order|thanks for your purchase`)
)

func (e *EBay) Name() string { return "eBay" }

func (e *EBay) MatchesSender(addr string) bool {
	return domainMatches(addr, "ebay.com")
}

func (e *EBay) Classify(subject string) MessageType {
	switch {
	case reEBayCanceled.MatchString(subject):
		return TypeCanceled
	case reEBayDelivered.MatchString(subject):
		return TypeDelivered
	case reEBayShipped.MatchString(subject):
		return TypeShipping
	case reEBayOrder.MatchString(subject):
		return TypeOrder
	}
	return TypeUnknown
}

func (e *EBay) ParseOrder(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reEBayOrderNo, m)
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

func (e *EBay) ParseShipping(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reEBayOrderNo, m)
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

func (e *EBay) ParseDelivered(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reEBayOrderNo, m)

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
