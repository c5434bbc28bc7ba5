package retailers

import "regexp"

// Target.com transactional notifications (sent from oe.target.com and
// friends, all under the target.com domain).
type Target struct{}

var (
	// Target order numbers are long digit runs starting with 10.
	reTargetOrderNo = regexp.MustCompile(`\b10[0-9]{11,13}\b`)

	reTargetCanceled  = regexp.MustCompile(`(?i)\bcancel(?:l?ed|lation)\b`)
	reTargetDelivered = regexp.MustCompile(`(?i)\bdelivered\b|has arrived`)
	reTargetShipped   = regexp.MustCompile(`(?i)\bshipped\b|on its way|on the way`)
	reTargetOrder     = regexp.MustCompile(`(?i)thanks for your order|order confirmation|we got your order`)
)

func (t *Target) Name() string { return "Target" }

func (t *Target) MatchesSender(addr string) bool {
	return domainMatches(addr, "target.com")
}

func (t *Target) Classify(subject string) MessageType {
	switch {
	case reTargetCanceled.MatchString(subject):
		return TypeCanceled
	case reTargetDelivered.MatchString(subject):
		return TypeDelivered
	case reTargetShipped.MatchString(subject):
		return TypeShipping
	case reTargetOrder.MatchString(subject):
		return TypeOrder
	}
	return TypeUnknown
}

func (t *Target) ParseOrder(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reTargetOrderNo, m)
	ex.ItemName = quotedItem(m.Subject)

	body := m.BodyText()
	ex.TotalCents = moneyNear(body, "order total", "total")
	ex.UnitPriceCents = moneyNear(body, "price")
	ex.Quantity = findQuantity(body)
	ex.ImageURL = findProductImage(m.HTML)
	if !m.Date.IsZero() {
		d := m.Date
		ex.OrderDate = &d
	}
	return ex
}

func (t *Target) ParseShipping(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reTargetOrderNo, m)
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

func (t *Target) ParseDelivered(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reTargetOrderNo, m)

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
