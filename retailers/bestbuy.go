package retailers

import "regexp"

// Best Buy transactional notifications. Best Buy sends from the
// emailinfo.bestbuy.com subdomain, which domainMatches covers.
type BestBuy struct{}

var (
	// BBY01-123456789012
	reBestBuyOrderNo = regexp.MustCompile(`\bBBY01-[0-9]{12}\b`)

	reBestBuyCanceled  = regexp.MustCompile(`(?i)\bcancel(?:l?ed|lation)\b`)
	reBestBuyDelivered = regexp.MustCompile(`(?i)\bdelivered\b`)
	reBestBuyShipped   = regexp.MustCompile(`(?i)\bshipped\b|on its way`)
	reBestBuyOrder     = regexp.MustCompile(`(?i)thank you for your order|order confirmation|your order is in`)
)

func (b *BestBuy) Name() string { return "Best Buy" }

func (b *BestBuy) MatchesSender(addr string) bool {
	return domainMatches(addr, "bestbuy.com") || domainMatches(addr, "bestbuyinfo.com")
}

func (b *BestBuy) Classify(subject string) MessageType {
	switch {
	case reBestBuyCanceled.MatchString(subject):
		return TypeCanceled
	case reBestBuyDelivered.MatchString(subject):
		return TypeDelivered
	case reBestBuyShipped.MatchString(subject):
		return TypeShipping
	case reBestBuyOrder.MatchString(subject):
		return TypeOrder
	}
	return TypeUnknown
}

func (b *BestBuy) ParseOrder(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reBestBuyOrderNo, m)
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

func (b *BestBuy) ParseShipping(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reBestBuyOrderNo, m)
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

func (b *BestBuy) ParseDelivered(m *Message) Extracted {
	var ex Extracted
	ex.OrderNumber = findOrderNumber(reBestBuyOrderNo, m)

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
