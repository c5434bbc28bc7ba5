package retailers

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reMoney          = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	reQuantity       = regexp.MustCompile(`(?i)\b(?:qty|quantity)\s*[:.]?\s*([0-9]{1,3})\b`)
	reGenericOrderNo = regexp.MustCompile(`(?i)order\s*(?:#|number|no\.?|confirmation)?\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{5,24}[A-Z0-9])`)
	reQuotedItem     = regexp.MustCompile(`["\x{201c}]([^"\x{201d}]{3,120})["\x{201d}]`)
)

// ParseMoney converts an amount like "$1,299.99" to integer cents.
// Unparsable input yields nil, never zero.
func ParseMoney(s string) *int64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "USD")
	s = strings.TrimPrefix(s, "US")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	cents := int64(math.Round(v * 100))
	return &cents
}

// moneyNear finds the first dollar amount within a short window after
// any of the labels, tried in order.
func moneyNear(text string, labels ...string) *int64 {
	lower := strings.ToLower(text)
	for _, label := range labels {
		idx := strings.Index(lower, strings.ToLower(label))
		if idx < 0 {
			continue
		}
		end := idx + 160
		if end > len(text) {
			end = len(text)
		}
		if m := reMoney.FindStringSubmatch(text[idx:end]); m != nil {
			return ParseMoney(m[1])
		}
	}
	return nil
}

// findOrderNumber applies the cascade: the retailer's strict pattern
// over subject then body, then the generic pattern over subject then
// body. First match wins.
func findOrderNumber(specific *regexp.Regexp, m *Message) *string {
	sources := []string{m.Subject, m.BodyText()}
	if specific != nil {
		for _, s := range sources {
			if v := specific.FindString(s); v != "" {
				return &v
			}
		}
	}
	for _, s := range sources {
		if mm := reGenericOrderNo.FindStringSubmatch(s); mm != nil {
			return &mm[1]
		}
	}
	return nil
}

func findQuantity(text string) *int {
	mm := reQuantity.FindStringSubmatch(text)
	if mm == nil {
		return nil
	}
	n, err := strconv.Atoi(mm[1])
	if err != nil || n == 0 {
		return nil
	}
	return &n
}

// quotedItem picks the first quoted phrase out of a subject line, the
// usual place retailers put the product name.
func quotedItem(subject string) *string {
	mm := reQuotedItem.FindStringSubmatch(subject)
	if mm == nil {
		return nil
	}
	v := strings.TrimSpace(mm[1])
	if v == "" {
		return nil
	}
	return &v
}

type carrierPattern struct {
	carrier string
	re      *regexp.Regexp
}

// Well-known carrier numbering formats in fixed priority order. These
// are structural matches only; checksums are not validated.
var carrierPatterns = []carrierPattern{
	{"UPS", regexp.MustCompile(`\b1Z[0-9A-Z]{16}\b`)},
	{"USPS", regexp.MustCompile(`\b9[2345][0-9]{20,24}\b`)},
	{"FedEx", regexp.MustCompile(`\b(?:[0-9]{20}|[0-9]{15}|[0-9]{12})\b`)},
	{"DHL", regexp.MustCompile(`\b[0-9]{10}\b`)},
}

// findTracking returns the first structural tracking-number match and
// the carrier its format implies.
func findTracking(text string) (*string, string) {
	for _, cp := range carrierPatterns {
		if v := cp.re.FindString(text); v != "" {
			return &v, cp.carrier
		}
	}
	return nil, ""
}

var carrierKeywords = []string{"UPS", "USPS", "FedEx", "DHL", "OnTrac", "LaserShip"}

// detectCarrier resolves a carrier name. UPS/USPS number formats are
// unambiguous and win outright; the digit-run formats (FedEx, DHL) only
// count when a body keyword does not contradict them.
func detectCarrier(body, implied, fallback string) *string {
	if implied == "UPS" || implied == "USPS" {
		return &implied
	}
	lower := strings.ToLower(body)
	for _, kw := range carrierKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			k := kw
			return &k
		}
	}
	if implied != "" {
		return &implied
	}
	if fallback != "" {
		return &fallback
	}
	return nil
}

// Filenames and alt text that mark an image as chrome rather than product.
var reDecorativeImage = regexp.MustCompile(`(?i)logo|icon|badge|sprite|pixel|spacer|beacon|banner|footer|header|social|facebook|twitter|instagram|youtube|pinterest|button|arrow|divider|star|rating|barcode|unsubscribe`)

// findProductImage returns the first plausible non-decorative image
// reference in the HTML body.
func findProductImage(htmlBody string) *string {
	doc := parseHTML(htmlBody)
	if doc == nil {
		return nil
	}
	for _, img := range doc.Images() {
		if !strings.HasPrefix(img.Src, "http") {
			continue
		}
		if reDecorativeImage.MatchString(img.Src) ||
			reDecorativeImage.MatchString(img.Alt) ||
			reDecorativeImage.MatchString(img.Class) {
			continue
		}
		if imageTooSmall(img.Width) || imageTooSmall(img.Height) {
			continue
		}
		src := img.Src
		return &src
	}
	return nil
}

// Tracking pixels and glyphs declare tiny dimensions; anything under
// 40px cannot be a product shot.
func imageTooSmall(dim string) bool {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(dim), "px"))
	return err == nil && n > 0 && n < 40
}
