package mailbox

import (
	"fmt"
	"net/textproto"
	"time"

	"github.com/emersion/go-imap"
)

// candidateKeywords is the broad recall net: any subject mentioning one
// of these is worth a look. Precision comes later from classification.
var candidateKeywords = []string{
	"order",
	"shipped",
	"shipping",
	"delivery",
	"delivered",
	"tracking",
	"cancelled",
	"canceled",
	"cancellation",
}

func subjectCriteria(keyword string) *imap.SearchCriteria {
	c := imap.NewSearchCriteria()
	c.Header = textproto.MIMEHeader{"Subject": {keyword}}
	return c
}

// anyKeyword folds the keyword list into a nested OR tree, since IMAP
// SEARCH only expresses OR pairwise.
func anyKeyword(keywords []string) *imap.SearchCriteria {
	cur := subjectCriteria(keywords[0])
	for _, kw := range keywords[1:] {
		next := imap.NewSearchCriteria()
		next.Or = [][2]*imap.SearchCriteria{{cur, subjectCriteria(kw)}}
		cur = next
	}
	return cur
}

// ListCandidates returns up to max candidate message UIDs within the
// lookback window, newest first, de-duplicated.
func (m *Client) ListCandidates(lookbackDays, max int) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -lookbackDays)
	criteria.Or = [][2]*imap.SearchCriteria{
		{subjectCriteria(candidateKeywords[0]), anyKeyword(candidateKeywords[1:])},
	}

	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	// UID search yields ascending order; walk backwards for newest first.
	seen := make(map[uint32]struct{}, len(uids))
	out := make([]uint32, 0, len(uids))
	for i := len(uids) - 1; i >= 0; i-- {
		uid := uids[i]
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
		if max > 0 && len(out) >= max {
			break
		}
	}

	return out, nil
}
