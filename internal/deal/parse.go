// Package deal extracts structured closed-won events from CRM notification
// text.
package deal

import (
	"regexp"
	"strings"
)

// The CRM integration announces wins as "<closer> just closed <customer> for
// <amount>". The first two spans are non-greedy so the leftmost "just
// closed ... for" wins; the amount is the remainder of the line. Adversarial
// input containing the phrase twice parses on the first occurrence; that is an
// accepted simplification.
var dealPattern = regexp.MustCompile(`(.+?) just closed (.+?) for (.+)`)

// amountJunk strips currency symbols and punctuation so "$1,000!" and "1000"
// dedup to the same key.
var amountJunk = regexp.MustCompile(`[$,!]`)

// Event is the structured form of a single closed-won announcement.
type Event struct {
	Closer   string
	Customer string
	Amount   string
}

// Key returns the idempotency key for the event: colon-joined fields, no
// interior spaces. Identical events always produce identical keys; this is
// the sole dedup discriminant.
func (e Event) Key() string {
	return e.Closer + ":" + e.Customer + ":" + e.Amount
}

// Parse extracts an Event from raw notification text. The second return is
// false when the text does not contain an announcement; callers treat that as
// "nothing actionable", not an error.
func Parse(text string) (Event, bool) {
	m := dealPattern.FindStringSubmatch(text)
	if m == nil {
		return Event{}, false
	}
	return Event{
		Closer:   strings.TrimSpace(m[1]),
		Customer: strings.TrimSpace(m[2]),
		Amount:   amountJunk.ReplaceAllString(strings.TrimSpace(m[3]), ""),
	}, true
}

// IsAnnouncement is a cheap structural check used by the message filter
// before running the full parse.
func IsAnnouncement(text string) bool {
	return strings.Contains(text, "just closed")
}
