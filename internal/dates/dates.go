// Package dates produces one canonical publish timestamp per stored item.
package dates

import (
	"net/mail"
	"strings"
	"time"

	"github.com/etindell/bireme-research/internal/domain"
)

// Layouts tried against the date string the classifier asserts.
var classifierLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
}

// Layouts tried against an adapter's unparsed date text, before falling back
// to RFC-822.
var rawLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Resolve picks the publish timestamp for an item, in priority order:
// the adapter-parsed timestamp, the classifier's date string, the adapter's
// raw date text, and finally the current time. It always returns a value.
func Resolve(raw domain.RawItem, classified domain.ClassifiedItem) time.Time {
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		return *raw.PublishedAt
	}

	if t, ok := parseClassifierDate(classified.PublishedDate); ok {
		return t
	}

	if t, ok := parseRawDate(raw.PublishedRaw); ok {
		return t
	}

	return time.Now().UTC()
}

func parseClassifierDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return time.Time{}, false
	}
	for _, layout := range classifierLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseRawDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range rawLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	// RFC-822, the form RSS pubDate elements use.
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
