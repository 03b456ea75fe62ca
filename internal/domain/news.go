package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Channel identifies the source adapter that produced a raw item.
type Channel string

const (
	ChannelGoogleNews Channel = "google_news"
	ChannelTavily     Channel = "tavily"
	ChannelSECEdgar   Channel = "sec_edgar"
)

// RawItem is the per-run record every source adapter normalizes into.
// It only lives between fetch and classification.
type RawItem struct {
	URL     string
	Title   string
	Content string
	Channel Channel

	// PublishedAt is set when the adapter could parse a real publish date.
	// PublishedRaw keeps the unparsed date text for a later parsing attempt.
	PublishedAt  *time.Time
	PublishedRaw string

	SourceName string

	// PublisherURL carries the true publisher link when URL itself is an
	// aggregator wrapper (e.g. a news.google.com redirect).
	PublisherURL string
}

// Importance is the classifier's materiality verdict.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// ParseImportance coerces free-form classifier output to a valid value,
// defaulting to medium.
func ParseImportance(s string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(s))) {
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceLow:
		return ImportanceLow
	default:
		return ImportanceMedium
	}
}

// EventType categorizes what kind of corporate event an item covers.
type EventType string

const (
	EventEarnings   EventType = "earnings"
	EventManagement EventType = "management"
	EventMA         EventType = "M&A"
	EventRegulatory EventType = "regulatory"
	EventProduct    EventType = "product"
	EventLegal      EventType = "legal"
	EventAnalyst    EventType = "analyst"
	EventFiling     EventType = "filing"
	EventOther      EventType = "other"
)

// ParseEventType coerces classifier output to a valid category, defaulting
// to other.
func ParseEventType(s string) EventType {
	switch v := EventType(strings.TrimSpace(s)); v {
	case EventEarnings, EventManagement, EventMA, EventRegulatory,
		EventProduct, EventLegal, EventAnalyst, EventFiling, EventOther:
		return v
	}
	return EventOther
}

// SourceType distinguishes regulatory filings from ordinary web coverage.
type SourceType string

const (
	SourceWeb      SourceType = "web"
	SourceSECEdgar SourceType = "sec_edgar"
)

// ClassifiedItem is one entry of the classifier's bounded selection.
type ClassifiedItem struct {
	URL        string
	Headline   string
	Summary    string
	Importance Importance
	EventType  EventType
	SourceName string

	// PublishedDate is the date string asserted by the model, if any.
	PublishedDate string
}

// CompanyNews is the persisted news row. Rows are insert-if-absent keyed by
// (CompanyID, URLHash) and never revised after creation.
type CompanyNews struct {
	OrganizationID  int64
	CompanyID       int64
	Headline        string
	Summary         string
	SourceURL       string
	SourceName      string
	SourceType      SourceType
	PublisherDomain string
	Importance      Importance
	EventType       EventType
	PublishedAt     time.Time
	FetchedAt       time.Time

	// Presentation-owned flags; written false on insert, never mutated here.
	IsRead    bool
	IsStarred bool

	URLHash string
}

// Ticker is one listing of a company on an exchange.
type Ticker struct {
	Symbol    string
	Exchange  string
	IsPrimary bool
}

// CompanyStatus marks which book a company sits in.
type CompanyStatus string

const (
	StatusLongBook  CompanyStatus = "long_book"
	StatusShortBook CompanyStatus = "short_book"
)

// Company is the directory entry the pipeline runs against. The directory
// itself is owned elsewhere; this is a read-only projection.
type Company struct {
	ID             int64
	OrganizationID int64
	Slug           string
	Name           string
	Status         CompanyStatus
	Tickers        []Ticker
}

// PrimaryTicker returns the primary listing, or the first one when none is
// flagged primary.
func (c Company) PrimaryTicker() (Ticker, bool) {
	for _, t := range c.Tickers {
		if t.IsPrimary {
			return t, true
		}
	}
	if len(c.Tickers) > 0 {
		return c.Tickers[0], true
	}
	return Ticker{}, false
}

// URLFingerprint hashes a normalized URL into the persistence dedup key.
func URLFingerprint(rawURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawURL)))
	return hex.EncodeToString(sum[:])
}
