// Package classify wraps the text-completion capability that turns
// prefiltered raw items into a bounded, ranked selection.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/ports"
)

const (
	// MaxSelected is the hard cap on items the classifier may return per
	// company per run.
	MaxSelected = 3

	maxRecentHeadlines = 20
	maxPromptTickers   = 5
	maxSnippetChars    = 800
)

// Classifier asks the completion capability to pick the few items investors
// actually need to see. Any failure degrades to zero items for the run.
type Classifier struct {
	completer ports.Completer
	logger    *slog.Logger
}

var _ ports.Classifier = (*Classifier)(nil)

// New wires a completion client; a nil completer yields a classifier that
// always selects nothing.
func New(completer ports.Completer, logger *slog.Logger) *Classifier {
	return &Classifier{completer: completer, logger: logger}
}

// Classify returns at most MaxSelected classified items. It never returns an
// error: network, auth, and parse failures are logged and collapse to an
// empty selection.
func (c *Classifier) Classify(ctx context.Context, company domain.Company, items []domain.RawItem, blacklist, recentHeadlines []string) []domain.ClassifiedItem {
	if c.completer == nil || len(items) == 0 {
		return nil
	}

	prompt := buildPrompt(company, items, blacklist, recentHeadlines)

	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		c.warn("classification call failed", "company", company.Name, "error", err)
		return nil
	}

	selected, err := parseResponse(text)
	if err != nil {
		c.warn("unparseable classification response", "company", company.Name, "error", err)
		return nil
	}

	if len(selected) > MaxSelected {
		selected = selected[:MaxSelected]
	}
	if c.logger != nil {
		c.logger.Info("classification done", "company", company.Name, "selected", len(selected))
	}
	return selected
}

func buildPrompt(company domain.Company, items []domain.RawItem, blacklist, recentHeadlines []string) string {
	tickers := make([]string, 0, maxPromptTickers)
	for _, t := range company.Tickers {
		if len(tickers) == maxPromptTickers {
			break
		}
		tickers = append(tickers, t.Symbol)
	}
	tickerList := strings.Join(tickers, ", ")
	if tickerList == "" {
		tickerList = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a strict news filter for %s (tickers: %s).\n\n", company.Name, tickerList)
	fmt.Fprintf(&b, "Your job is to identify ONLY the 2-%d MOST IMPORTANT news items that investors absolutely need to know about. Be very selective.\n\n", MaxSelected)
	b.WriteString("ONLY include news that meets these criteria:\n")
	b.WriteString("- Material events: earnings releases, M&A announcements, major contracts, executive changes, regulatory actions, significant legal developments\n")
	b.WriteString("- Must specifically mention this company (not just the industry)\n")
	b.WriteString("- Must be actual news articles (not stock price pages, company profiles, or generic financial data)\n")
	if len(blacklist) > 0 {
		fmt.Fprintf(&b, "- EXCLUDE all news from these blacklisted domains: %s\n", strings.Join(blacklist, ", "))
	}
	b.WriteString("\nDEDUPLICATE: If multiple articles cover the same story or event, keep ONLY the single most detailed and informative article. Do not return two items about the same underlying news.\n")

	if len(recentHeadlines) > 0 {
		if len(recentHeadlines) > maxRecentHeadlines {
			recentHeadlines = recentHeadlines[:maxRecentHeadlines]
		}
		b.WriteString("\nThese stories have ALREADY been stored. Do NOT return any item that covers the same story as these:\n")
		for _, h := range recentHeadlines {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
	}

	b.WriteString("\nREJECT everything else including:\n")
	b.WriteString("- Stock quote/price pages\n")
	b.WriteString("- Company profile pages\n")
	b.WriteString("- Minor analyst mentions\n")
	b.WriteString("- Industry news that doesn't specifically impact this company\n")
	b.WriteString("- Routine press releases with no material information\n")
	b.WriteString("- Duplicate coverage of the same story (keep only the best article)\n\n")

	fmt.Fprintf(&b, "Return a JSON array with AT MOST %d items (fewer is fine, zero if nothing important). Each item must be about a DIFFERENT story:\n", MaxSelected)
	b.WriteString(`[
  {
    "url": "the original URL",
    "relevant": true,
    "headline": "cleaned up headline",
    "summary": "1-2 sentence summary of why this matters to investors",
    "importance": "high|medium|low",
    "event_type": "earnings|management|M&A|regulatory|product|legal|analyst|filing|other",
    "source_name": "publication name",
    "published_date": "YYYY-MM-DD or null if unknown"
  }
]

If no items are truly important, return an empty array: []

NEWS ITEMS TO ANALYZE:
`)

	for i, item := range items {
		content := item.Content
		if content == "" {
			content = "N/A"
		}
		if len(content) > maxSnippetChars {
			content = content[:maxSnippetChars] + "..."
		}

		published := "Unknown"
		if item.PublishedAt != nil {
			published = item.PublishedAt.Format("2006-01-02")
		} else if item.PublishedRaw != "" {
			published = item.PublishedRaw
		}

		sourceName := item.SourceName
		if sourceName == "" {
			sourceName = string(item.Channel)
		}

		fmt.Fprintf(&b, "\n---\nItem %d:\nURL: %s\nTitle: %s\nContent: %s\nPublished: %s\nSource: %s\n---\n",
			i+1, item.URL, item.Title, content, published, sourceName)
	}

	return b.String()
}

// responseItem mirrors the JSON contract stated in the prompt.
type responseItem struct {
	URL           string `json:"url"`
	Relevant      bool   `json:"relevant"`
	Headline      string `json:"headline"`
	Summary       string `json:"summary"`
	Importance    string `json:"importance"`
	EventType     string `json:"event_type"`
	SourceName    string `json:"source_name"`
	PublishedDate string `json:"published_date"`
}

// parseResponse extracts the first top-level JSON array from the response,
// tolerating surrounding prose. Missing fields are defaulted rather than
// rejected.
func parseResponse(text string) ([]domain.ClassifiedItem, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var parsed []responseItem
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode classification array: %w", err)
	}

	items := make([]domain.ClassifiedItem, 0, len(parsed))
	for _, item := range parsed {
		if !item.Relevant {
			continue
		}

		sourceName := strings.TrimSpace(item.SourceName)
		if sourceName == "" {
			sourceName = "Unknown"
		}

		items = append(items, domain.ClassifiedItem{
			URL:           item.URL,
			Headline:      item.Headline,
			Summary:       item.Summary,
			Importance:    domain.ParseImportance(item.Importance),
			EventType:     domain.ParseEventType(item.EventType),
			SourceName:    sourceName,
			PublishedDate: item.PublishedDate,
		})
	}
	return items, nil
}

func (c *Classifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// RecentWindow is how far back stored headlines are surfaced to the model
// for cross-run dedup.
const RecentWindow = 7 * 24 * time.Hour

// RecentHeadlineLimit bounds how many stored headlines the prompt carries.
const RecentHeadlineLimit = maxRecentHeadlines
