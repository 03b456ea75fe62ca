// Package googlenews implements the web-news search channel on top of the
// Google News RSS endpoint.
package googlenews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed/rss"

	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/prefilter"
	"github.com/etindell/bireme-research/internal/source"
)

const (
	defaultBaseURL    = "https://news.google.com"
	defaultDaysBack   = 3
	defaultMaxResults = 15
)

// Source queries Google News RSS twice per company (common name, then
// ticker) and merges the results. Individual query failures degrade to a
// partial result rather than failing the adapter.
type Source struct {
	client  *http.Client
	parser  *rss.Parser
	baseURL string
	logger  *slog.Logger
}

var _ source.Source = (*Source)(nil)

// New wires an HTTP client; a nil client gets a 15s timeout default.
func New(client *http.Client, logger *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Source{
		client:  client,
		parser:  &rss.Parser{},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Name identifies the channel.
func (s *Source) Name() string {
	return string(domain.ChannelGoogleNews)
}

// Search runs both queries and dedupes by link across them.
func (s *Source) Search(ctx context.Context, req source.Request) ([]domain.RawItem, error) {
	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	// Exact-match on the full legal name ("Moderna, Inc.") misses most
	// articles, so query the suffix-stripped common name instead.
	queries := []string{fmt.Sprintf("%q", prefilter.ShortName(req.Company.Name))}
	if ticker, ok := req.Company.PrimaryTicker(); ok {
		queries = append(queries, ticker.Symbol+" stock")
	}

	seen := map[string]struct{}{}
	results := make([]domain.RawItem, 0, maxResults)

	for _, q := range queries {
		if len(results) >= maxResults {
			break
		}

		feed, err := s.fetchFeed(ctx, q, daysBack)
		if err != nil {
			s.warn("google news query failed", "query", q, "error", err)
			continue
		}

		for _, item := range feed.Items {
			if len(results) >= maxResults {
				break
			}

			link := strings.TrimSpace(item.Link)
			if link == "" {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}

			results = append(results, toRawItem(item))
		}
	}

	if s.logger != nil {
		s.logger.Info("google news done", "company", req.Company.Name, "results", len(results))
	}
	return results, nil
}

func (s *Source) fetchFeed(ctx context.Context, query string, daysBack int) (*rss.Feed, error) {
	feedURL := fmt.Sprintf(
		"%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		s.baseURL,
		url.QueryEscape(fmt.Sprintf("%s when:%dd", query, daysBack)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; BiremeResearch/1.0)")
	httpReq.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.1")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google news returned %s", resp.Status)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func toRawItem(item *rss.Item) domain.RawItem {
	title := strings.TrimSpace(item.Title)

	// Google News titles usually end with " - Source Name".
	sourceName := ""
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		sourceName = strings.TrimSpace(title[idx+3:])
		title = strings.TrimSpace(title[:idx])
	}

	raw := domain.RawItem{
		URL:          strings.TrimSpace(item.Link),
		Title:        title,
		Content:      stripMarkup(item.Description),
		Channel:      domain.ChannelGoogleNews,
		PublishedAt:  item.PubDateParsed,
		PublishedRaw: item.PubDate,
		SourceName:   sourceName,
	}

	// The <source url="..."> element carries the true publisher, letting the
	// orchestrator recover the publisher domain behind the aggregator link.
	if item.Source != nil {
		raw.PublisherURL = strings.TrimSpace(item.Source.URL)
		if raw.SourceName == "" {
			raw.SourceName = strings.TrimSpace(item.Source.Title)
		}
	}

	return raw
}

// stripMarkup flattens the HTML Google News puts into descriptions down to a
// plain-text snippet.
func stripMarkup(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (s *Source) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
