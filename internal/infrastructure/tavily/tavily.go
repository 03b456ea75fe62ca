// Package tavily implements the AI-assisted web-search channel. It
// supplements the RSS source with niche coverage Google may not surface
// quickly.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/prefilter"
	"github.com/etindell/bireme-research/internal/source"
)

const (
	defaultEndpoint   = "https://api.tavily.com/search"
	defaultDaysBack   = 3
	defaultMaxResults = 8
)

// Domains excluded from every query, on top of the org blacklist.
var excludedDomains = []string{
	"finance.yahoo.com",
	"stockanalysis.com",
	"tradingview.com",
	"morningstar.com",
	"tipranks.com",
	"google.com",
}

// Source queries the Tavily search API. Without a configured credential it
// soft-fails to an empty result.
type Source struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

var _ source.Source = (*Source)(nil)

// New builds the source; an empty apiKey disables it.
func New(apiKey string, logger *slog.Logger) *Source {
	return &Source{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Name identifies the channel.
func (s *Source) Name() string {
	return string(domain.ChannelTavily)
}

// Search posts one OR query (common name / ticker), day-bounded, with
// domain exclusions.
func (s *Source) Search(ctx context.Context, req source.Request) ([]domain.RawItem, error) {
	if s.apiKey == "" {
		if s.logger != nil {
			s.logger.Debug("tavily api key not set, skipping source")
		}
		return nil, nil
	}

	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	shortName := prefilter.ShortName(req.Company.Name)
	query := fmt.Sprintf("%q news", shortName)
	if ticker, ok := req.Company.PrimaryTicker(); ok {
		query = fmt.Sprintf("%q OR %q news", shortName, ticker.Symbol)
	}

	exclude := make([]string, 0, len(excludedDomains)+len(req.Blacklist))
	exclude = append(exclude, excludedDomains...)
	exclude = append(exclude, req.Blacklist...)

	body, err := json.Marshal(map[string]any{
		"query":               query,
		"topic":               "news",
		"search_depth":        "basic",
		"include_answer":      false,
		"include_raw_content": false,
		"max_results":         maxResults,
		"days":                daysBack,
		"exclude_domains":     exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned %s", resp.Status)
	}

	var decoded struct {
		Results []struct {
			URL           string `json:"url"`
			Title         string `json:"title"`
			Content       string `json:"content"`
			PublishedDate string `json:"published_date"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]domain.RawItem, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		raw := domain.RawItem{
			URL:          item.URL,
			Title:        item.Title,
			Content:      item.Content,
			Channel:      domain.ChannelTavily,
			PublishedRaw: item.PublishedDate,
		}
		if item.PublishedDate != "" {
			if t, err := time.Parse(time.RFC3339, item.PublishedDate); err == nil {
				raw.PublishedAt = &t
			}
		}
		results = append(results, raw)
	}

	if s.logger != nil {
		s.logger.Info("tavily done", "company", req.Company.Name, "results", len(results))
	}
	return results, nil
}
