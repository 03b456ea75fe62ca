// Package edgar implements the regulatory-filing channel against the SEC
// EDGAR full-text search API, with the submissions endpoint as a fallback.
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/source"
)

const (
	defaultSearchURL      = "https://efts.sec.gov/LATEST/search-index"
	defaultTickersURL     = "https://www.sec.gov/files/company_tickers.json"
	defaultSubmissionsURL = "https://data.sec.gov/submissions"

	defaultDaysBack = 7

	// How many of the most recent submissions the fallback inspects.
	fallbackScanDepth = 20
)

// Form types requested from full-text search.
const searchForms = "8-K,10-K,10-Q,6-K,SC 13D,SC 13G"

// Material form types accepted from the submissions fallback.
var materialForms = map[string]struct{}{
	"8-K": {}, "10-K": {}, "10-Q": {}, "6-K": {},
	"SC 13D": {}, "SC 13G": {}, "4": {}, "13F-HR": {},
}

// Exchanges EDGAR covers; companies listed elsewhere produce no filings.
var usExchanges = map[string]struct{}{
	"NYSE": {}, "NASDAQ": {}, "AMEX": {}, "OTC": {}, "US": {}, "": {},
}

// Filing dates are Eastern time.
var eastern = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// Source fetches recent material filings for US-listed tickers.
type Source struct {
	client         *http.Client
	userAgent      string
	searchURL      string
	tickersURL     string
	submissionsURL string
	logger         *slog.Logger
}

var _ source.Source = (*Source)(nil)

// New wires an HTTP client; SEC requires a contact identity in User-Agent.
func New(userAgent string, client *http.Client, logger *slog.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{
		client:         client,
		userAgent:      userAgent,
		searchURL:      defaultSearchURL,
		tickersURL:     defaultTickersURL,
		submissionsURL: defaultSubmissionsURL,
		logger:         logger,
	}
}

// Name identifies the channel.
func (s *Source) Name() string {
	return string(domain.ChannelSECEdgar)
}

// Search returns recent material filings; empty for companies without a
// recognized domestic listing. On a primary-endpoint failure it retries via
// the submissions endpoint.
func (s *Source) Search(ctx context.Context, req source.Request) ([]domain.RawItem, error) {
	ticker, ok := req.Company.PrimaryTicker()
	if !ok {
		return nil, nil
	}
	if _, domestic := usExchanges[strings.ToUpper(ticker.Exchange)]; !domestic {
		return nil, nil
	}

	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	symbol := strings.ReplaceAll(ticker.Symbol, ".", "-")

	results, err := s.fullTextSearch(ctx, req.Company, symbol, daysBack)
	if err != nil {
		s.warn("edgar full-text search failed, trying submissions", "company", req.Company.Name, "error", err)
		return s.recentSubmissions(ctx, req.Company, symbol, daysBack)
	}

	if s.logger != nil {
		s.logger.Info("edgar done", "company", req.Company.Name, "filings", len(results))
	}
	return results, nil
}

func (s *Source) fullTextSearch(ctx context.Context, company domain.Company, symbol string, daysBack int) ([]domain.RawItem, error) {
	now := time.Now()
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q OR %q", company.Name, symbol))
	params.Set("dateRange", "custom")
	params.Set("startdt", now.AddDate(0, 0, -daysBack).Format("2006-01-02"))
	params.Set("enddt", now.Format("2006-01-02"))
	params.Set("forms", searchForms)

	var decoded struct {
		Hits struct {
			Hits []struct {
				Source struct {
					FileDate        string   `json:"file_date"`
					FormType        string   `json:"form_type"`
					FileName        string   `json:"file_name"`
					FileDescription string   `json:"file_description"`
					EntityID        string   `json:"entity_id"`
					FileNum         string   `json:"file_num"`
					DisplayNames    []string `json:"display_names"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := s.getJSON(ctx, s.searchURL+"?"+params.Encode(), &decoded); err != nil {
		return nil, err
	}

	results := make([]domain.RawItem, 0, len(decoded.Hits.Hits))
	for _, hit := range decoded.Hits.Hits {
		src := hit.Source

		filingURL := fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s", src.EntityID, src.FileNum)
		if src.FileName != "" {
			filingURL = "https://www.sec.gov/Archives/" + src.FileName
		}

		displayName := company.Name
		if len(src.DisplayNames) > 0 {
			displayName = src.DisplayNames[0]
		}

		results = append(results, domain.RawItem{
			URL:          filingURL,
			Title:        fmt.Sprintf("%s: %s", src.FormType, displayName),
			Content:      strings.TrimSpace(fmt.Sprintf("SEC %s filing. %s", src.FormType, src.FileDescription)),
			Channel:      domain.ChannelSECEdgar,
			PublishedAt:  parseFilingDate(src.FileDate),
			PublishedRaw: src.FileDate,
			SourceName:   "SEC EDGAR",
		})
	}
	return results, nil
}

// recentSubmissions resolves the ticker to a CIK and reads the company's
// recent submissions feed instead of full-text search.
func (s *Source) recentSubmissions(ctx context.Context, company domain.Company, symbol string, daysBack int) ([]domain.RawItem, error) {
	cik, err := s.resolveCIK(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if cik == "" {
		return nil, nil
	}

	var decoded struct {
		Filings struct {
			Recent struct {
				Form                  []string `json:"form"`
				FilingDate            []string `json:"filingDate"`
				AccessionNumber       []string `json:"accessionNumber"`
				PrimaryDocDescription []string `json:"primaryDocDescription"`
			} `json:"recent"`
		} `json:"filings"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("%s/CIK%s.json", s.submissionsURL, cik), &decoded); err != nil {
		return nil, err
	}

	recent := decoded.Filings.Recent
	cutoff := time.Now().AddDate(0, 0, -daysBack).Format("2006-01-02")

	var results []domain.RawItem
	for i := 0; i < len(recent.Form) && i < fallbackScanDepth; i++ {
		filingDate := ""
		if i < len(recent.FilingDate) {
			filingDate = recent.FilingDate[i]
		}
		if filingDate < cutoff {
			continue
		}

		formType := recent.Form[i]
		if _, material := materialForms[formType]; !material {
			continue
		}

		desc := ""
		if i < len(recent.PrimaryDocDescription) {
			desc = recent.PrimaryDocDescription[i]
		}

		filingURL := fmt.Sprintf(
			"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=%s&dateb=&owner=include&count=5",
			cik, url.QueryEscape(formType),
		)

		results = append(results, domain.RawItem{
			URL:          filingURL,
			Title:        fmt.Sprintf("%s: %s", formType, company.Name),
			Content:      strings.TrimSpace(fmt.Sprintf("SEC %s filing. %s", formType, desc)),
			Channel:      domain.ChannelSECEdgar,
			PublishedAt:  parseFilingDate(filingDate),
			PublishedRaw: filingDate,
			SourceName:   "SEC EDGAR",
		})
	}

	if s.logger != nil {
		s.logger.Info("edgar submissions done", "company", company.Name, "filings", len(results))
	}
	return results, nil
}

func (s *Source) resolveCIK(ctx context.Context, symbol string) (string, error) {
	var entries map[string]struct {
		CIK    int64  `json:"cik_str"`
		Ticker string `json:"ticker"`
	}
	if err := s.getJSON(ctx, s.tickersURL, &entries); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if strings.EqualFold(entry.Ticker, symbol) {
			return fmt.Sprintf("%010d", entry.CIK), nil
		}
	}
	return "", nil
}

func (s *Source) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("edgar returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseFilingDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, eastern)
	if err != nil {
		return nil
	}
	return &t
}

func (s *Source) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
