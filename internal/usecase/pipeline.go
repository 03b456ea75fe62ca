package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/etindell/bireme-research/internal/classify"
	"github.com/etindell/bireme-research/internal/dates"
	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/ports"
	"github.com/etindell/bireme-research/internal/prefilter"
	"github.com/etindell/bireme-research/internal/source"
)

const (
	// DefaultMaxParallel bounds cross-company fan-out. Kept low to respect
	// third-party rate limits.
	DefaultMaxParallel = 4

	// How many ticker symbols feed the prefilter relevance terms.
	maxRelevanceTickers = 10
)

// PipelineDeps wires the driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources    []source.Source
	Repository ports.NewsRepository
	Blacklist  ports.BlacklistStore
	Classifier ports.Classifier
	Logger     *slog.Logger

	// Lookbacks passed through to the sources; zero keeps each adapter's
	// default. Filings get a longer window than web coverage.
	DaysBack       int
	FilingDaysBack int
}

// Pipeline implements the per-company ingestion workflow and its bounded
// multi-company fan-out.
type Pipeline struct {
	sources        []source.Source
	repository     ports.NewsRepository
	blacklist      ports.BlacklistStore
	classifier     ports.Classifier
	logger         *slog.Logger
	daysBack       int
	filingDaysBack int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		sources:        deps.Sources,
		repository:     deps.Repository,
		blacklist:      deps.Blacklist,
		classifier:     deps.Classifier,
		logger:         deps.Logger,
		daysBack:       deps.DaysBack,
		filingDaysBack: deps.FilingDaysBack,
	}
}

// Run executes the full pipeline for one company and returns how many items
// were actually inserted. Source and classifier failures degrade to fewer
// results; only infrastructure failures (blacklist load, headline load)
// surface as errors.
func (p *Pipeline) Run(ctx context.Context, company domain.Company) (int, error) {
	blacklist, err := p.blacklist.ListDomains(ctx, company.OrganizationID)
	if err != nil {
		return 0, fmt.Errorf("load blacklist: %w", err)
	}

	raw := p.gather(ctx, company, blacklist)
	if len(raw) == 0 {
		p.info("no raw news found", "company", company.Name)
		return 0, nil
	}

	raw = dedupeByURL(raw)

	filtered := prefilter.Apply(raw, company.Name, relevanceTickers(company), blacklist, p.logger)
	if len(filtered) == 0 {
		p.info("no items survived prefilter", "company", company.Name)
		return 0, nil
	}

	rawByURL := make(map[string]domain.RawItem, len(filtered))
	for _, item := range filtered {
		rawByURL[item.URL] = item
	}

	since := time.Now().Add(-classify.RecentWindow)
	recentHeadlines, err := p.repository.RecentHeadlines(ctx, company.ID, since, classify.RecentHeadlineLimit)
	if err != nil {
		return 0, fmt.Errorf("load recent headlines: %w", err)
	}

	classified := p.classifier.Classify(ctx, company, filtered, blacklist, recentHeadlines)
	if len(classified) == 0 {
		p.info("no relevant news after classification", "company", company.Name)
		return 0, nil
	}

	stored := 0
	for _, item := range classified {
		if item.URL == "" {
			continue
		}

		rawItem := rawByURL[item.URL]

		created, err := p.repository.InsertIfAbsent(ctx, buildStoredItem(company, rawItem, item))
		if err != nil {
			p.errorLog("failed to store news item", "company", company.Name, "url", item.URL, "error", err)
			continue
		}
		if created {
			stored++
		}
	}

	p.info("pipeline done", "company", company.Name, "stored", stored)
	return stored, nil
}

// RunMany runs the pipeline for each company with bounded parallelism. A
// company's failure is recorded and never blocks or cancels its siblings.
func (p *Pipeline) RunMany(ctx context.Context, companies []domain.Company, maxParallel int) (int, []string) {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}

	var (
		mu    sync.Mutex
		total int
		errs  []string
	)

	var g errgroup.Group
	g.SetLimit(maxParallel)

	for _, company := range companies {
		company := company
		g.Go(func() error {
			count, err := p.Run(ctx, company)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.errorLog("news fetch failed", "company", company.Name, "error", err)
				errs = append(errs, fmt.Sprintf("%s: %v", company.Name, err))
				return nil
			}
			total += count
			return nil
		})
	}

	_ = g.Wait()
	return total, errs
}

// gather fans out to all sources concurrently, one worker per adapter, and
// collapses any adapter error into an empty contribution.
func (p *Pipeline) gather(ctx context.Context, company domain.Company, blacklist []string) []domain.RawItem {
	perSource := make([][]domain.RawItem, len(p.sources))
	var wg sync.WaitGroup
	for i, src := range p.sources {
		req := source.Request{Company: company, Blacklist: blacklist, DaysBack: p.daysBack}
		if src.Name() == string(domain.ChannelSECEdgar) {
			req.DaysBack = p.filingDaysBack
		}

		wg.Add(1)
		go func(i int, src source.Source, req source.Request) {
			defer wg.Done()
			items, err := src.Search(ctx, req)
			if err != nil {
				p.errorLog("source failed", "source", src.Name(), "company", company.Name, "error", err)
				return
			}
			perSource[i] = items
		}(i, src, req)
	}
	wg.Wait()

	var merged []domain.RawItem
	for _, items := range perSource {
		merged = append(merged, items...)
	}
	return merged
}

// dedupeByURL keeps the first occurrence of each URL across sources.
func dedupeByURL(items []domain.RawItem) []domain.RawItem {
	seen := make(map[string]struct{}, len(items))
	deduped := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}
		deduped = append(deduped, item)
	}
	return deduped
}

func buildStoredItem(company domain.Company, rawItem domain.RawItem, item domain.ClassifiedItem) domain.CompanyNews {
	sourceType := domain.SourceWeb
	if strings.Contains(strings.ToLower(item.URL), "sec.gov") {
		sourceType = domain.SourceSECEdgar
	}

	// Prefer the adapter-supplied publisher link over the (possibly
	// aggregated) article URL when recovering the publisher domain.
	publisherDomain := prefilter.Domain(item.URL)
	if rawItem.PublisherURL != "" {
		publisherDomain = prefilter.Domain(rawItem.PublisherURL)
	}

	sourceName := item.SourceName
	if sourceName == "" || sourceName == "Unknown" {
		if rawItem.SourceName != "" {
			sourceName = rawItem.SourceName
		} else if sourceName == "" {
			sourceName = "Unknown"
		}
	}

	return domain.CompanyNews{
		OrganizationID:  company.OrganizationID,
		CompanyID:       company.ID,
		Headline:        item.Headline,
		Summary:         item.Summary,
		SourceURL:       item.URL,
		SourceName:      sourceName,
		SourceType:      sourceType,
		PublisherDomain: publisherDomain,
		Importance:      item.Importance,
		EventType:       item.EventType,
		PublishedAt:     dates.Resolve(rawItem, item),
		FetchedAt:       time.Now().UTC(),
		URLHash:         domain.URLFingerprint(item.URL),
	}
}

func relevanceTickers(company domain.Company) []string {
	symbols := make([]string, 0, len(company.Tickers))
	for _, t := range company.Tickers {
		if len(symbols) == maxRelevanceTickers {
			break
		}
		symbols = append(symbols, t.Symbol)
	}
	return symbols
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) errorLog(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
