package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/source"
)

// fakeSource builds its result from the request, so one instance can serve
// many companies.
type fakeSource struct {
	name     string
	searchFn func(req source.Request) ([]domain.RawItem, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, req source.Request) ([]domain.RawItem, error) {
	if f.searchFn == nil {
		return nil, nil
	}
	return f.searchFn(req)
}

func staticSource(name string, items ...domain.RawItem) *fakeSource {
	return &fakeSource{name: name, searchFn: func(source.Request) ([]domain.RawItem, error) {
		return items, nil
	}}
}

type fakeRepo struct {
	mu        sync.Mutex
	stored    map[string]domain.CompanyNews
	headlines []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: map[string]domain.CompanyNews{}}
}

func (f *fakeRepo) InsertIfAbsent(ctx context.Context, item domain.CompanyNews) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%s", item.CompanyID, item.URLHash)
	if _, exists := f.stored[key]; exists {
		return false, nil
	}
	f.stored[key] = item
	return true, nil
}

func (f *fakeRepo) RecentHeadlines(ctx context.Context, companyID int64, since time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headlines, nil
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeBlacklist struct {
	domains   []string
	failOrgID int64
}

func (f *fakeBlacklist) ListDomains(ctx context.Context, organizationID int64) ([]string, error) {
	if f.failOrgID != 0 && organizationID == f.failOrgID {
		return nil, fmt.Errorf("blacklist store unavailable")
	}
	return f.domains, nil
}

// fakeClassifier records what it is shown and selects via classifyFn.
type fakeClassifier struct {
	mu         sync.Mutex
	seen       [][]domain.RawItem
	classifyFn func(items []domain.RawItem) []domain.ClassifiedItem
}

func (f *fakeClassifier) Classify(ctx context.Context, company domain.Company, items []domain.RawItem, blacklist, recentHeadlines []string) []domain.ClassifiedItem {
	f.mu.Lock()
	f.seen = append(f.seen, items)
	f.mu.Unlock()
	if f.classifyFn == nil {
		return nil
	}
	return f.classifyFn(items)
}

func selectAll(items []domain.RawItem) []domain.ClassifiedItem {
	out := make([]domain.ClassifiedItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ClassifiedItem{
			URL:        item.URL,
			Headline:   item.Title,
			Summary:    "matters to investors",
			Importance: domain.ImportanceMedium,
			EventType:  domain.EventOther,
			SourceName: "Test Wire",
		})
	}
	return out
}

func acmeCompany() domain.Company {
	return domain.Company{
		ID:             1,
		OrganizationID: 10,
		Slug:           "acme",
		Name:           "Acme Corp",
		Tickers:        []domain.Ticker{{Symbol: "ACME", Exchange: "NYSE", IsPrimary: true}},
	}
}

func newTestPipeline(repo *fakeRepo, classifier *fakeClassifier, sources ...source.Source) *Pipeline {
	return NewPipeline(PipelineDeps{
		Sources:    sources,
		Repository: repo,
		Blacklist:  &fakeBlacklist{},
		Classifier: classifier,
	})
}

func TestRunScenarioA(t *testing.T) {
	t.Parallel()

	src := staticSource("web",
		domain.RawItem{URL: "https://stockanalysis.com/stocks/acme", Title: "Acme Corp overview"},
		domain.RawItem{URL: "https://news.example.com/acme-wins", Title: "Acme wins major contract"},
		domain.RawItem{URL: "https://news.example.com/unrelated", Title: "Completely different story"},
	)
	repo := newFakeRepo()
	classifier := &fakeClassifier{classifyFn: selectAll}

	p := newTestPipeline(repo, classifier, src)
	stored, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)

	require.Len(t, classifier.seen, 1)
	require.Len(t, classifier.seen[0], 1, "classifier must only see the prefiltered item")
	assert.Equal(t, "https://news.example.com/acme-wins", classifier.seen[0][0].URL)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, repo.count())
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	src := staticSource("web",
		domain.RawItem{URL: "https://news.example.com/acme-wins", Title: "Acme wins major contract"},
	)
	repo := newFakeRepo()
	classifier := &fakeClassifier{classifyFn: selectAll}
	p := newTestPipeline(repo, classifier, src)

	first, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)
	assert.Equal(t, 0, second, "immediate re-run must insert nothing")
	assert.Equal(t, 1, repo.count())
}

func TestRunMergeKeepsFirstSeenURL(t *testing.T) {
	t.Parallel()

	shared := "https://news.example.com/acme-story"
	first := staticSource("web", domain.RawItem{URL: shared, Title: "Acme story, original headline"})
	second := staticSource("supplement", domain.RawItem{URL: shared, Title: "Acme story, rewritten headline"})

	repo := newFakeRepo()
	classifier := &fakeClassifier{}
	p := newTestPipeline(repo, classifier, first, second)

	stored, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)
	assert.Equal(t, 0, stored)

	require.Len(t, classifier.seen, 1)
	require.Len(t, classifier.seen[0], 1, "classifier must never see a duplicate URL")
	assert.Equal(t, "Acme story, original headline", classifier.seen[0][0].Title)
}

func TestRunToleratesAdapterFailure(t *testing.T) {
	t.Parallel()

	failing := &fakeSource{name: "broken", searchFn: func(source.Request) ([]domain.RawItem, error) {
		return nil, fmt.Errorf("upstream down")
	}}
	working := staticSource("web",
		domain.RawItem{URL: "https://news.example.com/acme-wins", Title: "Acme wins major contract"},
	)

	repo := newFakeRepo()
	classifier := &fakeClassifier{classifyFn: selectAll}
	p := newTestPipeline(repo, classifier, failing, working)

	stored, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestRunReturnsZeroWithoutRawItems(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	classifier := &fakeClassifier{classifyFn: selectAll}
	p := newTestPipeline(repo, classifier, staticSource("web"))

	stored, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
	assert.Empty(t, classifier.seen, "classifier must not run on an empty merge")
}

func TestRunManyIsolatesFailures(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "web", searchFn: func(req source.Request) ([]domain.RawItem, error) {
		return []domain.RawItem{{
			URL:   fmt.Sprintf("https://news.example.com/%s", req.Company.Slug),
			Title: req.Company.Name + " announces results",
		}}, nil
	}}

	companies := make([]domain.Company, 0, 5)
	for i := 1; i <= 5; i++ {
		companies = append(companies, domain.Company{
			ID:             int64(i),
			OrganizationID: int64(i),
			Slug:           fmt.Sprintf("co-%d", i),
			Name:           fmt.Sprintf("Company %d Corp", i),
		})
	}

	repo := newFakeRepo()
	p := NewPipeline(PipelineDeps{
		Sources:    []source.Source{src},
		Repository: repo,
		Blacklist:  &fakeBlacklist{failOrgID: 3},
		Classifier: &fakeClassifier{classifyFn: selectAll},
	})

	total, errs := p.RunMany(context.Background(), companies, 2)

	assert.Equal(t, 4, total)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Company 3 Corp")
	assert.Equal(t, 4, repo.count())
}

func TestRunPassesPerChannelLookback(t *testing.T) {
	t.Parallel()

	var webDays, filingDays int
	web := &fakeSource{name: "google_news", searchFn: func(req source.Request) ([]domain.RawItem, error) {
		webDays = req.DaysBack
		return nil, nil
	}}
	filings := &fakeSource{name: "sec_edgar", searchFn: func(req source.Request) ([]domain.RawItem, error) {
		filingDays = req.DaysBack
		return nil, nil
	}}

	p := NewPipeline(PipelineDeps{
		Sources:        []source.Source{web, filings},
		Repository:     newFakeRepo(),
		Blacklist:      &fakeBlacklist{},
		Classifier:     &fakeClassifier{},
		DaysBack:       3,
		FilingDaysBack: 7,
	})

	_, err := p.Run(context.Background(), acmeCompany())
	require.NoError(t, err)
	assert.Equal(t, 3, webDays)
	assert.Equal(t, 7, filingDays)
}

func TestRunManyDefaultsParallelism(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(newFakeRepo(), &fakeClassifier{}, staticSource("web"))

	total, errs := p.RunMany(context.Background(), []domain.Company{acmeCompany()}, 0)
	assert.Equal(t, 0, total)
	assert.Empty(t, errs)
}

func TestBuildStoredItem(t *testing.T) {
	t.Parallel()

	company := acmeCompany()

	t.Run("web item with publisher url", func(t *testing.T) {
		published := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
		raw := domain.RawItem{
			URL:          "https://news.google.com/rss/articles/abc",
			PublisherURL: "https://www.reuters.com/acme",
			SourceName:   "Reuters",
			PublishedAt:  &published,
		}
		classified := domain.ClassifiedItem{
			URL:        raw.URL,
			Headline:   "Acme wins contract",
			Importance: domain.ImportanceHigh,
			EventType:  domain.EventProduct,
			SourceName: "Unknown",
		}

		item := buildStoredItem(company, raw, classified)
		assert.Equal(t, domain.SourceWeb, item.SourceType)
		assert.Equal(t, "reuters.com", item.PublisherDomain)
		assert.Equal(t, "Reuters", item.SourceName, "raw source name beats the Unknown default")
		assert.Equal(t, published, item.PublishedAt)
		assert.Equal(t, domain.URLFingerprint(raw.URL), item.URLHash)
		assert.False(t, item.IsRead)
		assert.False(t, item.IsStarred)
	})

	t.Run("filing item", func(t *testing.T) {
		classified := domain.ClassifiedItem{
			URL:        "https://www.sec.gov/Archives/edgar/data/123/acme-8k.htm",
			Headline:   "Acme files 8-K",
			SourceName: "SEC EDGAR",
		}

		item := buildStoredItem(company, domain.RawItem{}, classified)
		assert.Equal(t, domain.SourceSECEdgar, item.SourceType)
		assert.Equal(t, "sec.gov", item.PublisherDomain)
		assert.False(t, item.PublishedAt.IsZero(), "date resolution must always produce a value")
	})
}
