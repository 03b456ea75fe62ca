package ports

import (
	"context"
	"time"

	"github.com/etindell/bireme-research/internal/domain"
)

// CompanyFilter narrows which directory entries a run covers.
type CompanyFilter struct {
	OrganizationSlug string
	CompanySlug      string

	// AllStatuses lifts the default long-book/short-book restriction.
	AllStatuses bool
}

// CompanyDirectory reads tracked companies with their ticker listings.
type CompanyDirectory interface {
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]domain.Company, error)
}

// BlacklistStore reads the organization-scoped domain denylist. The list is
// managed outside this pipeline.
type BlacklistStore interface {
	ListDomains(ctx context.Context, organizationID int64) ([]string, error)
}

// NewsRepository persists classified news with key-based deduplication.
type NewsRepository interface {
	// InsertIfAbsent stores the item unless (company, url hash) already
	// exists; reports whether a row was created.
	InsertIfAbsent(ctx context.Context, item domain.CompanyNews) (bool, error)

	// RecentHeadlines returns up to limit headlines stored for the company
	// since the given time, newest first.
	RecentHeadlines(ctx context.Context, companyID int64, since time.Time, limit int) ([]string, error)
}

// Completer is the hosted text-completion capability behind the classifier.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier selects a bounded set of verified-important items.
type Classifier interface {
	Classify(ctx context.Context, company domain.Company, items []domain.RawItem, blacklist, recentHeadlines []string) []domain.ClassifiedItem
}
