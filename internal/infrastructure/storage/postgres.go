// Package storage persists news items and reads the company directory and
// blacklist from Postgres. Table names follow the schema owned by the web
// tier, which shares this database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/etindell/bireme-research/internal/domain"
	"github.com/etindell/bireme-research/internal/ports"
)

// Column limits from the shared schema.
const (
	maxHeadlineLen   = 500
	maxSourceURLLen  = 2000
	maxSourceNameLen = 100
	maxEventTypeLen  = 50
)

// PostgresRepository implements the news, blacklist, and directory ports on
// one connection pool.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.NewsRepository = (*PostgresRepository)(nil)
var _ ports.BlacklistStore = (*PostgresRepository)(nil)
var _ ports.CompanyDirectory = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InsertIfAbsent stores the item unless the (company, url hash) key exists.
// A conflict is an expected no-op, not an error.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, item domain.CompanyNews) (bool, error) {
	if r.db == nil {
		return false, nil
	}

	fetchedAt := item.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	query := r.sb.Insert("news_companynews").
		Columns(
			"organization_id", "company_id",
			"headline", "summary", "source_url", "source_name", "source_type",
			"publisher_domain", "importance", "event_type",
			"published_at", "fetched_at",
			"is_read", "is_starred", "url_hash",
		).
		Values(
			item.OrganizationID, item.CompanyID,
			truncate(item.Headline, maxHeadlineLen),
			item.Summary,
			truncate(item.SourceURL, maxSourceURLLen),
			truncate(item.SourceName, maxSourceNameLen),
			string(item.SourceType),
			item.PublisherDomain,
			string(item.Importance),
			truncate(string(item.EventType), maxEventTypeLen),
			item.PublishedAt, fetchedAt,
			false, false, item.URLHash,
		).
		Suffix("ON CONFLICT (company_id, url_hash) DO NOTHING")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("insert news item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecentHeadlines returns stored headlines for cross-run dedup context.
func (r *PostgresRepository) RecentHeadlines(ctx context.Context, companyID int64, since time.Time, limit int) ([]string, error) {
	if r.db == nil {
		return nil, nil
	}

	query := r.sb.Select("headline").
		From("news_companynews").
		Where(sq.Eq{"company_id": companyID}).
		Where(sq.GtOrEq{"published_at": since}).
		OrderBy("published_at DESC").
		Limit(uint64(limit))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build headline query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query headlines: %w", err)
	}
	defer rows.Close()

	var headlines []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan headline: %w", err)
		}
		headlines = append(headlines, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return headlines, nil
}

// ListDomains returns the organization's blacklisted domains.
func (r *PostgresRepository) ListDomains(ctx context.Context, organizationID int64) ([]string, error) {
	if r.db == nil {
		return nil, nil
	}

	query := r.sb.Select("domain").
		From("news_blacklisteddomain").
		Where(sq.Eq{"organization_id": organizationID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build blacklist query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return domains, nil
}

// ListCompanies reads the tracked companies with their ticker listings.
func (r *PostgresRepository) ListCompanies(ctx context.Context, filter ports.CompanyFilter) ([]domain.Company, error) {
	if r.db == nil {
		return nil, nil
	}

	query := r.sb.Select("c.id", "c.organization_id", "c.slug", "c.name", "c.status").
		From("companies_company c").
		Join("organizations_organization o ON o.id = c.organization_id").
		Where(sq.Eq{"c.is_deleted": false}).
		OrderBy("c.name")

	if !filter.AllStatuses {
		books := []string{string(domain.StatusLongBook), string(domain.StatusShortBook)}
		query = query.Where(sq.Expr("c.status = ANY(?)", pq.Array(books)))
	}
	if filter.OrganizationSlug != "" {
		query = query.Where(sq.Eq{"o.slug": filter.OrganizationSlug})
	}
	if filter.CompanySlug != "" {
		query = query.Where(sq.Eq{"c.slug": filter.CompanySlug})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build company query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var companies []domain.Company
	index := map[int64]int{}
	var ids []int64
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Slug, &c.Name, &c.Status); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		index[c.ID] = len(companies)
		companies = append(companies, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if len(companies) == 0 {
		return companies, nil
	}

	if err := r.attachTickers(ctx, companies, index, ids); err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *PostgresRepository) attachTickers(ctx context.Context, companies []domain.Company, index map[int64]int, ids []int64) error {
	query := r.sb.Select("company_id", "symbol", "exchange", "is_primary").
		From("companies_companyticker").
		Where(sq.Expr("company_id = ANY(?)", pq.Array(ids))).
		OrderBy("is_primary DESC", "symbol")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build ticker query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var companyID int64
		var t domain.Ticker
		if err := rows.Scan(&companyID, &t.Symbol, &t.Exchange, &t.IsPrimary); err != nil {
			return fmt.Errorf("scan ticker: %w", err)
		}
		if i, ok := index[companyID]; ok {
			companies[i].Tickers = append(companies[i].Tickers, t)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
