package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/etindell/bireme-research/internal/domain"
)

func TestResolvePrefersAdapterTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	raw := domain.RawItem{PublishedAt: &want, PublishedRaw: "ignored"}
	classified := domain.ClassifiedItem{PublishedDate: "2020-01-01"}

	assert.Equal(t, want, Resolve(raw, classified))
}

func TestResolveUsesClassifierDate(t *testing.T) {
	t.Parallel()

	got := Resolve(domain.RawItem{}, domain.ClassifiedItem{PublishedDate: "2025-03-01"})
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), got)

	got = Resolve(domain.RawItem{}, domain.ClassifiedItem{PublishedDate: "2025-03-01T12:30:00"})
	assert.Equal(t, time.Date(2025, time.March, 1, 12, 30, 0, 0, time.UTC), got)
}

func TestResolveIgnoresNullClassifierDate(t *testing.T) {
	t.Parallel()

	raw := domain.RawItem{PublishedRaw: "2025-06-02T10:00:00Z"}
	got := Resolve(raw, domain.ClassifiedItem{PublishedDate: "null"})
	assert.Equal(t, time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC), got)
}

func TestResolveParsesRawRFC822(t *testing.T) {
	t.Parallel()

	raw := domain.RawItem{PublishedRaw: "Mon, 02 Jun 2025 10:00:00 GMT"}
	got := Resolve(raw, domain.ClassifiedItem{})
	assert.Equal(t, time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC), got)
}

func TestResolveAlwaysReturnsAValue(t *testing.T) {
	t.Parallel()

	raws := []domain.RawItem{
		{},
		{PublishedRaw: "not a date"},
	}
	classifieds := []domain.ClassifiedItem{
		{},
		{PublishedDate: "null"},
		{PublishedDate: "garbage"},
	}

	for _, raw := range raws {
		for _, classified := range classifieds {
			got := Resolve(raw, classified)
			assert.False(t, got.IsZero())
			assert.WithinDuration(t, time.Now().UTC(), got, time.Minute)
		}
	}
}
