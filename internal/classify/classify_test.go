package classify

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etindell/bireme-research/internal/domain"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

var testCompany = domain.Company{
	ID:             1,
	OrganizationID: 1,
	Name:           "Acme Corp",
	Tickers:        []domain.Ticker{{Symbol: "ACME", Exchange: "NYSE", IsPrimary: true}},
}

func rawItems(n int) []domain.RawItem {
	items := make([]domain.RawItem, n)
	for i := range items {
		items[i] = domain.RawItem{
			URL:   fmt.Sprintf("https://news.example.com/%d", i),
			Title: fmt.Sprintf("Acme story %d", i),
		}
	}
	return items
}

func TestClassifyParsesProseWrappedArray(t *testing.T) {
	t.Parallel()

	response := `Here is my selection:
[
  {"url": "https://news.example.com/0", "relevant": true, "headline": "Acme wins contract",
   "summary": "Material new revenue.", "importance": "high", "event_type": "product",
   "source_name": "Reuters", "published_date": "2025-06-02"}
]
Let me know if you need anything else.`

	c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
		return response, nil
	}), nil)

	got := c.Classify(context.Background(), testCompany, rawItems(2), nil, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "https://news.example.com/0", got[0].URL)
	assert.Equal(t, domain.ImportanceHigh, got[0].Importance)
	assert.Equal(t, domain.EventProduct, got[0].EventType)
	assert.Equal(t, "Reuters", got[0].SourceName)
	assert.Equal(t, "2025-06-02", got[0].PublishedDate)
}

func TestClassifyDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	response := `[{"url": "https://news.example.com/0", "relevant": true, "importance": "critical", "event_type": "merger", "published_date": null}]`

	c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
		return response, nil
	}), nil)

	got := c.Classify(context.Background(), testCompany, rawItems(1), nil, nil)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ImportanceMedium, got[0].Importance)
	assert.Equal(t, domain.EventOther, got[0].EventType)
	assert.Equal(t, "Unknown", got[0].SourceName)
	assert.Empty(t, got[0].PublishedDate)
}

func TestClassifyDropsIrrelevantEntries(t *testing.T) {
	t.Parallel()

	response := `[
  {"url": "https://news.example.com/0", "relevant": false, "headline": "noise"},
  {"url": "https://news.example.com/1", "relevant": true, "headline": "signal"}
]`

	c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
		return response, nil
	}), nil)

	got := c.Classify(context.Background(), testCompany, rawItems(2), nil, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "signal", got[0].Headline)
}

func TestClassifyEnforcesHardCap(t *testing.T) {
	t.Parallel()

	var entries []string
	for i := 0; i < 25; i++ {
		entries = append(entries, fmt.Sprintf(
			`{"url": "https://news.example.com/%d", "relevant": true, "headline": "h%d"}`, i, i))
	}
	response := "[" + strings.Join(entries, ",") + "]"

	c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
		return response, nil
	}), nil)

	got := c.Classify(context.Background(), testCompany, rawItems(100), nil, nil)
	assert.Len(t, got, MaxSelected)
}

func TestClassifyDegradesOnFailure(t *testing.T) {
	t.Parallel()

	t.Run("completer error", func(t *testing.T) {
		c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
			return "", fmt.Errorf("rate limited")
		}), nil)
		assert.Empty(t, c.Classify(context.Background(), testCompany, rawItems(1), nil, nil))
	})

	t.Run("no array in response", func(t *testing.T) {
		c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
			return "I could not find anything important.", nil
		}), nil)
		assert.Empty(t, c.Classify(context.Background(), testCompany, rawItems(1), nil, nil))
	})

	t.Run("malformed array", func(t *testing.T) {
		c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
			return `[{"url": ]`, nil
		}), nil)
		assert.Empty(t, c.Classify(context.Background(), testCompany, rawItems(1), nil, nil))
	})

	t.Run("nil completer", func(t *testing.T) {
		c := New(nil, nil)
		assert.Empty(t, c.Classify(context.Background(), testCompany, rawItems(1), nil, nil))
	})
}

func TestClassifySkipsCompleterWithoutItems(t *testing.T) {
	t.Parallel()

	called := false
	c := New(completerFunc(func(ctx context.Context, prompt string) (string, error) {
		called = true
		return "[]", nil
	}), nil)

	assert.Empty(t, c.Classify(context.Background(), testCompany, nil, nil, nil))
	assert.False(t, called)
}

func TestPromptCarriesContext(t *testing.T) {
	t.Parallel()

	var prompt string
	c := New(completerFunc(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "[]", nil
	}), nil)

	items := []domain.RawItem{{
		URL:     "https://news.example.com/0",
		Title:   "Acme story",
		Content: strings.Repeat("x", 2000),
	}}
	c.Classify(context.Background(), testCompany, items, []string{"spammy.example"}, []string{"Acme already covered"})

	assert.Contains(t, prompt, "Acme Corp")
	assert.Contains(t, prompt, "ACME")
	assert.Contains(t, prompt, "spammy.example")
	assert.Contains(t, prompt, "Acme already covered")
	assert.Contains(t, prompt, strings.Repeat("x", maxSnippetChars)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", maxSnippetChars+1))
}
