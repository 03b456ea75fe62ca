package source

import (
	"context"

	"github.com/etindell/bireme-research/internal/domain"
)

// Request carries everything one channel needs to search for a company.
type Request struct {
	Company   domain.Company
	Blacklist []string

	// DaysBack and MaxResults override the adapter defaults when positive.
	DaysBack   int
	MaxResults int
}

// Source fetches raw news from a single channel. Implementations tolerate
// partial upstream failures; a returned error means the whole channel
// produced nothing this run and is collapsed to an empty result at the
// orchestrator boundary.
type Source interface {
	Name() string
	Search(ctx context.Context, req Request) ([]domain.RawItem, error)
}
