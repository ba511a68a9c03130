package universe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/clients/marketdata"
	"github.com/aristath/lookout/internal/domain"
)

// SymbolSearcher is the slice of the market data client the resolver uses.
type SymbolSearcher interface {
	SearchSymbol(ctx context.Context, keywords string) ([]marketdata.SymbolMatch, error)
}

// Resolver turns free-form security names into full identities. Known symbols
// come straight from the universe catalogue; unknown ones go through symbol
// search and are added to the catalogue on first sight.
type Resolver struct {
	repo     *SecurityRepository
	searcher SymbolSearcher
	log      zerolog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(repo *SecurityRepository, searcher SymbolSearcher, log zerolog.Logger) *Resolver {
	return &Resolver{
		repo:     repo,
		searcher: searcher,
		log:      log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve maps a name or ticker to a security identity. A name that matches
// nothing returns domain.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, name string) (*domain.SecurityIdentity, error) {
	identity, err := r.repo.GetBySymbol(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("catalogue lookup: %w", err)
	}
	if identity != nil {
		return identity, nil
	}

	matches, err := r.searcher.SearchSymbol(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}
	if len(matches) == 0 {
		return nil, &domain.ResolutionError{Name: name}
	}

	best := matches[0]
	resolved := &domain.SecurityIdentity{
		Symbol:   best.Symbol,
		Name:     best.Name,
		Exchange: best.Exchange,
		Currency: best.Currency,
	}

	if err := r.repo.Upsert(ctx, *resolved); err != nil {
		// Still usable for this run, just not remembered.
		r.log.Warn().Err(err).Str("symbol", resolved.Symbol).Msg("failed to catalogue resolved security")
	} else {
		r.log.Info().Str("name", name).Str("symbol", resolved.Symbol).Msg("resolved new security")
	}

	return resolved, nil
}
