package ftmarkets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ftmarkets/internal/config"
)

// FTSource is the live markets.ft.com implementation of Source, tying
// the transport client and the resolver together.
type FTSource struct {
	client   *Client
	resolver *Resolver
}

var _ Source = (*FTSource)(nil)

// NewSource creates a Source backed by markets.ft.com.
func NewSource(cfg *config.Config, logger *logrus.Logger) *FTSource {
	client := NewClient(cfg, logger)
	return &FTSource{
		client:   client,
		resolver: NewResolver(client, client, logger),
	}
}

// Client exposes the underlying transport for callers that fetch
// history or search directly.
func (s *FTSource) Client() *Client {
	return s.client
}

// Resolver exposes the resolution pipeline for callers needing the
// full ResolveRequest surface.
func (s *FTSource) Resolver() *Resolver {
	return s.resolver
}

func (s *FTSource) Search(ctx context.Context, query string) ([]Symbol, error) {
	return s.client.Search(ctx, query)
}

// Resolve resolves a SecurityCriteria to the single best candidate, or
// nil when nothing matches.
func (s *FTSource) Resolve(ctx context.Context, criteria SecurityCriteria) (*Symbol, error) {
	results, err := s.resolver.Resolve(ctx, ResolveRequest{
		ISIN:        criteria.ISIN,
		Symbol:      criteria.Symbol,
		Description: criteria.Description,
		TargetPrice: criteria.TargetPrice,
		TargetDate:  criteria.TargetDate,
		Currency:    criteria.Currency,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

func (s *FTSource) History(ctx context.Context, ticker, period string) (History, error) {
	return s.client.History(ctx, ticker, period)
}

// Validate reports whether the ticker traded near the target price on
// the target date, swallowing fetch errors as a non-match.
func (s *FTSource) Validate(ctx context.Context, ticker string, targetDate time.Time, targetPrice decimal.Decimal) bool {
	hist, err := s.client.History(ctx, ticker, "3mo")
	if err != nil {
		return false
	}
	return PriceMatches(hist, targetDate, targetPrice)
}
