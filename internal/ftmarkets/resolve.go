package ftmarkets

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// currencyBoost floats currency-exact tickers to the top of the ranking
// regardless of exchange preference.
const currencyBoost = 100

// targetDateFormats are the accepted layouts for a resolution target
// date.
var targetDateFormats = []string{"2006-01-02", "20060102"}

// Searcher supplies candidate symbols for a free-form query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Symbol, error)
}

// HistoryProvider supplies the daily series used to validate a
// candidate against a known historical trade.
type HistoryProvider interface {
	History(ctx context.Context, ticker, period string) (History, error)
}

// ResolveRequest describes one resolution: identifying information,
// user constraints, ranking preferences and an optional (price, date)
// pair a candidate's history must be consistent with.
type ResolveRequest struct {
	ISIN               string
	Symbol             string
	Description        string
	PreferredExchanges []string
	TargetPrice        *decimal.Decimal
	TargetDate         string
	Currency           string
	Country            string
	AssetClass         string
	// Limit truncates the result; zero or negative returns all
	// surviving candidates.
	Limit int
}

// Resolver turns ambiguous identifying information into a ranked,
// size-limited list of candidate securities. It runs a linear pipeline:
// source candidates, filter by constraints, rank by preference score,
// optionally validate against a historical trade, then limit.
type Resolver struct {
	search  Searcher
	history HistoryProvider
	log     *logrus.Logger
	now     func() time.Time
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(search Searcher, history HistoryProvider, logger *logrus.Logger) *Resolver {
	return &Resolver{
		search:  search,
		history: history,
		log:     logger,
		now:     time.Now,
	}
}

// Resolve runs the pipeline. Absence of matches at any stage yields an
// empty list, never an error; only transport failures outside the
// per-candidate validation loop propagate.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) ([]Symbol, error) {
	candidates, err := r.sourceCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = filterCandidates(candidates, req)
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = rankCandidates(candidates, req)

	if req.TargetPrice != nil && req.TargetDate != "" {
		candidates = r.validateCandidates(ctx, candidates, req)
	}

	return limitCandidates(candidates, req.Limit), nil
}

// sourceCandidates tries ISIN, then symbol, then description; the first
// query yielding any candidates wins and later sources are never
// consulted. Result sets are not merged.
func (r *Resolver) sourceCandidates(ctx context.Context, req ResolveRequest) ([]Symbol, error) {
	for _, query := range []string{req.ISIN, req.Symbol, req.Description} {
		if query == "" {
			continue
		}

		candidates, err := r.search.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	return nil, nil
}

// filterCandidates applies the supplied constraints conjunctively. A
// candidate lacking an attribute is dropped when the matching
// constraint is active.
func filterCandidates(candidates []Symbol, req ResolveRequest) []Symbol {
	var kept []Symbol
	for _, cand := range candidates {
		if req.Currency != "" && !strings.EqualFold(cand.Currency, req.Currency) {
			continue
		}
		if req.Country != "" && !strings.EqualFold(cand.Country, req.Country) {
			continue
		}
		if req.AssetClass != "" && !strings.EqualFold(cand.AssetClass, req.AssetClass) {
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}

// rankCandidates stably sorts candidates ascending by preference score,
// so equal scores keep their input order.
func rankCandidates(candidates []Symbol, req ResolveRequest) []Symbol {
	ranked := make([]Symbol, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return matchScore(ranked[i], req) < matchScore(ranked[j], req)
	})

	return ranked
}

// matchScore scores a candidate against the request's preferences.
// Lower is better. The index of the first preferred exchange found as a
// substring of the candidate's exchange or ticker is added; a miss adds
// the full preference-list length. A ticker ending in the requested
// currency gets a strong boost.
func matchScore(cand Symbol, req ResolveRequest) int {
	score := 0

	if len(req.PreferredExchanges) > 0 {
		exchange := strings.ToLower(cand.Exchange)
		ticker := strings.ToLower(cand.Ticker)

		found := false
		for i, pref := range req.PreferredExchanges {
			pref = strings.ToLower(pref)
			if pref == "" {
				continue
			}
			if strings.Contains(exchange, pref) || strings.Contains(ticker, pref) {
				score += i
				found = true
				break
			}
		}
		if !found {
			score += len(req.PreferredExchanges)
		}
	}

	if req.Currency != "" {
		suffix := ":" + strings.ToUpper(req.Currency)
		if strings.HasSuffix(strings.ToUpper(cand.Ticker), suffix) {
			score -= currencyBoost
		}
	}

	return score
}

// validateCandidates keeps, in ranked order, the candidates whose
// history contains a candle consistent with the target (price, date)
// pair, stopping early once Limit matches are collected. A failed
// history fetch skips that candidate only.
func (r *Resolver) validateCandidates(ctx context.Context, candidates []Symbol, req ResolveRequest) []Symbol {
	targetDate, ok := parseTargetDate(req.TargetDate)
	if !ok {
		r.log.WithField("date", req.TargetDate).Warn("unparseable target date, no candidate can validate")
		return nil
	}

	period := validationPeriod(targetDate, r.now())

	var validated []Symbol
	for _, cand := range candidates {
		hist, err := r.history.History(ctx, cand.Ticker, period)
		if err != nil {
			r.log.WithField("ticker", cand.Ticker).WithError(err).Warn("history fetch failed, skipping candidate")
			continue
		}

		if PriceMatches(hist, targetDate, *req.TargetPrice) {
			validated = append(validated, cand)
			if req.Limit > 0 && len(validated) >= req.Limit {
				break
			}
		}
	}

	return validated
}

func limitCandidates(candidates []Symbol, limit int) []Symbol {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}

// parseTargetDate accepts YYYY-MM-DD and YYYYMMDD.
func parseTargetDate(raw string) (time.Time, bool) {
	for _, layout := range targetDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// validationPeriod sizes the history window to cover the gap between
// now and the target date.
func validationPeriod(targetDate, now time.Time) string {
	days := int(now.Sub(targetDate).Hours() / 24)

	switch {
	case days > 365*5:
		return "10y"
	case days > 365*2:
		return "5y"
	case days > 365:
		return "3y"
	case days > 180:
		return "1y"
	case days > 90:
		return "6mo"
	default:
		return "3mo"
	}
}
