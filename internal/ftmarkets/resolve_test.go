package ftmarkets

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results map[string][]Symbol
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]Symbol, error) {
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

type fakeHistoryProvider struct {
	histories map[string]History
	errs      map[string]error
	calls     []string
}

func (f *fakeHistoryProvider) History(_ context.Context, ticker, _ string) (History, error) {
	f.calls = append(f.calls, ticker)
	if err := f.errs[ticker]; err != nil {
		return History{}, err
	}
	return f.histories[ticker], nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestResolver(search *fakeSearcher, history *fakeHistoryProvider) *Resolver {
	if search == nil {
		search = &fakeSearcher{}
	}
	if history == nil {
		history = &fakeHistoryProvider{}
	}
	return NewResolver(search, history, testLogger())
}

// matchingHistory returns a history whose candle on the given date
// brackets the price 60.50.
func matchingHistory(date time.Time) History {
	return History{Candles: []Candle{
		{Date: date, Low: dec(60.0), High: dec(61.0), Close: dec(60.4)},
	}}
}

func TestResolveSourcingPriority(t *testing.T) {
	search := &fakeSearcher{results: map[string][]Symbol{
		"DE000A0S9GB0": {{Ticker: "4GLD:GER:EUR", Name: "Xetra-Gold"}},
		"4GLD":         {{Ticker: "SOMETHING:ELSE", Name: "Wrong"}},
	}}
	r := newTestResolver(search, nil)

	results, err := r.Resolve(context.Background(), ResolveRequest{
		ISIN:        "DE000A0S9GB0",
		Symbol:      "4GLD",
		Description: "Xetra Gold",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "4GLD:GER:EUR", results[0].Ticker)

	// ISIN yielded results, so symbol and description were never
	// consulted.
	assert.Equal(t, []string{"DE000A0S9GB0"}, search.queries)
}

func TestResolveFallsBackThroughSources(t *testing.T) {
	search := &fakeSearcher{results: map[string][]Symbol{
		"Xetra Gold": {{Ticker: "4GLD:GER:EUR", Name: "Xetra-Gold"}},
	}}
	r := newTestResolver(search, nil)

	results, err := r.Resolve(context.Background(), ResolveRequest{
		ISIN:        "DE000A0S9GB0",
		Symbol:      "4GLD",
		Description: "Xetra Gold",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"DE000A0S9GB0", "4GLD", "Xetra Gold"}, search.queries)
}

func TestResolveSearchErrorPropagates(t *testing.T) {
	r := NewResolver(errSearcher{}, &fakeHistoryProvider{}, testLogger())

	_, err := r.Resolve(context.Background(), ResolveRequest{ISIN: "DE000A0S9GB0"})
	assert.Error(t, err)
}

type errSearcher struct{}

func (errSearcher) Search(context.Context, string) ([]Symbol, error) {
	return nil, errors.New("boom")
}

func TestResolveEmptySearchSkipsHistory(t *testing.T) {
	search := &fakeSearcher{}
	history := &fakeHistoryProvider{}
	r := newTestResolver(search, history)

	price := decimal.NewFromFloat(60.50)
	results, err := r.Resolve(context.Background(), ResolveRequest{
		ISIN:        "DE000A0S9GB0",
		TargetPrice: &price,
		TargetDate:  "2024-01-02",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, history.calls, "no history fetch for an empty candidate set")
}

func TestFilterCandidatesConjunctive(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "A:GER:EUR", Name: "a", Currency: "EUR", Country: "DE", AssetClass: "ETF"},
		{Ticker: "B:GER:EUR", Name: "b", Currency: "EUR", Country: "FR", AssetClass: "ETF"},
		{Ticker: "C:GER:EUR", Name: "c", Currency: "USD", Country: "DE", AssetClass: "ETF"},
		{Ticker: "D:GER:EUR", Name: "d", Currency: "EUR", Country: "DE", AssetClass: "Equity"},
		{Ticker: "E:GER", Name: "e", Country: "DE", AssetClass: "ETF"},
	}

	kept := filterCandidates(candidates, ResolveRequest{
		Currency:   "eur",
		Country:    "de",
		AssetClass: "etf",
	})

	require.Len(t, kept, 1)
	assert.Equal(t, "A:GER:EUR", kept[0].Ticker)
}

func TestFilterCandidatesNoConstraintsKeepsAll(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "B", Name: "b"},
		{Ticker: "A", Name: "a"},
		{Ticker: "C", Name: "c"},
	}

	kept := filterCandidates(candidates, ResolveRequest{})
	assert.Equal(t, candidates, kept, "no constraints returns the set unmodified in order")
}

func TestFilterDropsCandidateMissingConstrainedAttribute(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "A:NSQ", Name: "a"}, // no currency attribute
	}

	kept := filterCandidates(candidates, ResolveRequest{Currency: "USD"})
	assert.Empty(t, kept)
}

func TestRankCandidatesPreferredExchanges(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "AAPL:NYQ", Name: "Apple"},
		{Ticker: "AAPL:NSQ", Name: "Apple"},
	}

	ranked := rankCandidates(candidates, ResolveRequest{
		PreferredExchanges: []string{"NSQ", "NYQ"},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "AAPL:NSQ", ranked[0].Ticker)
	assert.Equal(t, "AAPL:NYQ", ranked[1].Ticker)
}

func TestRankCandidatesMatchesExchangeField(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "AAPL:XXX", Name: "Apple", Exchange: "New York"},
		{Ticker: "AAPL:YYY", Name: "Apple", Exchange: "NASDAQ"},
	}

	ranked := rankCandidates(candidates, ResolveRequest{
		PreferredExchanges: []string{"nasdaq"},
	})

	assert.Equal(t, "AAPL:YYY", ranked[0].Ticker)
}

func TestRankCandidatesCurrencyBoostDominates(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "GLD:NSQ", Name: "Gold ETF"},
		{Ticker: "4GLD:GER:EUR", Name: "Xetra-Gold"},
	}

	ranked := rankCandidates(candidates, ResolveRequest{
		PreferredExchanges: []string{"NSQ"},
		Currency:           "EUR",
	})

	// The currency-exact ticker outranks the exchange-preference match.
	require.Len(t, ranked, 2)
	assert.Equal(t, "4GLD:GER:EUR", ranked[0].Ticker)
}

func TestRankCandidatesStableWithoutPreferences(t *testing.T) {
	candidates := []Symbol{
		{Ticker: "C", Name: "c"},
		{Ticker: "A", Name: "a"},
		{Ticker: "B", Name: "b"},
	}

	ranked := rankCandidates(candidates, ResolveRequest{})
	assert.Equal(t, candidates, ranked)
}

func TestResolveLimitZeroReturnsAll(t *testing.T) {
	search := &fakeSearcher{results: map[string][]Symbol{
		"gold": {
			{Ticker: "A", Name: "a"},
			{Ticker: "B", Name: "b"},
			{Ticker: "C", Name: "c"},
		},
	}}
	r := newTestResolver(search, nil)

	results, err := r.Resolve(context.Background(), ResolveRequest{Description: "gold", Limit: 0})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestResolveLimitTruncates(t *testing.T) {
	search := &fakeSearcher{results: map[string][]Symbol{
		"gold": {
			{Ticker: "A", Name: "a"},
			{Ticker: "B", Name: "b"},
			{Ticker: "C", Name: "c"},
		},
	}}
	r := newTestResolver(search, nil)

	results, err := r.Resolve(context.Background(), ResolveRequest{Description: "gold", Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Ticker)
	assert.Equal(t, "B", results[1].Ticker)
}

func TestResolveValidationEarlyExit(t *testing.T) {
	target := day(2024, 1, 2)
	search := &fakeSearcher{results: map[string][]Symbol{
		"gold": {
			{Ticker: "A", Name: "a"},
			{Ticker: "B", Name: "b"},
			{Ticker: "C", Name: "c"},
		},
	}}
	history := &fakeHistoryProvider{histories: map[string]History{
		"A": matchingHistory(target),
		"B": matchingHistory(target),
		"C": matchingHistory(target),
	}}
	r := newTestResolver(search, history)

	price := decimal.NewFromFloat(60.50)
	results, err := r.Resolve(context.Background(), ResolveRequest{
		Description: "gold",
		TargetPrice: &price,
		TargetDate:  "2024-01-02",
		Limit:       1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Ticker)
	assert.Equal(t, []string{"A"}, history.calls, "validation stops at the first match when limit is 1")
}

func TestResolveValidationSkipsNonMatching(t *testing.T) {
	target := day(2024, 1, 2)
	search := &fakeSearcher{results: map[string][]Symbol{
		"gold": {
			{Ticker: "A", Name: "a"},
			{Ticker: "B", Name: "b"},
		},
	}}
	history := &fakeHistoryProvider{histories: map[string]History{
		"A": {Candles: []Candle{{Date: target, Low: dec(10), High: dec(11)}}},
		"B": matchingHistory(target),
	}}
	r := newTestResolver(search, history)

	price := decimal.NewFromFloat(60.50)
	results, err := r.Resolve(context.Background(), ResolveRequest{
		Description: "gold",
		TargetPrice: &price,
		TargetDate:  "2024-01-02",
		Limit:       1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Ticker)
	assert.Equal(t, []string{"A", "B"}, history.calls)
}

func TestResolveValidationSkipsFailedFetch(t *testing.T) {
	target := day(2024, 1, 2)
	search := &fakeSearcher{results: map[string][]Symbol{
		"gold": {
			{Ticker: "A", Name: "a"},
			{Ticker: "B", Name: "b"},
		},
	}}
	history := &fakeHistoryProvider{
		histories: map[string]History{"B": matchingHistory(target)},
		errs:      map[string]error{"A": errors.New("HTTP 500")},
	}
	r := newTestResolver(search, history)

	price := decimal.NewFromFloat(60.50)
	results, err := r.Resolve(context.Background(), ResolveRequest{
		Description: "gold",
		TargetPrice: &price,
		TargetDate:  "2024-01-02",
	})
	require.NoError(t, err, "a per-candidate fetch failure is not fatal")
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Ticker)
}

func TestResolveValidationUnparseableDate(t *testing.T) {
	search := &fakeSearcher{results: map[string][]Symbol{
		"gold": {{Ticker: "A", Name: "a"}},
	}}
	history := &fakeHistoryProvider{}
	r := newTestResolver(search, history)

	price := decimal.NewFromFloat(60.50)
	results, err := r.Resolve(context.Background(), ResolveRequest{
		Description: "gold",
		TargetPrice: &price,
		TargetDate:  "January 2nd",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, history.calls)
}

func TestParseTargetDate(t *testing.T) {
	parsed, ok := parseTargetDate("2024-01-02")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 2), parsed)

	parsed, ok = parseTargetDate("20240102")
	require.True(t, ok)
	assert.Equal(t, day(2024, 1, 2), parsed)

	_, ok = parseTargetDate("02/01/2024")
	assert.False(t, ok)
}

func TestValidationPeriodWindows(t *testing.T) {
	now := day(2024, 6, 1)

	cases := []struct {
		target time.Time
		want   string
	}{
		{day(2018, 1, 1), "10y"},
		{day(2021, 6, 1), "5y"},
		{day(2023, 1, 1), "3y"},
		{day(2023, 10, 1), "1y"},
		{day(2024, 1, 15), "6mo"},
		{day(2024, 5, 1), "3mo"},
		{day(2024, 6, 1), "3mo"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, validationPeriod(tc.target, now), "target %s", tc.target.Format("2006-01-02"))
	}
}
