package ftmarkets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol identifies a tradable security as listed on markets.ft.com.
// Ticker and Name are always populated; everything else is best-effort
// and empty when the search results did not carry it.
type Symbol struct {
	// Ticker is the exchange-qualified form, e.g. "AAPL:NSQ" or
	// "4GLD:GER:EUR" (SYMBOL[:EXCHANGE[:CURRENCY]]).
	Ticker     string `json:"ticker" xml:"Ticker"`
	Name       string `json:"name" xml:"Name"`
	Exchange   string `json:"exchange,omitempty" xml:"Exchange"`
	Country    string `json:"country,omitempty" xml:"Country"`
	Currency   string `json:"currency,omitempty" xml:"Currency"`
	AssetClass string `json:"asset_class,omitempty" xml:"AssetClass"`
}

// Candle is one trading day's OHLCV bar. A nil field means the provider
// reported no value for that day, which is distinct from zero.
type Candle struct {
	Date   time.Time        `json:"date"`
	Open   *decimal.Decimal `json:"open,omitempty"`
	High   *decimal.Decimal `json:"high,omitempty"`
	Low    *decimal.Decimal `json:"low,omitempty"`
	Close  *decimal.Decimal `json:"close,omitempty"`
	Volume *int64           `json:"volume,omitempty"`
}

// History pairs a symbol with its daily candles, ordered ascending by
// date as delivered by the provider. It is rebuilt on every fetch and
// never persisted.
type History struct {
	Symbol  Symbol   `json:"symbol"`
	Candles []Candle `json:"candles"`
}

// SecurityCriteria is the external input contract for resolving a
// security from partial, possibly conflicting identifying information.
type SecurityCriteria struct {
	ISIN        string           `json:"isin,omitempty"`
	Symbol      string           `json:"symbol,omitempty"`
	Description string           `json:"description,omitempty"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	TargetDate  string           `json:"target_date,omitempty"`
	Currency    string           `json:"currency,omitempty"`
}

// Source is the high-level interface exposed to consumers that only
// need search/resolve/history/validate without the full ResolveRequest
// surface.
type Source interface {
	Search(ctx context.Context, query string) ([]Symbol, error)
	Resolve(ctx context.Context, criteria SecurityCriteria) (*Symbol, error)
	History(ctx context.Context, ticker, period string) (History, error)
	Validate(ctx context.Context, ticker string, targetDate time.Time, targetPrice decimal.Decimal) bool
}
