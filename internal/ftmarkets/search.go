package ftmarkets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// ExtractConfig carries the label tables the extractor uses to map the
// provider's weakly-structured markup onto Symbol attributes. Injecting
// them keeps extraction a pure function testable against fixture
// documents.
type ExtractConfig struct {
	// AssetClassLabels maps tab-panel ids and section headers to asset
	// class names. Unmapped headers pass through verbatim.
	AssetClassLabels map[string]string
	// CountryCodes maps provider country names to ISO 3166-1 alpha-2
	// codes. Unmapped names yield no country rather than an error.
	CountryCodes map[string]string
}

// DefaultExtractConfig returns the label tables for markets.ft.com.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		AssetClassLabels: map[string]string{
			"etf-panel":    "ETF",
			"equity-panel": "Equity",
			"fund-panel":   "Fund",
			"index-panel":  "Index",
			"ETFs":         "ETF",
			"Equities":     "Equity",
			"Funds":        "Fund",
			"Indices":      "Index",
			"Indicies":     "Index",
		},
		CountryCodes: map[string]string{
			"United Kingdom": "GB",
			"United States":  "US",
			"France":         "FR",
			"Germany":        "DE",
			"Canada":         "CA",
			"Italy":          "IT",
			"Spain":          "ES",
			"Netherlands":    "NL",
			"Australia":      "AU",
			"Japan":          "JP",
			"Switzerland":    "CH",
			"Sweden":         "SE",
			"Belgium":        "BE",
			"Ireland":        "IE",
			"Denmark":        "DK",
			"Finland":        "FI",
			"Norway":         "NO",
			"Portugal":       "PT",
			"Hong Kong":      "HK",
			"Singapore":      "SG",
			"China":          "CN",
			"India":          "IN",
		},
	}
}

// Search queries the provider's search endpoint for an ISIN, symbol or
// free-text description and extracts the candidate symbols from the
// result page. Individual malformed rows are dropped silently; only
// transport errors propagate.
func (c *Client) Search(ctx context.Context, query string) ([]Symbol, error) {
	resp, err := c.Get(ctx, "/data/search", map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	symbols := extractSymbols(doc, finalURL(resp), query, DefaultExtractConfig())
	c.log.WithFields(logrus.Fields{"query": query, "results": len(symbols)}).Debug("search")

	return symbols, nil
}

// extractSymbols pulls candidate symbols out of a parsed search result
// page. Results are grouped by asset class in tab panels or section
// containers; a page with neither is either a redirect straight to a
// single security's tearsheet or a flat document treated as one panel.
func extractSymbols(doc *goquery.Document, pageURL, query string, cfg ExtractConfig) []Symbol {
	panels := doc.Find(`div[role="tabpanel"], div.mod-search-results__section`)

	if panels.Length() == 0 {
		if strings.Contains(pageURL, "tearsheet") {
			if sym, ok := tearsheetSymbol(doc, pageURL, query); ok {
				return []Symbol{sym}
			}
		}
		panels = doc.Selection
	}

	var results []Symbol
	panels.Each(func(_ int, panel *goquery.Selection) {
		results = append(results, extractPanel(panel, cfg)...)
	})

	return results
}

// tearsheetSymbol handles a search that redirected to a security detail
// page. The ticker comes from the "s" query parameter; the name from
// the tearsheet heading, defaulting to the original query.
func tearsheetSymbol(doc *goquery.Document, pageURL, query string) (Symbol, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Symbol{}, false
	}
	code := u.Query().Get("s")
	if code == "" {
		return Symbol{}, false
	}

	name := strings.TrimSpace(doc.Find("h1.mod-tearsheet-overview__header__name").First().Text())
	if name == "" {
		name = query
	}

	return Symbol{Ticker: code, Name: name}, true
}

// extractPanel extracts the result rows of one asset-class panel.
func extractPanel(panel *goquery.Selection, cfg ExtractConfig) []Symbol {
	assetClass := ""
	if id, ok := panel.Attr("id"); ok {
		assetClass = cfg.AssetClassLabels[id]
	}
	if assetClass == "" {
		header := strings.TrimSpace(panel.Find("h3").First().Text())
		if header != "" {
			if mapped, ok := cfg.AssetClassLabels[header]; ok {
				assetClass = mapped
			} else {
				assetClass = header
			}
		}
	}

	var symbols []Symbol
	panel.Find("table.mod-ui-table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 2 {
			return
		}

		name := strings.TrimSpace(cols.Eq(0).Text())
		ticker := strings.TrimSpace(cols.Eq(1).Text())
		if ticker == "" {
			return
		}

		exchange := ""
		country := ""
		if cols.Length() > 2 {
			exchange = strings.TrimSpace(cols.Eq(2).Text())
		}
		if cols.Length() > 3 {
			country = cfg.CountryCodes[strings.TrimSpace(cols.Eq(3).Text())]
		}

		sym, ok := buildSymbol(Symbol{
			Ticker:     ticker,
			Name:       name,
			Exchange:   exchange,
			Country:    country,
			Currency:   currencyFromTicker(ticker),
			AssetClass: assetClass,
		})
		if ok {
			symbols = append(symbols, sym)
		}
	})

	return symbols
}

// buildSymbol validates a candidate through a list of progressively
// more lenient construction attempts: first as extracted, then with the
// inferred currency cleared. A row failing every attempt is dropped
// without aborting the extraction.
func buildSymbol(candidate Symbol) (Symbol, bool) {
	relaxed := candidate
	relaxed.Currency = ""

	for _, attempt := range []Symbol{candidate, relaxed} {
		if attempt.validate() == nil {
			return attempt, true
		}
	}

	return Symbol{}, false
}

func (s Symbol) validate() error {
	if s.Ticker == "" {
		return fmt.Errorf("symbol without ticker")
	}
	if s.Name == "" {
		return fmt.Errorf("symbol %s without name", s.Ticker)
	}
	if s.Currency != "" && !isCurrencyCode(s.Currency) {
		return fmt.Errorf("symbol %s: invalid currency %q", s.Ticker, s.Currency)
	}
	if s.Country != "" && len(s.Country) != 2 {
		return fmt.Errorf("symbol %s: invalid country %q", s.Ticker, s.Country)
	}
	return nil
}

// currencyFromTicker infers the trade currency from the last colon
// segment of an exchange-qualified ticker, e.g. "4GLD:GER:EUR" -> EUR.
// Requiring at least three segments avoids false positives from short
// exchange codes in SYMBOL:EXCHANGE tickers.
func currencyFromTicker(ticker string) string {
	parts := strings.Split(ticker, ":")
	if len(parts) < 3 {
		return ""
	}
	last := strings.ToUpper(parts[len(parts)-1])
	if isCurrencyCode(last) {
		return last
	}
	return ""
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
