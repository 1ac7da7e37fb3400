package ftmarkets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// ErrXIDNotFound reports that a ticker could not be resolved to the
// provider's internal numeric identifier, without which the series
// endpoint cannot be queried.
var ErrXIDNotFound = errors.New("could not determine internal FT ID")

// periodDays maps a period token to the approximate day-count window
// requested from the series endpoint.
var periodDays = map[string]int{
	"1d":  2, // safety margin around weekends
	"1mo": 35,
	"3mo": 100,
	"6mo": 200,
	"1y":  365,
	"3y":  365 * 3,
	"5y":  365 * 5,
	"10y": 365 * 10,
	"max": 365 * 30,
}

// xidPattern matches xid:"123", xid="123" or "xid":"123" in raw page
// text, tolerating &quot;-escaped quoting.
var xidPattern = regexp.MustCompile(`(?:xid|&quot;xid&quot;)\s*[:=]\s*(?:["']|&quot;)?(\d+)(?:["']|&quot;)?`)

type seriesElement struct {
	Type   string `json:"Type"`
	Symbol string `json:"Symbol"`
}

type seriesRequest struct {
	Days              int             `json:"days"`
	DataNormalized    bool            `json:"dataNormalized"`
	DataPeriod        string          `json:"dataPeriod"`
	DataInterval      int             `json:"dataInterval"`
	Realtime          bool            `json:"realtime"`
	YFormat           string          `json:"yFormat"`
	TimeServiceFormat string          `json:"timeServiceFormat"`
	ReturnDateType    string          `json:"returnDateType"`
	Elements          []seriesElement `json:"elements"`
}

type seriesComponent struct {
	Type   string     `json:"Type"`
	Values []*float64 `json:"Values"`
}

type seriesResponse struct {
	Dates    []string `json:"Dates"`
	Elements []struct {
		Type            string            `json:"Type"`
		ComponentSeries []seriesComponent `json:"ComponentSeries"`
	} `json:"Elements"`
}

// History fetches the daily OHLCV series for a ticker over the given
// period token (1d, 1mo, 3mo, 6mo, 1y, 3y, 5y, 10y, max; unknown
// tokens fall back to one year). An empty series is a normal outcome,
// not an error. The returned symbol carries only the raw ticker; name
// enrichment from the summary page is not attempted.
func (c *Client) History(ctx context.Context, ticker, period string) (History, error) {
	hist := History{Symbol: Symbol{Ticker: ticker, Name: ticker}}

	xid, err := c.resolveXID(ctx, ticker)
	if err != nil {
		return hist, err
	}

	days, ok := periodDays[period]
	if !ok {
		days = 365
	}

	payload := seriesRequest{
		Days:              days,
		DataNormalized:    false,
		DataPeriod:        "Day",
		DataInterval:      1,
		Realtime:          false,
		YFormat:           "0.###",
		TimeServiceFormat: "JSON",
		ReturnDateType:    "ISO8601",
		Elements: []seriesElement{
			{Type: "price", Symbol: xid},
			{Type: "volume", Symbol: xid},
		},
	}

	resp, err := c.Post(ctx, "/data/chartapi/series", payload)
	if err != nil {
		return hist, err
	}

	var series seriesResponse
	if err := json.Unmarshal(resp.Body(), &series); err != nil {
		return hist, fmt.Errorf("parse series response: %w", err)
	}

	hist.Candles = buildCandles(series)
	c.log.WithField("ticker", ticker).WithField("candles", len(hist.Candles)).Debug("history")

	return hist, nil
}

// resolveXID requests the tearsheet summary page for a ticker and digs
// the internal identifier out of the embedded module configuration,
// falling back to a raw-text pattern match when the structured
// attribute is absent or unparseable.
func (c *Client) resolveXID(ctx context.Context, ticker string) (string, error) {
	resp, err := c.Get(ctx, "/data/equities/tearsheet/summary", map[string]string{"s": ticker})
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err == nil {
		if xid := xidFromModConfig(doc); xid != "" {
			return xid, nil
		}
	}

	if m := xidPattern.FindStringSubmatch(resp.String()); m != nil {
		return m[1], nil
	}

	return "", fmt.Errorf("ticker %s: %w", ticker, ErrXIDNotFound)
}

// xidFromModConfig scans div[data-mod-config] attributes for a JSON
// blob carrying an "xid" field.
func xidFromModConfig(doc *goquery.Document) string {
	xid := ""
	doc.Find("div[data-mod-config]").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		raw, ok := div.Attr("data-mod-config")
		if !ok || raw == "" {
			return true
		}

		var cfg map[string]interface{}
		if err := json.Unmarshal([]byte(html.UnescapeString(raw)), &cfg); err != nil {
			return true
		}

		switch v := cfg["xid"].(type) {
		case string:
			xid = v
		case float64:
			xid = strconv.FormatFloat(v, 'f', -1, 64)
		}

		return xid == ""
	})

	return xid
}

// buildCandles assembles candles from the parallel date and value
// arrays of a series response. Arrays shorter than the date axis yield
// nil values past their length; they never cause a misalignment.
func buildCandles(series seriesResponse) []Candle {
	if len(series.Dates) == 0 || len(series.Elements) == 0 {
		return nil
	}

	var price, volume []seriesComponent
	for _, el := range series.Elements {
		switch el.Type {
		case "price":
			price = el.ComponentSeries
		case "volume":
			volume = el.ComponentSeries
		}
	}
	if price == nil {
		return nil
	}

	opens := componentValues(price, "Open")
	highs := componentValues(price, "High")
	lows := componentValues(price, "Low")
	closes := componentValues(price, "Close")
	volumes := componentValues(volume, "Volume")

	candles := make([]Candle, 0, len(series.Dates))
	for i, raw := range series.Dates {
		date, ok := parseSeriesDate(raw)
		if !ok {
			continue
		}

		candles = append(candles, Candle{
			Date:   date,
			Open:   decimalAt(opens, i),
			High:   decimalAt(highs, i),
			Low:    decimalAt(lows, i),
			Close:  decimalAt(closes, i),
			Volume: volumeAt(volumes, i),
		})
	}

	return candles
}

func componentValues(components []seriesComponent, typ string) []*float64 {
	for _, c := range components {
		if c.Type == typ {
			return c.Values
		}
	}
	return nil
}

func decimalAt(values []*float64, i int) *decimal.Decimal {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	d := decimal.NewFromFloat(*values[i])
	return &d
}

func volumeAt(values []*float64, i int) *int64 {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	v := int64(*values[i])
	return &v
}

// parseSeriesDate accepts the ISO8601 variants the series endpoint is
// known to emit.
func parseSeriesDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
