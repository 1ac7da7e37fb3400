package cli

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"ftmarkets/internal/ftmarkets"
)

// xmlResults wraps symbols for the XML output format.
type xmlResults struct {
	XMLName xml.Name           `xml:"Results"`
	Symbols []ftmarkets.Symbol `xml:"Symbol"`
}

// printSymbols writes resolved symbols in the requested format: plain
// tickers (text), full records (json, xml).
func printSymbols(w io.Writer, symbols []ftmarkets.Symbol, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(symbols)
	case "xml":
		data, err := xml.MarshalIndent(xmlResults{Symbols: symbols}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text":
		for _, s := range symbols {
			fmt.Fprintln(w, s.Ticker)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// printHistoryTail writes the last n candles of a history as a simple
// table.
func printHistoryTail(w io.Writer, hist ftmarkets.History, n int) {
	candles := hist.Candles
	if len(candles) > n {
		candles = candles[len(candles)-n:]
	}

	fmt.Fprintf(w, "%-12s %10s %10s %10s %10s %12s\n", "Date", "Open", "High", "Low", "Close", "Volume")
	for _, c := range candles {
		fmt.Fprintf(w, "%-12s %10s %10s %10s %10s %12s\n",
			c.Date.Format("2006-01-02"),
			formatPrice(c.Open), formatPrice(c.High),
			formatPrice(c.Low), formatPrice(c.Close),
			formatVolume(c.Volume))
	}
}

func formatPrice(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func formatVolume(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
