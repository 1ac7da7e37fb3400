package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ftmarkets/internal/config"
	"ftmarkets/internal/ftmarkets"
)

// cliDateFormats are the date layouts accepted on the command line,
// slightly wider than the resolver's own target-date formats.
var cliDateFormats = []string{"2006-01-02", "20060102", "02/01/2006"}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	logger := newLogger(cfg)

	rootCmd := &cobra.Command{
		Use:   "ftmarkets",
		Short: "ftmarkets - security lookup and price history from markets.ft.com",
		Long: `ftmarkets resolves security identifiers (ISIN, symbol or free-text
description) to canonical exchange-qualified tickers and fetches daily
OHLCV price history, scraping the markets.ft.com search and charting
endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.AddCommand(newLookupCmd(cfg, logger))
	rootCmd.AddCommand(newHistoryCmd(cfg, logger))
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", cfg.Debug, "Enable debug logging")

	return rootCmd
}

// newLogger configures the shared logger from config.
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// lookupOptions collects the lookup command flags.
type lookupOptions struct {
	isin       string
	symbol     string
	desc       string
	exchange   string
	currency   string
	country    string
	assetClass string
	limit      int
	format     string
	price      float64
	date       string
}

// newLookupCmd creates the lookup command.
func newLookupCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	opts := &lookupOptions{}

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Lookup a ticker symbol",
		Long: `Resolve an ISIN, symbol or description to a ranked list of matching
securities. Example:
  ftmarkets lookup --isin DE000A0S9GB0 --currency EUR --price 60.50 --date 2024-01-02`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, cfg, logger, opts)
		},
	}

	cmd.Flags().StringVar(&opts.isin, "isin", "", "ISIN of the security")
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "Symbol")
	cmd.Flags().StringVar(&opts.desc, "desc", "", "Description")
	cmd.Flags().StringVar(&opts.exchange, "exchange", "", "Preferred exchange")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "Filter by currency (e.g. EUR, USD)")
	cmd.Flags().StringVar(&opts.country, "country", "", "Filter by country (e.g. DE, US)")
	cmd.Flags().StringVar(&opts.assetClass, "asset-class", "", "Filter by asset class (ETF, Equity, Fund, Index)")
	cmd.Flags().IntVar(&opts.limit, "limit", 100, "Limit number of results (0 for all)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format (text, json, xml)")
	cmd.Flags().Float64Var(&opts.price, "price", 0, "Validation price")
	cmd.Flags().StringVar(&opts.date, "date", "", "Validation date")

	return cmd
}

func runLookup(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger, opts *lookupOptions) error {
	source := ftmarkets.NewSource(cfg, logger)

	req := ftmarkets.ResolveRequest{
		ISIN:        opts.isin,
		Symbol:      opts.symbol,
		Description: opts.desc,
		Currency:    opts.currency,
		Country:     opts.country,
		AssetClass:  opts.assetClass,
		TargetDate:  opts.date,
		Limit:       opts.limit,
	}
	if opts.exchange != "" {
		req.PreferredExchanges = []string{opts.exchange}
	}
	if cmd.Flags().Changed("price") {
		price := decimal.NewFromFloat(opts.price)
		req.TargetPrice = &price
	}

	symbols, err := source.Resolver().Resolve(context.Background(), req)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return errors.New("ticker not found")
	}

	return printSymbols(cmd.OutOrStdout(), symbols, opts.format)
}

// historyOptions collects the history command flags.
type historyOptions struct {
	isin     string
	symbol   string
	desc     string
	exchange string
	period   string
	price    float64
	date     string
}

// newHistoryCmd creates the history command.
func newHistoryCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Fetch history and validate",
		Long: `Resolve a security, print the tail of its daily OHLCV series and
optionally validate that it traded at a given price on a given date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, cfg, logger, opts)
		},
	}

	cmd.Flags().StringVar(&opts.isin, "isin", "", "ISIN of the security")
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "Symbol")
	cmd.Flags().StringVar(&opts.desc, "desc", "", "Description")
	cmd.Flags().StringVar(&opts.exchange, "exchange", "", "Preferred exchange")
	cmd.Flags().StringVar(&opts.period, "period", "1mo", "Period (e.g. 1mo, 1y)")
	cmd.Flags().Float64Var(&opts.price, "price", 0, "Validation price")
	cmd.Flags().StringVar(&opts.date, "date", "", "Validation date")

	return cmd
}

func runHistory(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger, opts *historyOptions) error {
	ctx := context.Background()
	source := ftmarkets.NewSource(cfg, logger)

	req := ftmarkets.ResolveRequest{
		ISIN:        opts.isin,
		Symbol:      opts.symbol,
		Description: opts.desc,
		TargetDate:  opts.date,
		Limit:       1,
	}
	if opts.exchange != "" {
		req.PreferredExchanges = []string{opts.exchange}
	}
	if cmd.Flags().Changed("price") {
		price := decimal.NewFromFloat(opts.price)
		req.TargetPrice = &price
	}

	symbols, err := source.Resolver().Resolve(ctx, req)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return errors.New("could not resolve ticker")
	}
	resolved := symbols[0]

	fmt.Fprintf(cmd.OutOrStdout(), "Resolved to: %s\n", resolved.Ticker)

	hist, err := source.History(ctx, resolved.Ticker, opts.period)
	if err != nil {
		return err
	}
	if len(hist.Candles) == 0 {
		return errors.New("no history found")
	}

	printHistoryTail(cmd.OutOrStdout(), hist, 5)

	if cmd.Flags().Changed("price") && opts.date != "" {
		return validateHistory(cmd, hist, opts.date, decimal.NewFromFloat(opts.price))
	}

	return nil
}

// validateHistory checks a fetched history against a (price, date) pair
// and reports the outcome, mirroring the resolver's matching policy.
func validateHistory(cmd *cobra.Command, hist ftmarkets.History, rawDate string, price decimal.Decimal) error {
	targetDate, ok := parseCLIDate(rawDate)
	if !ok {
		return fmt.Errorf("invalid date: %s", rawDate)
	}

	candle, found := ftmarkets.NearestCandle(hist, targetDate)
	if !found {
		return fmt.Errorf("date %s not found in history", rawDate)
	}
	if candle.Date.Format("2006-01-02") != targetDate.Format("2006-01-02") {
		fmt.Fprintf(cmd.OutOrStdout(), "Using nearest data from %s\n", candle.Date.Format("2006-01-02"))
	}

	if ftmarkets.PriceMatches(hist, targetDate, price) {
		fmt.Fprintln(cmd.OutOrStdout(), "VALIDATION PASSED")
		return nil
	}

	return fmt.Errorf("validation failed (Open=%s, High=%s, Low=%s, Close=%s)",
		formatPrice(candle.Open), formatPrice(candle.High),
		formatPrice(candle.Low), formatPrice(candle.Close))
}

func parseCLIDate(raw string) (time.Time, bool) {
	for _, layout := range cliDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ftmarkets v1.0.0")
		},
	}
}
