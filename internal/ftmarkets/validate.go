package ftmarkets

import (
	"time"

	"github.com/shopspring/decimal"
)

// closeTolerance is the relative tolerance applied when only a close
// price is available to check a target price against.
var closeTolerance = decimal.NewFromFloat(0.05)

// maxDayOffset bounds the nearest-candle fallback search around the
// target date.
const maxDayOffset = 3

// PriceMatches reports whether a history is consistent with the
// security having traded at targetPrice on targetDate. It looks for a
// candle on the exact calendar date, falling back to the nearest candle
// within three days. When the candle carries both high and low the
// inclusive range check is authoritative; otherwise a close price
// within 5% of the target counts as a match. Pure, performs no I/O.
func PriceMatches(hist History, targetDate time.Time, targetPrice decimal.Decimal) bool {
	candle, ok := NearestCandle(hist, targetDate)
	if !ok {
		return false
	}

	if candle.High != nil && candle.Low != nil {
		// Authoritative: the close check is not consulted when a
		// high/low range is available.
		return candle.Low.LessThanOrEqual(targetPrice) && targetPrice.LessThanOrEqual(*candle.High)
	}

	if candle.Close != nil && targetPrice.IsPositive() {
		diff := candle.Close.Sub(targetPrice).Abs()
		return diff.Div(targetPrice).LessThan(closeTolerance)
	}

	return false
}

// NearestCandle finds the candle on the target calendar date, or the
// one with the smallest absolute day offset within three days of it.
// Ties keep the first candle encountered in the history's ordering.
func NearestCandle(hist History, target time.Time) (Candle, bool) {
	for _, c := range hist.Candles {
		if sameCalendarDay(c.Date, target) {
			return c, true
		}
	}

	best := Candle{}
	bestOffset := -1
	for _, c := range hist.Candles {
		offset := dayOffset(c.Date, target)
		if offset > maxDayOffset {
			continue
		}
		if bestOffset == -1 || offset < bestOffset {
			best = c
			bestOffset = offset
		}
	}

	return best, bestOffset != -1
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dayOffset is the absolute distance in calendar days, ignoring
// time-of-day.
func dayOffset(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	diff := int(da.Sub(db).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
