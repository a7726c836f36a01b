package broker

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooSpot fetches live underlying prices from Yahoo Finance. It backs the
// paper broker's chain synthesis when no brokerage is configured.
type YahooSpot struct{}

func NewYahooSpot() *YahooSpot { return &YahooSpot{} }

func (y *YahooSpot) Spot(_ context.Context, ticker string) (decimal.Decimal, error) {
	q, err := quote.Get(ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return decimal.Zero, fmt.Errorf("yahoo quote %s: no price", ticker)
	}
	return decimal.NewFromFloat(q.RegularMarketPrice), nil
}
