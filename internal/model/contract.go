package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionContract is one tradable contract from a fetched chain. It is
// ephemeral: fetched per execution, never persisted.
type OptionContract struct {
	Symbol       string          `json:"symbol"`
	Strike       decimal.Decimal `json:"strike"`
	Expiration   time.Time       `json:"expiration"`
	Type         OptionType      `json:"option_type"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	Last         decimal.Decimal `json:"last"`
	Volume       int64           `json:"volume"`
	OpenInterest int64           `json:"open_interest"`
	ImpliedVol   float64         `json:"implied_volatility"`
	InTheMoney   bool            `json:"in_the_money"`
}

// Mid returns the bid/ask midpoint, or the last price when the book is empty.
func (c OptionContract) Mid() decimal.Decimal {
	if c.Bid.IsZero() && c.Ask.IsZero() {
		return c.Last
	}
	return c.Bid.Add(c.Ask).Div(decimal.NewFromInt(2))
}
