package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of the trade.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "CALL"
	OptionPut  OptionType = "PUT"
)

// PositionSize is either a fixed contract count or the "lotto" sentinel,
// which selects the alternate lotto budget downstream.
type PositionSize struct {
	Lotto    bool
	Quantity int
}

// FixedSize returns a concrete contract-count position size.
func FixedSize(qty int) PositionSize { return PositionSize{Quantity: qty} }

// LottoSize returns the speculative "lotto" position size.
func LottoSize() PositionSize { return PositionSize{Lotto: true} }

func (p PositionSize) String() string {
	if p.Lotto {
		return "lotto"
	}
	return fmt.Sprintf("%d", p.Quantity)
}

// UnmarshalJSON accepts either a positive integer or the string "lotto".
func (p *PositionSize) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return fmt.Errorf("position size must be positive, got %d", n)
		}
		*p = PositionSize{Quantity: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("position size must be a number or \"lotto\"")
	}
	if !strings.EqualFold(strings.TrimSpace(s), "lotto") {
		return fmt.Errorf("unknown position size %q", s)
	}
	*p = PositionSize{Lotto: true}
	return nil
}

// MarshalJSON emits "lotto" or the integer quantity.
func (p PositionSize) MarshalJSON() ([]byte, error) {
	if p.Lotto {
		return json.Marshal("lotto")
	}
	return json.Marshal(p.Quantity)
}

// PartialDate is a signal's expiration hint. Year may be zero, meaning
// "unspecified": the resolver constructs the candidate in the current year and
// rolls forward when that date has already passed.
type PartialDate struct {
	Year  int        `json:"year,omitempty"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// IsZero reports whether no date hint was supplied at all.
func (d PartialDate) IsZero() bool { return d.Month == 0 && d.Day == 0 }

// Valid reports whether the supplied month/day form a plausible calendar date.
func (d PartialDate) Valid() bool {
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= 31
}

func (d PartialDate) String() string {
	if d.Year != 0 {
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
	return fmt.Sprintf("%02d/%02d", d.Month, d.Day)
}

// Signal is a parsed trade instruction, immutable once received.
type Signal struct {
	Ticker        string          `json:"ticker"`
	Direction     Direction       `json:"direction"`
	OptionType    OptionType      `json:"option_type"`
	Strike        decimal.Decimal `json:"strike"`
	PurchasePrice decimal.Decimal `json:"purchase_price"` // advisory only
	Size          PositionSize    `json:"position_size"`
	Expiration    PartialDate     `json:"expiration,omitempty"`
	Title         string          `json:"title"`
	Origin        string          `json:"origin,omitempty"`
}
