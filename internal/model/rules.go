package model

import "github.com/shopspring/decimal"

// BudgetRule maps signal titles to a dollar budget. Rules are evaluated in
// list order; the first rule whose Match substring occurs in the title
// (case-insensitive, empty matches everything) wins.
type BudgetRule struct {
	ID          string          `json:"id"`
	Match       string          `json:"match"`
	Budget      decimal.Decimal `json:"budget"`
	LottoBudget decimal.Decimal `json:"lotto_budget"`
}

// SellingRule maps signal titles to an exit strategy: sell SellPercent of the
// position once the price reaches ProfitMultiplier times the fill price.
type SellingRule struct {
	ID               string          `json:"id"`
	Match            string          `json:"match"`
	SellPercent      int             `json:"sell_percent"`      // 1-100
	ProfitMultiplier decimal.Decimal `json:"profit_multiplier"` // > 1.0
}

// Hard-coded fallbacks applied when no configured rule matches. Modeled as an
// always-present trailing catch-all rather than a special-cased branch.
func DefaultBudgetRule() BudgetRule {
	return BudgetRule{
		ID:          "default",
		Match:       "",
		Budget:      decimal.NewFromInt(350),
		LottoBudget: decimal.NewFromInt(100),
	}
}

func DefaultSellingRule() SellingRule {
	return SellingRule{
		ID:               "default",
		Match:            "",
		SellPercent:      80,
		ProfitMultiplier: decimal.NewFromFloat(1.3),
	}
}
