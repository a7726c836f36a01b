package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// BudgetRuleSet is an ordered budget rule list. Resolution walks the list and
// the first rule whose Match substring occurs in the signal title wins; an
// empty Match matches any title. The set always behaves as if the hard-coded
// default rule trails the configured list, so resolution cannot fail.
type BudgetRuleSet []model.BudgetRule

// Resolve returns the dollar budget for a signal title. The lotto budget is
// returned when the signal requested a lotto-sized position.
func (s BudgetRuleSet) Resolve(title string, size model.PositionSize) decimal.Decimal {
	rule := firstMatch(s, title)
	if size.Lotto {
		return rule.LottoBudget
	}
	return rule.Budget
}

// Match returns the winning rule itself, for log lines that name the rule.
func (s BudgetRuleSet) Match(title string) model.BudgetRule {
	return firstMatch(s, title)
}

func firstMatch(rules []model.BudgetRule, title string) model.BudgetRule {
	lower := strings.ToLower(title)
	for _, r := range rules {
		if r.Match == "" || strings.Contains(lower, strings.ToLower(r.Match)) {
			return r
		}
	}
	return model.DefaultBudgetRule()
}

// SellingRuleSet is an ordered selling rule list with the same first-match
// semantics as BudgetRuleSet.
type SellingRuleSet []model.SellingRule

// Resolve returns the exit strategy for a signal title.
func (s SellingRuleSet) Resolve(title string) model.SellingRule {
	lower := strings.ToLower(title)
	for _, r := range s {
		if r.Match == "" || strings.Contains(lower, strings.ToLower(r.Match)) {
			return r
		}
	}
	return model.DefaultSellingRule()
}
