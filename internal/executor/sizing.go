package executor

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// contractMultiplier is the standard 100 shares per option contract.
var contractMultiplier = decimal.NewFromInt(100)

// sizePosition converts a dollar budget and per-share premium into a whole
// contract count: floor(budget / (premium * 100)). A result of zero is a
// BudgetInsufficient failure, never a silent clamp.
func sizePosition(budget, premium decimal.Decimal) (int, error) {
	if !premium.IsPositive() {
		return 0, fmt.Errorf("premium must be positive, got %s", premium)
	}
	perContract := premium.Mul(contractMultiplier)
	qty := int(budget.Div(perContract).IntPart())
	if qty < 1 {
		return 0, ErrBudgetInsufficient
	}
	return qty, nil
}
