package executor

import (
	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// matchContract selects the listed contract whose strike is nearest the
// requested one. When two strikes are equidistant from the target, the one
// closer to at-the-money wins; spot may be zero when no quote was available,
// which degrades the tie-break to the lower strike.
func matchContract(chain []model.OptionContract, target, spot decimal.Decimal) (model.OptionContract, error) {
	if len(chain) == 0 {
		return model.OptionContract{}, ErrNoStrikesListed
	}

	best := chain[0]
	bestDist := best.Strike.Sub(target).Abs()
	for _, c := range chain[1:] {
		dist := c.Strike.Sub(target).Abs()
		switch {
		case dist.LessThan(bestDist):
			best, bestDist = c, dist
		case dist.Equal(bestDist):
			if c.Strike.Sub(spot).Abs().LessThan(best.Strike.Sub(spot).Abs()) {
				best = c
			}
		}
	}
	return best, nil
}

// premiumFor returns the per-share premium used for sizing and as the fill
// loop's opposing touch: the ask when buying, the bid when selling, falling
// back to the midpoint when the book side is empty.
func premiumFor(c model.OptionContract, dir model.Direction) decimal.Decimal {
	if dir == model.DirectionBuy {
		if c.Ask.IsPositive() {
			return c.Ask
		}
	} else if c.Bid.IsPositive() {
		return c.Bid
	}
	return c.Mid()
}
