package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/broker"
	"SignalDesk/internal/model"
)

// MaxFillAttempts is the hard ceiling on submit/poll/adjust cycles.
const MaxFillAttempts = 14

// FillPolicy tunes the incremental fill loop. The price-adjustment strategy
// walks the limit from the near touch toward the opposing touch in equal
// increments across the attempt budget.
type FillPolicy struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollsPerAttempt int           `yaml:"polls_per_attempt"`
}

// DefaultFillPolicy matches the observed production behavior.
func DefaultFillPolicy() FillPolicy {
	return FillPolicy{
		MaxAttempts:     MaxFillAttempts,
		PollInterval:    2 * time.Second,
		PollsPerAttempt: 3,
	}
}

func (p FillPolicy) normalized() FillPolicy {
	if p.MaxAttempts <= 0 || p.MaxAttempts > MaxFillAttempts {
		p.MaxAttempts = MaxFillAttempts
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 2 * time.Second
	}
	if p.PollsPerAttempt <= 0 {
		p.PollsPerAttempt = 3
	}
	return p
}

type fillResult struct {
	OrderID   string
	FilledQty int
	FillPrice decimal.Decimal
	Attempts  int
}

// priceForAttempt computes the limit price for a given 1-based attempt.
// Buying walks bid -> ask, selling walks ask -> bid, clamped at the opposing
// touch and rounded to cents.
func priceForAttempt(c model.OptionContract, dir model.Direction, attempt, maxAttempts int) decimal.Decimal {
	near, far := c.Bid, c.Ask
	if dir == model.DirectionSell {
		near, far = c.Ask, c.Bid
	}
	if near.IsZero() && far.IsZero() {
		return c.Last.Round(2)
	}
	if maxAttempts <= 1 {
		return far.Round(2)
	}

	span := far.Sub(near)
	step := span.Div(decimal.NewFromInt(int64(maxAttempts - 1)))
	price := near.Add(step.Mul(decimal.NewFromInt(int64(attempt - 1)))).Round(2)

	// never walk past the opposing touch
	if dir == model.DirectionBuy && price.GreaterThan(far) {
		return far.Round(2)
	}
	if dir == model.DirectionSell && price.LessThan(far) {
		return far.Round(2)
	}
	return price
}

// fillIncrementally works an order to a fill across the bounded attempt loop.
// Every attempt emits one log line. Terminal outcomes: filled, rejected by
// the brokerage, cancelled by the operator, or attempts exhausted.
func fillIncrementally(ctx context.Context, adapter broker.Adapter, contract model.OptionContract,
	req broker.OrderRequest, policy FillPolicy, logf func(format string, args ...any)) (*fillResult, error) {

	policy = policy.normalized()

	req.LimitPrice = priceForAttempt(contract, req.Direction, 1, policy.MaxAttempts)
	orderID, err := adapter.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}

	for attempt := 1; ; attempt++ {
		logf("attempt %d/%d: working order %s at %s", attempt, policy.MaxAttempts, orderID, req.LimitPrice.StringFixed(2))

		state, err := awaitFill(ctx, adapter, orderID, policy)
		if err != nil {
			_ = adapter.CancelOrder(context.Background(), orderID)
			return &fillResult{OrderID: orderID, Attempts: attempt}, err
		}

		switch state.Status {
		case broker.OrderFilled:
			return &fillResult{
				OrderID:   orderID,
				FilledQty: state.FilledQty,
				FillPrice: state.AvgFillPrice,
				Attempts:  attempt,
			}, nil
		case broker.OrderRejected:
			reason := state.RejectReason
			if reason == "" {
				reason = "no reason given"
			}
			return &fillResult{OrderID: orderID, Attempts: attempt}, fmt.Errorf("%w: %s", ErrOrderRejected, reason)
		case broker.OrderCanceled:
			return &fillResult{OrderID: orderID, Attempts: attempt}, fmt.Errorf("%w: order cancelled at brokerage", ErrOrderRejected)
		}

		if attempt >= policy.MaxAttempts {
			_ = adapter.CancelOrder(context.Background(), orderID)
			return &fillResult{OrderID: orderID, Attempts: attempt},
				fmt.Errorf("%w: %d attempts, last price %s", ErrFillExhausted, attempt, req.LimitPrice.StringFixed(2))
		}

		req.LimitPrice = priceForAttempt(contract, req.Direction, attempt+1, policy.MaxAttempts)
		newID, err := adapter.CancelReplace(ctx, orderID, req.LimitPrice)
		if err != nil {
			return &fillResult{OrderID: orderID, Attempts: attempt}, fmt.Errorf("%w: cancel/replace failed: %v", ErrOrderRejected, err)
		}
		orderID = newID
	}
}

// awaitFill polls the order for one attempt's poll budget. Returns the last
// observed state; an open order after the budget means "adjust and retry".
func awaitFill(ctx context.Context, adapter broker.Adapter, orderID string, policy FillPolicy) (*broker.OrderState, error) {
	var last *broker.OrderState
	for i := 0; i < policy.PollsPerAttempt; i++ {
		state, err := adapter.PollFill(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("%w: poll failed: %v", ErrOrderRejected, err)
		}
		last = state
		if state.Status != broker.OrderOpen {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		case <-time.After(policy.PollInterval):
		}
	}
	return last, nil
}
