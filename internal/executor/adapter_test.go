package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/broker"
	"SignalDesk/internal/model"
)

// fakeAdapter scripts brokerage behavior for tests. The fill engine's current
// attempt is replaces+1; FillAtAttempt <= 0 means the order never fills.
type fakeAdapter struct {
	mu sync.Mutex

	Expirations []time.Time
	ExpErr      error
	Chain       []model.OptionContract
	ChainErr    error
	Spot        decimal.Decimal

	FillAtAttempt int
	RejectReason  string // non-empty: reject on first poll
	PlaceErr      error

	placed   *broker.OrderRequest
	replaces int
	prices   []decimal.Decimal
	calls    map[string]int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{calls: make(map[string]int)}
}

func (f *fakeAdapter) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAdapter) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) GetExpirations(_ context.Context, _ string) ([]time.Time, error) {
	f.called("expirations")
	return f.Expirations, f.ExpErr
}

func (f *fakeAdapter) GetChain(_ context.Context, _ string, _ time.Time, _ model.OptionType) ([]model.OptionContract, error) {
	f.called("chain")
	return f.Chain, f.ChainErr
}

func (f *fakeAdapter) GetSpot(_ context.Context, _ string) (decimal.Decimal, error) {
	f.called("spot")
	return f.Spot, nil
}

func (f *fakeAdapter) PlaceOrder(_ context.Context, req broker.OrderRequest) (string, error) {
	f.called("place")
	if f.PlaceErr != nil {
		return "", f.PlaceErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = &req
	f.replaces = 0
	f.prices = []decimal.Decimal{req.LimitPrice}
	return "ord-1", nil
}

func (f *fakeAdapter) PollFill(_ context.Context, orderID string) (*broker.OrderState, error) {
	f.called("poll")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placed == nil {
		return nil, fmt.Errorf("no order placed")
	}
	if f.RejectReason != "" {
		return &broker.OrderState{ID: orderID, Status: broker.OrderRejected, RejectReason: f.RejectReason}, nil
	}
	attempt := f.replaces + 1
	if f.FillAtAttempt > 0 && attempt >= f.FillAtAttempt {
		return &broker.OrderState{
			ID:           orderID,
			Status:       broker.OrderFilled,
			FilledQty:    f.placed.Quantity,
			AvgFillPrice: f.prices[len(f.prices)-1],
		}, nil
	}
	return &broker.OrderState{ID: orderID, Status: broker.OrderOpen}, nil
}

func (f *fakeAdapter) CancelReplace(_ context.Context, orderID string, newPrice decimal.Decimal) (string, error) {
	f.called("replace")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	f.prices = append(f.prices, newPrice)
	return orderID, nil
}

func (f *fakeAdapter) CancelOrder(_ context.Context, _ string) error {
	f.called("cancel")
	return nil
}

func fastPolicy() FillPolicy {
	return FillPolicy{MaxAttempts: 14, PollInterval: time.Millisecond, PollsPerAttempt: 1}
}

func testContract(strike float64) model.OptionContract {
	return model.OptionContract{
		Symbol: "TST261218C00190000",
		Strike: decimal.NewFromFloat(strike),
		Bid:    decimal.NewFromFloat(1.90),
		Ask:    decimal.NewFromFloat(2.10),
		Last:   decimal.NewFromFloat(2.00),
	}
}
