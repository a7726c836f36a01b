package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// SpotSource supplies an underlying price for chain synthesis. The yahoo
// quote helper implements it; tests use a fixed map.
type SpotSource interface {
	Spot(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// PaperBroker simulates a brokerage in memory. Expirations are the next few
// Fridays, chains are synthesized around the spot price, and limit orders
// fill once the walked price crosses the synthetic ask (buy) or bid (sell).
// Used for dry runs and by most of the executor tests.
type PaperBroker struct {
	mu        sync.Mutex
	spots     map[string]decimal.Decimal
	orders    map[string]*paperOrder
	contracts map[string]model.OptionContract // last synthesized chain, by symbol
	quotes    SpotSource                      // optional live spot source

	// FillAfterAttempts forces the nth cancel/replace to fill regardless of
	// price, 0 fills on the first crossing poll, -1 never fills.
	FillAfterAttempts int
}

type paperOrder struct {
	req      OrderRequest
	contract model.OptionContract
	replaces int
	state    OrderState
}

// NewPaperBroker creates a paper broker. quotes may be nil, in which case
// unseeded tickers get a bootstrap price.
func NewPaperBroker(quotes SpotSource) *PaperBroker {
	return &PaperBroker{
		spots:     make(map[string]decimal.Decimal),
		orders:    make(map[string]*paperOrder),
		contracts: make(map[string]model.OptionContract),
		quotes:    quotes,
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// SeedSpot fixes the underlying price for a ticker.
func (p *PaperBroker) SeedSpot(ticker string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spots[strings.ToUpper(ticker)] = price
}

func (p *PaperBroker) GetSpot(ctx context.Context, ticker string) (decimal.Decimal, error) {
	p.mu.Lock()
	if s, ok := p.spots[strings.ToUpper(ticker)]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	if p.quotes != nil {
		if s, err := p.quotes.Spot(ctx, ticker); err == nil && s.IsPositive() {
			p.SeedSpot(ticker, s)
			return s, nil
		}
	}
	// bootstrap price if nothing seen yet
	s := decimal.NewFromInt(100)
	p.SeedSpot(ticker, s)
	return s, nil
}

// GetExpirations returns the next six Fridays.
func (p *PaperBroker) GetExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	for day.Weekday() != time.Friday {
		day = day.AddDate(0, 0, 1)
	}
	out := make([]time.Time, 0, 6)
	for i := 0; i < 6; i++ {
		out = append(out, day.AddDate(0, 0, 7*i))
	}
	return out, nil
}

// GetChain synthesizes strikes in $5 steps within 20% of spot. Premium is a
// crude intrinsic-plus-time value, enough for sizing and fill simulation.
func (p *PaperBroker) GetChain(ctx context.Context, ticker string, expiration time.Time, optType model.OptionType) ([]model.OptionContract, error) {
	spot, err := p.GetSpot(ctx, ticker)
	if err != nil {
		return nil, err
	}
	step := decimal.NewFromInt(5)
	low := spot.Mul(decimal.NewFromFloat(0.8)).Div(step).Floor().Mul(step)
	high := spot.Mul(decimal.NewFromFloat(1.2))

	var out []model.OptionContract
	for strike := low; strike.LessThanOrEqual(high); strike = strike.Add(step) {
		if !strike.IsPositive() {
			continue
		}
		var intrinsic decimal.Decimal
		itm := false
		if optType == model.OptionCall && spot.GreaterThan(strike) {
			intrinsic = spot.Sub(strike)
			itm = true
		} else if optType == model.OptionPut && strike.GreaterThan(spot) {
			intrinsic = strike.Sub(spot)
			itm = true
		}
		mid := intrinsic.Add(spot.Mul(decimal.NewFromFloat(0.01))).Round(2)
		spread := decimal.NewFromFloat(0.10)
		out = append(out, model.OptionContract{
			Symbol:       paperSymbol(ticker, expiration, optType, strike),
			Strike:       strike,
			Expiration:   expiration,
			Type:         optType,
			Bid:          mid.Sub(spread),
			Ask:          mid.Add(spread),
			Last:         mid,
			Volume:       100,
			OpenInterest: 500,
			InTheMoney:   itm,
		})
	}
	p.mu.Lock()
	for _, c := range out {
		p.contracts[c.Symbol] = c
	}
	p.mu.Unlock()
	return out, nil
}

func paperSymbol(ticker string, exp time.Time, optType model.OptionType, strike decimal.Decimal) string {
	cp := "C"
	if optType == model.OptionPut {
		cp = "P"
	}
	milli := strike.Mul(decimal.NewFromInt(1000)).IntPart()
	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(ticker), exp.Format("060102"), cp, milli)
}

func (p *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive")
	}
	id := uuid.New().String()
	p.mu.Lock()
	defer p.mu.Unlock()
	contract, ok := p.contracts[req.Symbol]
	if !ok {
		return "", fmt.Errorf("unknown contract %s (fetch the chain first)", req.Symbol)
	}
	ord := &paperOrder{
		req:      req,
		contract: contract,
		state:    OrderState{ID: id, Status: OrderOpen},
	}
	p.orders[id] = ord
	p.maybeFill(ord)
	return id, nil
}

// maybeFill marks the order filled when the limit crosses the opposing touch,
// or when the configured attempt count has been consumed.
func (p *PaperBroker) maybeFill(ord *paperOrder) {
	if p.FillAfterAttempts < 0 {
		return
	}
	crossed := false
	if ord.req.Direction == model.DirectionBuy {
		crossed = ord.req.LimitPrice.GreaterThanOrEqual(ord.contract.Ask)
	} else {
		crossed = ord.req.LimitPrice.LessThanOrEqual(ord.contract.Bid)
	}
	if crossed || (p.FillAfterAttempts > 0 && ord.replaces >= p.FillAfterAttempts) {
		ord.state.Status = OrderFilled
		ord.state.FilledQty = ord.req.Quantity
		ord.state.AvgFillPrice = ord.req.LimitPrice
	}
}

func (p *PaperBroker) PollFill(ctx context.Context, orderID string) (*OrderState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ord, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}
	state := ord.state
	return &state, nil
}

func (p *PaperBroker) CancelReplace(ctx context.Context, orderID string, newPrice decimal.Decimal) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ord, ok := p.orders[orderID]
	if !ok {
		return "", fmt.Errorf("unknown order %s", orderID)
	}
	if ord.state.Status != OrderOpen {
		return "", fmt.Errorf("order %s is %s, cannot replace", orderID, ord.state.Status)
	}
	ord.req.LimitPrice = newPrice
	ord.replaces++
	p.maybeFill(ord)
	return orderID, nil
}

func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ord, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	if ord.state.Status == OrderOpen {
		ord.state.Status = OrderCanceled
	}
	return nil
}
