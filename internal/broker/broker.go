package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// OrderStatus is the brokerage-side state of a working order.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
	OrderCanceled OrderStatus = "canceled"
)

// OrderRequest describes a limit order on a single option contract.
type OrderRequest struct {
	Ticker     string
	Symbol     string // OCC option symbol
	Direction  model.Direction
	Quantity   int
	LimitPrice decimal.Decimal
}

// OrderState is a normalized view of an order returned by fill polling.
type OrderState struct {
	ID           string
	Status       OrderStatus
	FilledQty    int
	AvgFillPrice decimal.Decimal
	RejectReason string
}

// Adapter is the surface the executor needs from a brokerage. Implementations
// are a live HTTP client (tradier.go) and an in-memory paper broker
// (paper.go). All calls are blocking network operations bounded by ctx.
type Adapter interface {
	Name() string
	GetExpirations(ctx context.Context, ticker string) ([]time.Time, error)
	GetChain(ctx context.Context, ticker string, expiration time.Time, optType model.OptionType) ([]model.OptionContract, error)
	GetSpot(ctx context.Context, ticker string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	PollFill(ctx context.Context, orderID string) (*OrderState, error)
	CancelReplace(ctx context.Context, orderID string, newPrice decimal.Decimal) (newOrderID string, err error)
	CancelOrder(ctx context.Context, orderID string) error
}
