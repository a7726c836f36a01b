package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// TradierAdapter talks to a Tradier-compatible brokerage REST API.
type TradierAdapter struct {
	client    *resty.Client
	accountID string
}

// NewTradierAdapter builds the HTTP adapter. baseURL selects the sandbox or
// production host; the access token is sent as a bearer header on every call.
func NewTradierAdapter(baseURL, accessToken, accountID string) *TradierAdapter {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Authorization", "Bearer "+accessToken)
	client.SetHeader("Accept", "application/json")
	return &TradierAdapter{client: client, accountID: accountID}
}

func (t *TradierAdapter) Name() string { return "tradier" }

func (t *TradierAdapter) GetExpirations(ctx context.Context, ticker string) ([]time.Time, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":          ticker,
			"includeAllRoots": "true",
		}).
		Get("/v1/markets/options/expirations")
	if err != nil {
		return nil, fmt.Errorf("fetch expirations for %s: %w", ticker, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch expirations for %s: status %d: %s", ticker, resp.StatusCode(), resp.String())
	}

	var body struct {
		Expirations struct {
			Date []string `json:"date"`
		} `json:"expirations"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode expirations: %w", err)
	}

	dates := make([]time.Time, 0, len(body.Expirations.Date))
	for _, d := range body.Expirations.Date {
		ts, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		dates = append(dates, ts)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// tradierOption is the chain entry shape returned by the markets API.
type tradierOption struct {
	Symbol         string  `json:"symbol"`
	Strike         float64 `json:"strike"`
	OptionType     string  `json:"option_type"` // "call" | "put"
	ExpirationDate string  `json:"expiration_date"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Last           float64 `json:"last"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	Greeks         *struct {
		MidIV float64 `json:"mid_iv"`
	} `json:"greeks"`
}

func (t *TradierAdapter) GetChain(ctx context.Context, ticker string, expiration time.Time, optType model.OptionType) ([]model.OptionContract, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     ticker,
			"expiration": expiration.Format("2006-01-02"),
			"greeks":     "true",
		}).
		Get("/v1/markets/options/chains")
	if err != nil {
		return nil, fmt.Errorf("fetch chain %s %s: %w", ticker, expiration.Format("2006-01-02"), err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch chain %s: status %d: %s", ticker, resp.StatusCode(), resp.String())
	}

	var body struct {
		Options struct {
			Option []tradierOption `json:"option"`
		} `json:"options"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode chain: %w", err)
	}

	want := "call"
	if optType == model.OptionPut {
		want = "put"
	}
	var out []model.OptionContract
	for _, o := range body.Options.Option {
		if o.OptionType != want {
			continue
		}
		exp, _ := time.Parse("2006-01-02", o.ExpirationDate)
		c := model.OptionContract{
			Symbol:       o.Symbol,
			Strike:       decimal.NewFromFloat(o.Strike),
			Expiration:   exp,
			Type:         optType,
			Bid:          decimal.NewFromFloat(o.Bid),
			Ask:          decimal.NewFromFloat(o.Ask),
			Last:         decimal.NewFromFloat(o.Last),
			Volume:       o.Volume,
			OpenInterest: o.OpenInterest,
		}
		if o.Greeks != nil {
			c.ImpliedVol = o.Greeks.MidIV
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *TradierAdapter) GetSpot(ctx context.Context, ticker string) (decimal.Decimal, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", ticker).
		Get("/v1/markets/quotes")
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch quote %s: %w", ticker, err)
	}
	if resp.StatusCode() != 200 {
		return decimal.Zero, fmt.Errorf("fetch quote %s: status %d", ticker, resp.StatusCode())
	}
	var body struct {
		Quotes struct {
			Quote struct {
				Last float64 `json:"last"`
			} `json:"quote"`
		} `json:"quotes"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return decimal.Zero, fmt.Errorf("decode quote: %w", err)
	}
	return decimal.NewFromFloat(body.Quotes.Quote.Last), nil
}

func (t *TradierAdapter) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	side := "buy_to_open"
	if req.Direction == model.DirectionSell {
		side = "sell_to_close"
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"class":         "option",
			"symbol":        req.Ticker,
			"option_symbol": req.Symbol,
			"side":          side,
			"quantity":      strconv.Itoa(req.Quantity),
			"type":          "limit",
			"duration":      "day",
			"price":         req.LimitPrice.StringFixed(2),
		}).
		Post(fmt.Sprintf("/v1/accounts/%s/orders", t.accountID))
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}
	var body struct {
		Order struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	return strconv.FormatInt(body.Order.ID, 10), nil
}

func (t *TradierAdapter) PollFill(ctx context.Context, orderID string) (*OrderState, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/v1/accounts/%s/orders/%s", t.accountID, orderID))
	if err != nil {
		return nil, fmt.Errorf("poll order %s: %w", orderID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("poll order %s: status %d", orderID, resp.StatusCode())
	}
	var body struct {
		Order struct {
			ID           int64   `json:"id"`
			Status       string  `json:"status"`
			ExecQuantity float64 `json:"exec_quantity"`
			AvgFillPrice float64 `json:"avg_fill_price"`
			Reason       string  `json:"reason_description"`
		} `json:"order"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode order status: %w", err)
	}

	state := &OrderState{
		ID:           orderID,
		FilledQty:    int(body.Order.ExecQuantity),
		AvgFillPrice: decimal.NewFromFloat(body.Order.AvgFillPrice),
		RejectReason: body.Order.Reason,
	}
	switch body.Order.Status {
	case "filled":
		state.Status = OrderFilled
	case "rejected", "error", "expired":
		state.Status = OrderRejected
	case "canceled":
		state.Status = OrderCanceled
	default:
		state.Status = OrderOpen
	}
	return state, nil
}

func (t *TradierAdapter) CancelReplace(ctx context.Context, orderID string, newPrice decimal.Decimal) (string, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"type":  "limit",
			"price": newPrice.StringFixed(2),
		}).
		Put(fmt.Sprintf("/v1/accounts/%s/orders/%s", t.accountID, orderID))
	if err != nil {
		return "", fmt.Errorf("cancel/replace order %s: %w", orderID, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("cancel/replace order %s: status %d: %s", orderID, resp.StatusCode(), resp.String())
	}
	var body struct {
		Order struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("decode replace response: %w", err)
	}
	if body.Order.ID == 0 {
		return orderID, nil
	}
	return strconv.FormatInt(body.Order.ID, 10), nil
}

func (t *TradierAdapter) CancelOrder(ctx context.Context, orderID string) error {
	resp, err := t.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/v1/accounts/%s/orders/%s", t.accountID, orderID))
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("cancel order %s: status %d", orderID, resp.StatusCode())
	}
	return nil
}
