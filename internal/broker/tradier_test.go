package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// tradierStub serves canned Tradier API responses and records request shapes.
func tradierStub(t *testing.T) (*httptest.Server, *TradierAdapter, map[string]*http.Request) {
	t.Helper()
	seen := make(map[string]*http.Request)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/markets/options/expirations", func(w http.ResponseWriter, r *http.Request) {
		seen["expirations"] = r
		w.Write([]byte(`{"expirations":{"date":["2026-12-18","2026-11-20","2027-01-15"]}}`))
	})
	mux.HandleFunc("/v1/markets/options/chains", func(w http.ResponseWriter, r *http.Request) {
		seen["chains"] = r
		w.Write([]byte(`{"options":{"option":[
			{"symbol":"MSFT261218C00100000","strike":100,"option_type":"call","expiration_date":"2026-12-18","bid":1.90,"ask":2.10,"last":2.00,"volume":120,"open_interest":900,"greeks":{"mid_iv":0.31}},
			{"symbol":"MSFT261218P00100000","strike":100,"option_type":"put","expiration_date":"2026-12-18","bid":1.50,"ask":1.70,"last":1.60,"volume":80,"open_interest":400}
		]}}`))
	})
	mux.HandleFunc("/v1/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		seen["quotes"] = r
		w.Write([]byte(`{"quotes":{"quote":{"last":101.25}}}`))
	})
	mux.HandleFunc("/v1/accounts/acct1/orders", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		seen["place"] = r
		w.Write([]byte(`{"order":{"id":4217,"status":"ok"}}`))
	})
	mux.HandleFunc("/v1/accounts/acct1/orders/4217", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.Method {
		case http.MethodGet:
			seen["poll"] = r
			w.Write([]byte(`{"order":{"id":4217,"status":"filled","exec_quantity":2,"avg_fill_price":1.95}}`))
		case http.MethodPut:
			seen["replace"] = r
			w.Write([]byte(`{"order":{"id":4218}}`))
		case http.MethodDelete:
			seen["cancel"] = r
			w.Write([]byte(`{"order":{"id":4217,"status":"ok"}}`))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewTradierAdapter(srv.URL, "test-token", "acct1"), seen
}

func TestTradier_GetExpirations(t *testing.T) {
	_, adapter, seen := tradierStub(t)

	dates, err := adapter.GetExpirations(context.Background(), "MSFT")
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 3 {
		t.Fatalf("got %d dates", len(dates))
	}
	// sorted ascending regardless of API order
	if !dates[0].Equal(time.Date(2026, time.November, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first date = %s", dates[0])
	}
	if got := seen["expirations"].Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("authorization header = %q", got)
	}
}

func TestTradier_GetChainFiltersType(t *testing.T) {
	_, adapter, seen := tradierStub(t)

	exp := time.Date(2026, time.December, 18, 0, 0, 0, 0, time.UTC)
	chain, err := adapter.GetChain(context.Background(), "MSFT", exp, model.OptionCall)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 {
		t.Fatalf("expected only the call, got %d contracts", len(chain))
	}
	c := chain[0]
	if c.Symbol != "MSFT261218C00100000" || !c.Strike.Equal(decimal.NewFromInt(100)) {
		t.Errorf("contract = %+v", c)
	}
	if !c.Bid.Equal(decimal.NewFromFloat(1.90)) || !c.Ask.Equal(decimal.NewFromFloat(2.10)) {
		t.Errorf("quote = bid %s ask %s", c.Bid, c.Ask)
	}
	if c.ImpliedVol != 0.31 {
		t.Errorf("implied vol = %v", c.ImpliedVol)
	}
	if got := seen["chains"].URL.Query().Get("expiration"); got != "2026-12-18" {
		t.Errorf("expiration param = %q", got)
	}
}

func TestTradier_GetSpot(t *testing.T) {
	_, adapter, _ := tradierStub(t)
	spot, err := adapter.GetSpot(context.Background(), "MSFT")
	if err != nil {
		t.Fatal(err)
	}
	if !spot.Equal(decimal.NewFromFloat(101.25)) {
		t.Errorf("spot = %s", spot)
	}
}

func TestTradier_OrderLifecycle(t *testing.T) {
	_, adapter, seen := tradierStub(t)

	id, err := adapter.PlaceOrder(context.Background(), OrderRequest{
		Ticker:     "MSFT",
		Symbol:     "MSFT261218C00100000",
		Direction:  model.DirectionBuy,
		Quantity:   2,
		LimitPrice: decimal.NewFromFloat(1.90),
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "4217" {
		t.Errorf("order id = %s", id)
	}
	form := seen["place"].PostForm
	if form.Get("side") != "buy_to_open" || form.Get("class") != "option" {
		t.Errorf("order form = %v", form)
	}
	if form.Get("price") != "1.90" || form.Get("quantity") != "2" {
		t.Errorf("order form = %v", form)
	}

	state, err := adapter.PollFill(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != OrderFilled || state.FilledQty != 2 {
		t.Errorf("state = %+v", state)
	}
	if !state.AvgFillPrice.Equal(decimal.NewFromFloat(1.95)) {
		t.Errorf("fill price = %s", state.AvgFillPrice)
	}

	newID, err := adapter.CancelReplace(context.Background(), id, decimal.NewFromFloat(1.95))
	if err != nil {
		t.Fatal(err)
	}
	if newID != "4218" {
		t.Errorf("replacement id = %s", newID)
	}
	if got := seen["replace"].PostForm.Get("price"); got != "1.95" {
		t.Errorf("replace price = %q", got)
	}

	if err := adapter.CancelOrder(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if seen["cancel"] == nil {
		t.Error("cancel request never sent")
	}
}

func TestTradier_SellSide(t *testing.T) {
	_, adapter, seen := tradierStub(t)

	_, err := adapter.PlaceOrder(context.Background(), OrderRequest{
		Ticker:     "MSFT",
		Symbol:     "MSFT261218C00100000",
		Direction:  model.DirectionSell,
		Quantity:   1,
		LimitPrice: decimal.NewFromFloat(2.50),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := seen["place"].PostForm.Get("side"); got != "sell_to_close" {
		t.Errorf("side = %q, want sell_to_close", got)
	}
}

func TestTradier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	adapter := NewTradierAdapter(srv.URL, "bad-token", "acct1")

	if _, err := adapter.GetExpirations(context.Background(), "MSFT"); err == nil {
		t.Error("expected error on 401")
	}
	if _, err := adapter.GetSpot(context.Background(), "MSFT"); err == nil {
		t.Error("expected error on 401")
	}
}
