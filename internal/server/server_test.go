package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/broker"
	"SignalDesk/internal/executor"
	"SignalDesk/internal/ledger"
	"SignalDesk/internal/model"
	"SignalDesk/internal/rules"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	paper := broker.NewPaperBroker(nil)
	paper.SeedSpot("MSFT", decimal.NewFromInt(100))
	paper.FillAfterAttempts = 1

	lg := ledger.NewMemoryLedger()
	rm, err := rules.NewManager(lg)
	if err != nil {
		t.Fatal(err)
	}
	exec := executor.New(paper, lg, rm, executor.FillPolicy{
		MaxAttempts:     14,
		PollInterval:    time.Millisecond,
		PollsPerAttempt: 1,
	})
	s := New(":0", exec, lg, rm)
	return s, s.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

const executeBody = `{
	"platform": "discord",
	"signal": {
		"ticker": "msft",
		"direction": "BUY",
		"option_type": "CALL",
		"strike": 100,
		"purchase_price": 1.00,
		"position_size": 1,
		"title": "MSFT day trade"
	}
}`

func TestHandleExecute_Success(t *testing.T) {
	_, h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/execute", executeBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp executeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error %q at step %d", resp.Error, resp.StepFailed)
	}
	if resp.OrderID == "" {
		t.Error("order id missing")
	}
	// default budget 350 against an ATM ask of 1.10 buys three contracts
	if resp.PositionSize != 3 {
		t.Errorf("position size = %d, want 3", resp.PositionSize)
	}
	if resp.ExpirationDate == "" {
		t.Error("expiration date missing")
	}
	if resp.FillAttempts < 1 {
		t.Errorf("fill attempts = %d", resp.FillAttempts)
	}
	if len(resp.Log) == 0 {
		t.Error("execution log missing")
	}
}

func TestHandleExecute_FailureShape(t *testing.T) {
	_, h := newTestServer(t)

	body := strings.Replace(executeBody, `"ticker": "msft"`, `"ticker": ""`, 1)
	w := doJSON(t, h, http.MethodPost, "/api/execute", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp executeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("expected failure")
	}
	if resp.StepFailed != 1 {
		t.Errorf("step failed = %d, want 1", resp.StepFailed)
	}
	if resp.Error == "" {
		t.Error("error message missing")
	}
}

func TestHandleExecute_BadBody(t *testing.T) {
	_, h := newTestServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/execute", `{"signal": {"position_size": "jumbo"`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	_, h := newTestServer(t)

	// empty ledger still returns a JSON array
	w := doJSON(t, h, http.MethodGet, "/api/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty history = %s, want []", got)
	}

	doJSON(t, h, http.MethodPost, "/api/execute", executeBody)

	w = doJSON(t, h, http.MethodGet, "/api/history?limit=10", "")
	var recs []*model.ExecutionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("history length = %d", len(recs))
	}
	if recs[0].Ticker != "MSFT" || recs[0].Platform != "discord" {
		t.Errorf("record = %+v", recs[0])
	}

	w = doJSON(t, h, http.MethodGet, "/api/history?limit=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/history?platform=telegram", "")
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("platform filter leaked %d records", len(recs))
	}
}

func TestHandleDeleteExecution(t *testing.T) {
	_, h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/execute", executeBody)

	w := doJSON(t, h, http.MethodGet, "/api/history", "")
	var recs []*model.ExecutionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("history length = %d", len(recs))
	}

	w = doJSON(t, h, http.MethodDelete, "/api/history/"+recs[0].ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodDelete, "/api/history/"+recs[0].ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestHandleClearHistory(t *testing.T) {
	_, h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/execute", executeBody)
	doJSON(t, h, http.MethodPost, "/api/execute", executeBody)

	w := doJSON(t, h, http.MethodDelete, "/api/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["deleted"] != 2 {
		t.Errorf("deleted = %d, want 2", resp["deleted"])
	}

	w = doJSON(t, h, http.MethodGet, "/api/history", "")
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("history after clear = %s", got)
	}
}

func TestBudgetFilters_RoundTrip(t *testing.T) {
	_, h := newTestServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/budget-filters", "")
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("initial filters = %s, want []", got)
	}

	body := `[
		{"id": "vip", "match": "VIP", "budget": 500, "lotto_budget": 150},
		{"id": "all", "match": "", "budget": 200, "lotto_budget": 75}
	]`
	w = doJSON(t, h, http.MethodPost, "/api/budget-filters", body)
	if w.Code != http.StatusOK {
		t.Fatalf("post status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/budget-filters", "")
	var got []model.BudgetRule
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Match != "VIP" {
		t.Fatalf("filters = %+v", got)
	}
	if !got[0].Budget.Equal(decimal.NewFromInt(500)) {
		t.Errorf("budget = %s", got[0].Budget)
	}

	// replace-whole-list semantics
	w = doJSON(t, h, http.MethodPost, "/api/budget-filters", "[]")
	if w.Code != http.StatusOK {
		t.Fatalf("replace status = %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/api/budget-filters", "")
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("filters after replace = %s", got)
	}
}

func TestSellingFilters_RoundTrip(t *testing.T) {
	_, h := newTestServer(t)

	body := `[{"id": "s1", "match": "swing", "sell_percent": 60, "profit_multiplier": 1.5}]`
	w := doJSON(t, h, http.MethodPost, "/api/selling-filters", body)
	if w.Code != http.StatusOK {
		t.Fatalf("post status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/selling-filters", "")
	var got []model.SellingRule
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SellPercent != 60 {
		t.Fatalf("filters = %+v", got)
	}
}

func TestSellingFilters_BadBody(t *testing.T) {
	_, h := newTestServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/selling-filters", `{"not": "a list"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
