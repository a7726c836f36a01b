package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SignalDesk/internal/broker"
	"SignalDesk/internal/ledger"
	"SignalDesk/internal/metrics"
	"SignalDesk/internal/model"
	"SignalDesk/internal/rules"
)

// Executor turns a parsed signal into a filled option order through the
// six-step pipeline, recording every step in the ledger. Executions are
// independent units of work: many can run concurrently, sharing only the
// read-mostly rule sets and the append-only ledger.
type Executor struct {
	Broker broker.Adapter
	Ledger ledger.Ledger
	Rules  *rules.Manager
	Policy FillPolicy

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// now is stubbed in tests
	now func() time.Time
}

func New(b broker.Adapter, l ledger.Ledger, r *rules.Manager, policy FillPolicy) *Executor {
	return &Executor{
		Broker:  b,
		Ledger:  l,
		Rules:   r,
		Policy:  policy,
		cancels: make(map[string]context.CancelFunc),
		now:     time.Now,
	}
}

// Cancel interrupts an in-flight execution. Returns false when the id is
// unknown or the execution already terminated.
func (e *Executor) Cancel(id string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[id]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (e *Executor) register(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancels[id] = cancel
	e.mu.Unlock()
}

func (e *Executor) unregister(id string) {
	e.mu.Lock()
	delete(e.cancels, id)
	e.mu.Unlock()
}

// Execute runs the full pipeline for one signal and returns the terminal
// record. The returned error mirrors the record's failure, wrapped in a
// StepError; callers that only need the outcome can inspect the record.
func (e *Executor) Execute(ctx context.Context, platform string, sig model.Signal) (*model.ExecutionRecord, error) {
	now := e.now().UTC()
	rec := &model.ExecutionRecord{
		ID:                uuid.New().String(),
		Platform:          platform,
		SignalTitle:       sig.Title,
		Ticker:            strings.ToUpper(strings.TrimSpace(sig.Ticker)),
		Direction:         sig.Direction,
		OptionType:        sig.OptionType,
		StrikePrice:       sig.Strike,
		PurchasePrice:     sig.PurchasePrice,
		InputPositionSize: sig.Size,
		Status:            model.StatusPending,
		CreatedAt:         now,
	}
	if err := e.Ledger.Record(rec); err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.register(rec.ID, cancel)
	defer func() {
		cancel()
		e.unregister(rec.ID)
	}()

	// Rule sets are snapshotted here: a config save mid-execution does not
	// affect this run.
	budgetRules := e.Rules.BudgetRules()

	err := e.run(ctx, rec, sig, budgetRules)
	rec.CompletedAt = e.now().UTC()
	if err != nil {
		var se *StepError
		if !errors.As(err, &se) {
			se = stepErr(rec.StepReached, err)
		}
		rec.Status = model.StatusFailed
		rec.StepReached = se.Step
		rec.ErrorMessage = se.Err.Error()
		rec.Log = append(rec.Log, fmt.Sprintf("step %d failed: %v", se.Step, se.Err))
		metrics.ExecutionDone("failed", se.Step)
		log.Printf("[WARN] execution %s failed at step %d: %v", rec.ID, se.Step, se.Err)
	} else {
		rec.Status = model.StatusSuccess
		metrics.ExecutionDone("success", rec.StepReached)
		log.Printf("[INFO] execution %s filled %d contract(s) at %s", rec.ID, rec.FinalPositionSize, rec.FilledPrice.StringFixed(2))
	}

	if uerr := e.Ledger.Update(rec); uerr != nil && !errors.Is(uerr, ledger.ErrNotFound) {
		log.Printf("[ERROR] persist execution %s: %v", rec.ID, uerr)
	}
	return rec, err
}

func (e *Executor) run(ctx context.Context, rec *model.ExecutionRecord, sig model.Signal, budgetRules rules.BudgetRuleSet) error {
	logf := func(format string, args ...any) {
		rec.Log = append(rec.Log, fmt.Sprintf(format, args...))
	}
	checkpoint := func() {
		if err := e.Ledger.Update(rec); err != nil {
			log.Printf("[WARN] checkpoint execution %s: %v", rec.ID, err)
		}
	}

	// Step 1: validate required fields. Fails fast, no brokerage contact.
	rec.StepReached = model.StepValidate
	if err := validateSignal(rec, sig); err != nil {
		return stepErr(model.StepValidate, err)
	}
	logf("step 1: validated %s %s %s strike %s size %s", rec.Ticker, sig.Direction, sig.OptionType, sig.Strike, sig.Size)

	// Step 2: validate and infer the expiration date.
	rec.StepReached = model.StepDate
	now := e.now().UTC()
	var candidate time.Time
	var rolled bool
	if !sig.Expiration.IsZero() {
		if !sig.Expiration.Valid() {
			return stepErrf(model.StepDate, "invalid expiration date %s", sig.Expiration)
		}
		candidate, rolled = candidateDate(sig.Expiration, now)
		if rolled {
			logf("step 2: %s already passed this year, rolled candidate to %s", sig.Expiration, candidate.Format("2006-01-02"))
		} else {
			logf("step 2: candidate expiration %s", candidate.Format("2006-01-02"))
		}
	} else {
		logf("step 2: no date supplied, will use nearest listed expiration")
	}
	checkpoint()

	// Step 3: find the nearest options chain.
	rec.StepReached = model.StepChain
	listed, err := e.Broker.GetExpirations(ctx, rec.Ticker)
	if err != nil {
		return stepErrf(model.StepChain, "%w: %v", ErrChainUnavailable, err)
	}
	if len(listed) == 0 {
		return stepErr(model.StepChain, ErrNoExpirations)
	}
	expiration, err := nearestExpiration(listed, candidate, rolled, now)
	if err != nil {
		return stepErr(model.StepChain, err)
	}
	rec.FinalExpiration = expiration.Format("2006-01-02")
	logf("step 3: resolved expiration %s (%d listed)", rec.FinalExpiration, len(listed))

	chain, err := e.Broker.GetChain(ctx, rec.Ticker, expiration, sig.OptionType)
	if err != nil {
		return stepErrf(model.StepChain, "%w: %v", ErrChainUnavailable, err)
	}
	checkpoint()

	// Step 4: verify the strike against the chain.
	rec.StepReached = model.StepStrike
	spot, err := e.Broker.GetSpot(ctx, rec.Ticker)
	if err != nil {
		// tie-break degrades without a quote; not fatal
		log.Printf("[WARN] spot quote for %s unavailable: %v", rec.Ticker, err)
		spot = decimal.Zero
	}
	contract, err := matchContract(chain, sig.Strike, spot)
	if err != nil {
		return stepErr(model.StepStrike, err)
	}
	// record reflects the strike actually traded, not the requested one
	rec.StrikePrice = contract.Strike
	premium := premiumFor(contract, sig.Direction)
	logf("step 4: matched strike %s (%s), premium %s (bid %s / ask %s)",
		contract.Strike, contract.Symbol, premium.StringFixed(2),
		contract.Bid.StringFixed(2), contract.Ask.StringFixed(2))
	checkpoint()

	// Step 5: calculate position size. The requested size only selects which
	// budget applies; the contract count always comes from the budget.
	rec.StepReached = model.StepSizing
	budget := budgetRules.Resolve(sig.Title, sig.Size)
	rule := budgetRules.Match(sig.Title)
	logf("step 5: rule %q resolved budget $%s (lotto=%v)", rule.ID, budget, sig.Size.Lotto)
	qty, err := sizePosition(budget, premium)
	if err != nil {
		return stepErr(model.StepSizing, err)
	}
	logf("step 5: position size %d contract(s) at ~$%s each", qty, premium.Mul(contractMultiplier).StringFixed(2))
	checkpoint()

	// Step 6: fill the order incrementally.
	rec.StepReached = model.StepFill
	req := broker.OrderRequest{
		Ticker:    rec.Ticker,
		Symbol:    contract.Symbol,
		Direction: sig.Direction,
		Quantity:  qty,
	}
	res, err := fillIncrementally(ctx, e.Broker, contract, req, e.Policy, logf)
	if res != nil {
		rec.FillAttempts = res.Attempts
		metrics.FillAttempts(res.Attempts)
	}
	if err != nil {
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return stepErr(model.StepFill, ErrCancelled)
		}
		return stepErr(model.StepFill, err)
	}

	rec.FinalPositionSize = res.FilledQty
	rec.FilledPrice = res.FillPrice
	logf("step 6: filled %d contract(s) at %s after %d attempt(s)", res.FilledQty, res.FillPrice.StringFixed(2), res.Attempts)

	// The exit strategy is resolved once the position is confirmed, from the
	// selling rules as configured at this moment.
	selling := e.Rules.SellingRules().Resolve(sig.Title)
	target := res.FillPrice.Mul(selling.ProfitMultiplier)
	logf("exit plan: sell %d%% at %s (%sx)", selling.SellPercent, target.StringFixed(2), selling.ProfitMultiplier)

	return nil
}

func validateSignal(rec *model.ExecutionRecord, sig model.Signal) error {
	if rec.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if sig.Direction != model.DirectionBuy && sig.Direction != model.DirectionSell {
		return fmt.Errorf("direction must be BUY or SELL, got %q", sig.Direction)
	}
	if sig.OptionType != model.OptionCall && sig.OptionType != model.OptionPut {
		return fmt.Errorf("option type must be CALL or PUT, got %q", sig.OptionType)
	}
	if !sig.Strike.IsPositive() {
		return fmt.Errorf("strike price is required")
	}
	if sig.PurchasePrice.IsNegative() {
		return fmt.Errorf("purchase price cannot be negative")
	}
	return nil
}
