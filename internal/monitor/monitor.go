// Package monitor periodically re-checks filled positions against the
// configured selling rules and surfaces exit opportunities.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"SignalDesk/internal/broker"
	"SignalDesk/internal/ledger"
	"SignalDesk/internal/model"
	"SignalDesk/internal/rules"
)

// ExitAlert describes a position whose exit target has been reached.
type ExitAlert struct {
	ExecutionID string
	Ticker      string
	SellPercent int
	Target      decimal.Decimal
	Bid         decimal.Decimal
}

// Monitor drives the cron-scheduled exit sweep.
type Monitor struct {
	cron   *cron.Cron
	broker broker.Adapter
	ledger ledger.Ledger
	rules  *rules.Manager
	ctx    context.Context

	// OnExit is invoked for each alert; defaults to logging.
	OnExit func(ExitAlert)
}

func New(ctx context.Context, b broker.Adapter, l ledger.Ledger, r *rules.Manager) *Monitor {
	m := &Monitor{
		cron:   cron.New(cron.WithSeconds()),
		broker: b,
		ledger: l,
		rules:  r,
		ctx:    ctx,
	}
	m.OnExit = func(a ExitAlert) {
		log.Printf("[INFO] exit target reached for %s (%s): bid %s >= target %s, sell %d%%",
			a.Ticker, a.ExecutionID, a.Bid.StringFixed(2), a.Target.StringFixed(2), a.SellPercent)
	}
	return m
}

// Register schedules the sweep; spec is a six-field cron expression.
func (m *Monitor) Register(spec string) error {
	if _, err := m.cron.AddFunc(spec, m.Sweep); err != nil {
		return fmt.Errorf("register exit sweep: %w", err)
	}
	return nil
}

func (m *Monitor) Start() {
	m.cron.Start()
	log.Println("[INFO] exit monitor started")
}

func (m *Monitor) Stop() {
	m.cron.Stop()
	log.Println("[INFO] exit monitor stopped")
}

// Sweep walks recent filled executions and checks each against its selling
// strategy. The selling rules are snapshotted once per sweep.
func (m *Monitor) Sweep() {
	recs, err := m.ledger.Query(ledger.QueryFilter{Status: model.StatusSuccess, Limit: 100})
	if err != nil {
		log.Printf("[ERROR] exit sweep: query ledger: %v", err)
		return
	}
	selling := m.rules.SellingRules()

	for _, rec := range recs {
		alert, ok := m.check(rec, selling)
		if ok {
			m.OnExit(alert)
		}
	}
}

func (m *Monitor) check(rec *model.ExecutionRecord, selling rules.SellingRuleSet) (ExitAlert, bool) {
	exp, err := time.Parse("2006-01-02", rec.FinalExpiration)
	if err != nil {
		return ExitAlert{}, false
	}
	if exp.Before(time.Now().UTC().Truncate(24 * time.Hour)) {
		return ExitAlert{}, false // expired, nothing to exit
	}

	chain, err := m.broker.GetChain(m.ctx, rec.Ticker, exp, rec.OptionType)
	if err != nil {
		log.Printf("[WARN] exit sweep: chain for %s: %v", rec.Ticker, err)
		return ExitAlert{}, false
	}

	var bid decimal.Decimal
	found := false
	for _, c := range chain {
		if c.Strike.Equal(rec.StrikePrice) {
			bid = c.Bid
			found = true
			break
		}
	}
	if !found {
		return ExitAlert{}, false
	}

	rule := selling.Resolve(rec.SignalTitle)
	target := rec.FilledPrice.Mul(rule.ProfitMultiplier)
	if bid.GreaterThanOrEqual(target) && target.IsPositive() {
		return ExitAlert{
			ExecutionID: rec.ID,
			Ticker:      rec.Ticker,
			SellPercent: rule.SellPercent,
			Target:      target,
			Bid:         bid,
		}, true
	}
	return ExitAlert{}, false
}
