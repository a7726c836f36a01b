package rules

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"SignalDesk/internal/model"
)

// Persister saves and loads the configured rule lists. The sqlite ledger
// implements it; tests use an in-memory stub.
type Persister interface {
	LoadBudgetRules() ([]model.BudgetRule, error)
	SaveBudgetRules([]model.BudgetRule) error
	LoadSellingRules() ([]model.SellingRule, error)
	SaveSellingRules([]model.SellingRule) error
}

// Manager holds the live rule configuration. Reads are snapshots: an
// execution captures the rule lists once at start and is not affected by a
// config save that lands mid-flight.
type Manager struct {
	mu      sync.RWMutex
	budget  BudgetRuleSet
	selling SellingRuleSet
	store   Persister
}

// NewManager loads the saved rule lists from the persister.
func NewManager(store Persister) (*Manager, error) {
	budget, err := store.LoadBudgetRules()
	if err != nil {
		return nil, fmt.Errorf("load budget rules: %w", err)
	}
	selling, err := store.LoadSellingRules()
	if err != nil {
		return nil, fmt.Errorf("load selling rules: %w", err)
	}
	return &Manager{budget: budget, selling: selling, store: store}, nil
}

// BudgetRules returns a copy of the configured budget rule list.
func (m *Manager) BudgetRules() BudgetRuleSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(BudgetRuleSet, len(m.budget))
	copy(out, m.budget)
	return out
}

// SellingRules returns a copy of the configured selling rule list.
func (m *Manager) SellingRules() SellingRuleSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(SellingRuleSet, len(m.selling))
	copy(out, m.selling)
	return out
}

// ReplaceBudgetRules replaces the whole budget rule list and persists it.
// Malformed numeric fields are coerced at save time, not at resolution time.
func (m *Manager) ReplaceBudgetRules(list []model.BudgetRule) error {
	for i := range list {
		if list[i].Budget.IsNegative() {
			list[i].Budget = decimal.Zero
		}
		if list[i].LottoBudget.IsNegative() {
			list[i].LottoBudget = decimal.Zero
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SaveBudgetRules(list); err != nil {
		return fmt.Errorf("save budget rules: %w", err)
	}
	m.budget = list
	return nil
}

// ReplaceSellingRules replaces the whole selling rule list and persists it.
func (m *Manager) ReplaceSellingRules(list []model.SellingRule) error {
	one := decimal.NewFromInt(1)
	for i := range list {
		if list[i].SellPercent < 1 {
			list[i].SellPercent = 1
		}
		if list[i].SellPercent > 100 {
			list[i].SellPercent = 100
		}
		if list[i].ProfitMultiplier.LessThanOrEqual(one) {
			list[i].ProfitMultiplier = model.DefaultSellingRule().ProfitMultiplier
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SaveSellingRules(list); err != nil {
		return fmt.Errorf("save selling rules: %w", err)
	}
	m.selling = list
	return nil
}
