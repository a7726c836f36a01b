package ledger

import (
	"sort"
	"sync"

	"SignalDesk/internal/model"
)

// MemoryLedger keeps everything in process. Used when no database path is
// configured and throughout the test suite. Also implements rules.Persister.
type MemoryLedger struct {
	mu      sync.Mutex
	recs    map[string]*model.ExecutionRecord
	order   []string // ids in insertion order
	budget  []model.BudgetRule
	selling []model.SellingRule
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{recs: make(map[string]*model.ExecutionRecord)}
}

func (m *MemoryLedger) Record(rec *model.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneRecord(rec)
	m.recs[rec.ID] = cp
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *MemoryLedger) Update(rec *model.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.recs[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Terminal() {
		return ErrTerminal
	}
	m.recs[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryLedger) Get(id string) (*model.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryLedger) Query(f QueryFilter) ([]*model.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.ExecutionRecord
	for _, id := range m.order {
		rec := m.recs[id]
		if rec == nil {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Platform != "" && rec.Platform != f.Platform {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	// newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return false, nil
	}
	delete(m.recs, id)
	return true, nil
}

func (m *MemoryLedger) Clear() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.recs))
	m.recs = make(map[string]*model.ExecutionRecord)
	m.order = nil
	return n, nil
}

func (m *MemoryLedger) Close() error { return nil }

func cloneRecord(rec *model.ExecutionRecord) *model.ExecutionRecord {
	cp := *rec
	cp.Log = append([]string(nil), rec.Log...)
	return &cp
}

// --- rules.Persister ---

func (m *MemoryLedger) LoadBudgetRules() ([]model.BudgetRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.BudgetRule(nil), m.budget...), nil
}

func (m *MemoryLedger) SaveBudgetRules(list []model.BudgetRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget = append([]model.BudgetRule(nil), list...)
	return nil
}

func (m *MemoryLedger) LoadSellingRules() ([]model.SellingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SellingRule(nil), m.selling...), nil
}

func (m *MemoryLedger) SaveSellingRules(list []model.SellingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selling = append([]model.SellingRule(nil), list...)
	return nil
}
