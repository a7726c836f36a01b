package ledger

import (
	"errors"

	"SignalDesk/internal/model"
)

// ErrTerminal is returned when an update targets a record that already
// reached success or failed. Terminal records are write-once.
var ErrTerminal = errors.New("execution record is terminal")

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("execution record not found")

// QueryFilter narrows history queries. Zero values mean "no filter"; Limit 0
// falls back to a server-side default.
type QueryFilter struct {
	Limit    int
	Status   model.ExecutionStatus
	Platform string
}

// Ledger persists execution records: append on create, update in place until
// terminal, then immutable. Deletes are hard deletes.
type Ledger interface {
	Record(rec *model.ExecutionRecord) error
	Update(rec *model.ExecutionRecord) error
	Get(id string) (*model.ExecutionRecord, error)
	Query(f QueryFilter) ([]*model.ExecutionRecord, error)
	Delete(id string) (bool, error)
	Clear() (int64, error)
	Close() error
}
