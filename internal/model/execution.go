package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus is the lifecycle state of an execution record.
type ExecutionStatus string

const (
	StatusPending ExecutionStatus = "pending"
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
)

// Pipeline step numbers, 1-6. A failed execution records the step it died on.
const (
	StepValidate = 1
	StepDate     = 2
	StepChain    = 3
	StepStrike   = 4
	StepSizing   = 5
	StepFill     = 6
)

// ExecutionRecord is the persisted trace of one smart-execution run. It is
// mutable while pending and immutable once status becomes success or failed.
type ExecutionRecord struct {
	ID                string          `json:"id"`
	Platform          string          `json:"platform"`
	SignalTitle       string          `json:"signal_title,omitempty"`
	Ticker            string          `json:"ticker"`
	Direction         Direction       `json:"direction"`
	OptionType        OptionType      `json:"option_type"`
	StrikePrice       decimal.Decimal `json:"strike_price"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	InputPositionSize PositionSize    `json:"input_position_size"`
	Status            ExecutionStatus `json:"status"`
	StepReached       int             `json:"step_reached"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	FinalPositionSize int             `json:"final_position_size,omitempty"`
	FilledPrice       decimal.Decimal `json:"filled_price,omitempty"`
	FinalExpiration   string          `json:"final_expiration_date,omitempty"` // YYYY-MM-DD
	FillAttempts      int             `json:"fill_attempts,omitempty"`
	Log               []string        `json:"execution_log"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       time.Time       `json:"completed_at,omitempty"`
}

// Terminal reports whether the record has reached a final status.
func (r *ExecutionRecord) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}
