package executor

import (
	"errors"
	"fmt"
)

// Resolution and sizing failures. Each terminates the execution at its step
// with no order placed and no capital at risk.
var (
	ErrNoExpirations      = errors.New("no listed expirations for ticker")
	ErrDateAmbiguous      = errors.New("expiration date requires a year to disambiguate")
	ErrChainUnavailable   = errors.New("options chain unavailable")
	ErrNoStrikesListed    = errors.New("no strikes listed for option type")
	ErrBudgetInsufficient = errors.New("budget cannot cover a single contract")
	ErrOrderRejected      = errors.New("order rejected by brokerage")
	ErrFillExhausted      = errors.New("order not filled within attempt limit")
	ErrCancelled          = errors.New("execution cancelled by operator")
)

// StepError pins a failure to the pipeline step (1-6) it occurred on.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step int, err error) *StepError {
	return &StepError{Step: step, Err: err}
}

func stepErrf(step int, format string, args ...any) *StepError {
	return &StepError{Step: step, Err: fmt.Errorf(format, args...)}
}
