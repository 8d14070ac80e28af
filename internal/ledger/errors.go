package ledger

import (
	"errors"
	"fmt"
)

// ConsistencyError reports an attempted ledger mutation that would violate an
// accounting invariant: non-positive sums, debtor == creditor, parties outside
// an event, writing off more than is left, or writing off a paid debt.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return e.Reason
}

func consistencyf(format string, args ...any) error {
	return &ConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

// IsConsistency reports whether err is a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
