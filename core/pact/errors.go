package pact

import (
	"errors"
	"fmt"
)

// Violation categorizes a guard rejection.
type Violation string

const (
	ViolationRole      Violation = "role"
	ViolationState     Violation = "state"
	ViolationTemporal  Violation = "temporal"
	ViolationParameter Violation = "parameter"
	ViolationFunding   Violation = "funding"
)

// RuleError is a synchronous, all-or-nothing guard rejection. An operation
// that returns a RuleError has left the ledger untouched.
type RuleError struct {
	Violation Violation
	Reason    string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s violation: %s", e.Violation, e.Reason)
}

// IsViolation reports whether err is a RuleError of the given category.
func IsViolation(err error, v Violation) bool {
	var re *RuleError
	return errors.As(err, &re) && re.Violation == v
}

func roleErrf(format string, args ...any) error {
	return &RuleError{Violation: ViolationRole, Reason: fmt.Sprintf(format, args...)}
}

func stateErrf(format string, args ...any) error {
	return &RuleError{Violation: ViolationState, Reason: fmt.Sprintf(format, args...)}
}

func temporalErrf(format string, args ...any) error {
	return &RuleError{Violation: ViolationTemporal, Reason: fmt.Sprintf(format, args...)}
}

func paramErrf(format string, args ...any) error {
	return &RuleError{Violation: ViolationParameter, Reason: fmt.Sprintf(format, args...)}
}

func fundingErrf(format string, args ...any) error {
	return &RuleError{Violation: ViolationFunding, Reason: fmt.Sprintf(format, args...)}
}
