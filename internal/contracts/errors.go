package contracts

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers (HTTP, CLI, batch) can map
// them to their own presentation uniformly.
type Kind string

const (
	// KindNotFound: unknown index or security id.
	KindNotFound Kind = "not_found"
	// KindEmptyUniverse: the selector produced zero eligible constituents.
	KindEmptyUniverse Kind = "empty_universe"
	// KindMissingData: a weighting strategy needs a field absent from the rows.
	KindMissingData Kind = "missing_data"
	// KindDegenerateWeight: a weight denominator summed to zero.
	KindDegenerateWeight Kind = "degenerate_weight"
	// KindNoData: a backtest produced no valid points.
	KindNoData Kind = "no_data"
	// KindInfrastructure: storage or other unexpected faults. Not
	// recoverable inside the engine; policy belongs to the caller.
	KindInfrastructure Kind = "infrastructure"
)

// Error is a tagged engine error. All recoverable engine failures are
// values of this type; anything else crossing the engine boundary is
// treated as infrastructure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports an unknown index or security.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// EmptyUniverse reports a selection with zero eligible constituents.
func EmptyUniverse(format string, args ...interface{}) *Error {
	return &Error{Kind: KindEmptyUniverse, Message: fmt.Sprintf(format, args...)}
}

// MissingData reports a weighting input field absent from the row set.
func MissingData(format string, args ...interface{}) *Error {
	return &Error{Kind: KindMissingData, Message: fmt.Sprintf(format, args...)}
}

// DegenerateWeight reports a zero weight denominator.
func DegenerateWeight(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDegenerateWeight, Message: fmt.Sprintf(format, args...)}
}

// NoData reports a backtest that produced no valid points.
func NoData(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNoData, Message: fmt.Sprintf(format, args...)}
}

// Infrastructure wraps an unexpected fault (storage unavailable, corrupt
// row) so it keeps propagating instead of being swallowed.
func Infrastructure(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInfrastructure, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or KindInfrastructure for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// IsRecoverable reports whether err is an engine-level failure a caller
// may skip over (e.g. one bad date inside a backtest).
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindEmptyUniverse, KindMissingData, KindDegenerateWeight, KindNoData:
		return true
	default:
		return false
	}
}
