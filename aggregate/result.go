package aggregate

// Result represents the outcome of a command decision on an aggregate.
// Domain rule violations are expected business outcomes, not faults, so they
// travel as failure results rather than errors.
//
// Result should only be constructed with the supplied factory methods:
// SuccessResult, FailureResult, or IdempotentResult.
type Result struct {
	outcome       string
	failureReason string
}

const (
	successOutcome    = "success"
	failureOutcome    = "failure"
	idempotentOutcome = "idempotent"
)

// SuccessResult creates a Result indicating the command was accepted and one
// or more events were emitted.
func SuccessResult() Result {
	return Result{outcome: successOutcome}
}

// FailureResult creates a Result indicating the command violates a domain
// invariant; no event was emitted and no state was changed.
func FailureResult(reason string) Result {
	return Result{outcome: failureOutcome, failureReason: reason}
}

// IdempotentResult creates a Result indicating the command required no state
// change because its effect was already recorded.
func IdempotentResult() Result {
	return Result{outcome: idempotentOutcome}
}

// IsSuccess returns true if the command emitted events.
func (r Result) IsSuccess() bool {
	return r.outcome == successOutcome
}

// IsFailure returns true if the command was rejected by a domain invariant.
func (r Result) IsFailure() bool {
	return r.outcome == failureOutcome
}

// IsIdempotent returns true if the command was a no-op.
func (r Result) IsIdempotent() bool {
	return r.outcome == idempotentOutcome
}

// FailureReason returns the reason for a failure result, or an empty string.
func (r Result) FailureReason() string {
	return r.failureReason
}
