package forward

import (
	"github.com/hashicorp/go-multierror"

	"github.com/m3rciful/relaybot/internal/routing"
)

// Delivery is the typed result of one target attempt.
type Delivery struct {
	Target routing.ChannelRef
	Err    error
}

// Report aggregates the fan-out of one source post for one user.
type Report struct {
	UserID     string
	Deliveries []Delivery
}

// Delivered counts successful attempts.
func (r Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts failed attempts.
func (r Report) Failed() int {
	return len(r.Deliveries) - r.Delivered()
}

// Err collects every per-target failure into one error, or nil if all
// deliveries succeeded.
func (r Report) Err() error {
	var merr *multierror.Error
	for _, d := range r.Deliveries {
		if d.Err != nil {
			merr = multierror.Append(merr, &TargetError{Target: d.Target, Cause: d.Err})
		}
	}
	return merr.ErrorOrNil()
}

// Outcome classifies the report for logging: ok, partial or fail.
func (r Report) Outcome() string {
	switch {
	case len(r.Deliveries) == 0 || r.Failed() == 0:
		return "ok"
	case r.Delivered() == 0:
		return "fail"
	default:
		return "partial"
	}
}

// TargetError wraps a delivery failure with the target it concerned.
type TargetError struct {
	Target routing.ChannelRef
	Cause  error
}

func (e *TargetError) Error() string {
	return "deliver to " + e.Target.String() + ": " + e.Cause.Error()
}

func (e *TargetError) Unwrap() error {
	return e.Cause
}
