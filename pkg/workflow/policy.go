// Package workflow follows a dispatched workflow: it finds the run that a
// dispatch produced and waits for that run to complete. Both are bounded
// fixed-interval polling loops.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/github"
)

var (
	// ErrRunNotFound means no run matched within the discovery ceiling.
	ErrRunNotFound = errors.New("cannot find run")
	// ErrWaitTimedOut means the run did not complete within the wait
	// ceiling or deadline.
	ErrWaitTimedOut = errors.New("run did not complete in time")

	errNotReady = errors.New("not ready")
)

// State is the position of a polling loop.
type State int

const (
	Searching State = iota
	Found
	Exhausted
	Waiting
	Completed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Found:
		return "found"
	case Exhausted:
		return "exhausted"
	case Waiting:
		return "waiting"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

// Policy bounds a polling loop: at most Attempts polls, Interval apart,
// and no longer than Timeout overall when Timeout is set.
type Policy struct {
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Outcome is where a polling loop stopped. Run is set in the Found and
// Completed states.
type Outcome struct {
	State    State
	Run      *github.WorkflowRun
	Attempts int
}

// poll calls check until it returns a run, fails, or the policy runs out.
// check returns errNotReady to be polled again; any other error aborts the
// loop without further attempts.
func poll(ctx context.Context, p Policy, log logrus.FieldLogger, what string, check func(context.Context) (*github.WorkflowRun, error)) (*github.WorkflowRun, int, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	attempts := 0
	run, err := backoff.RetryNotifyWithData(func() (*github.WorkflowRun, error) {
		attempts++
		run, err := check(ctx)
		if err != nil && !errors.Is(err, errNotReady) {
			return nil, backoff.Permanent(err)
		}
		return run, err
	}, p.backOff(ctx), func(_ error, next time.Duration) {
		log.Debugf("%s: attempt %d/%d not ready, next poll in %s", what, attempts, p.Attempts, next)
	})
	return run, attempts, err
}
