package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/github"
)

type RunGetter interface {
	GetWorkflowRun(ctx context.Context, owner, repo string, runID int64) (*github.WorkflowRun, error)
}

// WaitForCompletion polls run runID until its status is completed and
// returns the completed run. The conclusion is left to the caller.
func WaitForCompletion(ctx context.Context, getter RunGetter, owner, repo string, runID int64, p Policy, log logrus.FieldLogger) (Outcome, error) {
	run, attempts, err := poll(ctx, p, log, fmt.Sprintf("run %d", runID), func(ctx context.Context) (*github.WorkflowRun, error) {
		run, err := getter.GetWorkflowRun(ctx, owner, repo, runID)
		if err != nil {
			return nil, fmt.Errorf("get workflow run %d: %w", runID, err)
		}
		if run.Status != github.StatusCompleted {
			log.Debugf("run %d is %s", runID, run.Status)
			return nil, errNotReady
		}
		return run, nil
	})

	out := Outcome{State: Waiting, Attempts: attempts}
	switch {
	case err == nil:
		out.State, out.Run = Completed, run
		return out, nil
	case errors.Is(err, errNotReady):
		out.State = TimedOut
		return out, fmt.Errorf("%w: run %d still running after %d attempts", ErrWaitTimedOut, runID, attempts)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		out.State = TimedOut
		return out, fmt.Errorf("%w: run %d still running after %s", ErrWaitTimedOut, runID, p.Timeout)
	}
	return out, err
}
