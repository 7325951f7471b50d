package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/github"
)

type RunLister interface {
	ListWorkflowRuns(ctx context.Context, owner, repo, workflowFile string, filter github.RunFilter) ([]github.WorkflowRun, error)
}

// Query identifies the run produced by one dispatch.
type Query struct {
	Owner         string
	Repo          string
	WorkflowFile  string
	Branch        string
	CorrelationID string
	DispatchedAt  time.Time
}

// CreatedSlack widens the created filter to absorb clock drift between
// this host and GitHub. The correlation ID keeps the match exact.
const CreatedSlack = 5 * time.Second

// FindRun lists the workflow_dispatch runs created since the dispatch
// and returns the first whose title carries the correlation ID.
func FindRun(ctx context.Context, lister RunLister, q Query, p Policy, log logrus.FieldLogger) (Outcome, error) {
	filter := github.RunFilter{
		Branch:       q.Branch,
		Event:        "workflow_dispatch",
		CreatedAfter: q.DispatchedAt.Add(-CreatedSlack),
		PerPage:      100,
	}

	run, attempts, err := poll(ctx, p, log, "run discovery", func(ctx context.Context) (*github.WorkflowRun, error) {
		runs, err := lister.ListWorkflowRuns(ctx, q.Owner, q.Repo, q.WorkflowFile, filter)
		if err != nil {
			return nil, fmt.Errorf("list workflow runs: %w", err)
		}
		if run := Match(runs, q.CorrelationID); run != nil {
			return run, nil
		}
		return nil, errNotReady
	})

	out := Outcome{State: Searching, Attempts: attempts}
	switch {
	case err == nil:
		out.State, out.Run = Found, run
		return out, nil
	case errors.Is(err, errNotReady):
		out.State = Exhausted
		return out, fmt.Errorf("%w with id %s after %d attempts", ErrRunNotFound, q.CorrelationID, attempts)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		out.State = Exhausted
		return out, fmt.Errorf("%w with id %s: %s", ErrRunNotFound, q.CorrelationID, err)
	}
	return out, err
}

// Match returns the first run whose display title or name contains id.
func Match(runs []github.WorkflowRun, id string) *github.WorkflowRun {
	if id == "" {
		return nil
	}
	for i := range runs {
		if strings.Contains(runs[i].DisplayTitle, id) || strings.Contains(runs[i].Name, id) {
			return &runs[i]
		}
	}
	return nil
}
