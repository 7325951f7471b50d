// Package runner dispatches a workflow, follows the run it produces and
// prints the run's result file.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/artifact"
	"github.com/DataDog/workflow-call/pkg/config"
	"github.com/DataDog/workflow-call/pkg/correlation"
	"github.com/DataDog/workflow-call/pkg/github"
	"github.com/DataDog/workflow-call/pkg/sink"
	"github.com/DataDog/workflow-call/pkg/workflow"
)

var (
	// ErrNoResult marks a successful run that left nothing to report.
	ErrNoResult = errors.New("workflow produced no result")
	// ErrRunFailed means the run completed with a conclusion other than
	// success.
	ErrRunFailed = errors.New("run failed")
)

// API is the subset of the GitHub REST API the runner drives.
type API interface {
	workflow.RunLister
	workflow.RunGetter
	DispatchWorkflow(ctx context.Context, owner, repo, workflowFile, ref string, inputs map[string]string) error
	ListRunArtifacts(ctx context.Context, owner, repo string, runID int64) ([]github.Artifact, error)
	ArtifactDownloadURL(ctx context.Context, owner, repo string, artifactID int64, format string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, fileName string) ([]byte, error)
}

type Runner struct {
	Config  *config.Runner
	API     API
	Fetcher Fetcher
	Sink    sink.Sink // optional
	Stdout  io.Writer
	Log     logrus.FieldLogger
	Now     func() time.Time
}

// New wires a Runner against the GitHub API described by cfg.
func New(cfg *config.Runner, log logrus.FieldLogger) *Runner {
	client := github.NewClient(cfg.APIURL, cfg.Token)
	r := &Runner{
		Config: cfg,
		API:    client,
		Fetcher: &artifact.Fetcher{
			Downloader: client,
			ScratchDir: cfg.ScratchDir,
			Log:        log,
		},
		Stdout: os.Stdout,
		Log:    log,
		Now:    time.Now,
	}
	if cfg.ResultS3Bucket != "" {
		r.Sink = sink.NewS3(cfg.ResultS3Bucket, cfg.ResultS3Prefix)
	}
	return r
}

// Run performs the whole call. Stdout receives the result file and
// nothing else.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config

	payload, id, err := correlation.Inject([]byte(cfg.WorkflowInput))
	if err != nil {
		return fmt.Errorf("WORKFLOW_INPUT_JSON: %w", err)
	}
	inputs, err := correlation.Inputs(payload)
	if err != nil {
		return fmt.Errorf("WORKFLOW_INPUT_JSON: %w", err)
	}
	log := r.Log.WithField(correlation.Key, id)

	dispatchedAt := r.now()
	if err := r.API.DispatchWorkflow(ctx, cfg.Owner, cfg.Repo, cfg.WorkflowFile, cfg.Branch, inputs); err != nil {
		return fmt.Errorf("couldn't trigger workflow dispatch: %w", err)
	}
	log.Info("✅ Workflow dispatched")
	if cfg.CallType == config.Trigger {
		return nil
	}

	found, err := workflow.FindRun(ctx, r.API, workflow.Query{
		Owner:         cfg.Owner,
		Repo:          cfg.Repo,
		WorkflowFile:  cfg.WorkflowFile,
		Branch:        cfg.Branch,
		CorrelationID: id,
		DispatchedAt:  dispatchedAt,
	}, workflow.Policy{Attempts: cfg.Discovery.Attempts, Interval: cfg.Discovery.Interval}, log)
	if err != nil {
		return err
	}
	log = log.WithField("run_id", found.Run.ID)
	log.Infof("✅ Got Run ID %d after %d attempts %s", found.Run.ID, found.Attempts, found.Run.HTMLURL)

	done, err := workflow.WaitForCompletion(ctx, r.API, cfg.Owner, cfg.Repo, found.Run.ID, workflow.Policy{
		Attempts: cfg.Completion.Attempts,
		Interval: cfg.Completion.Interval,
		Timeout:  cfg.MaxWait,
	}, log)
	if err != nil {
		return err
	}
	if done.Run.Conclusion != github.ConclusionSuccess {
		return fmt.Errorf("%w: %s", ErrRunFailed, done.Run.Conclusion)
	}
	log.Info("✅ Run succeeded")
	if cfg.CallType == config.TriggerAndWait {
		return nil
	}

	result, err := r.fetchResult(ctx, done.Run.ID, log)
	if err != nil {
		return err
	}

	if r.Sink != nil {
		if err := r.Sink.Store(ctx, done.Run.ID, cfg.ResultFileName, result); err != nil {
			return fmt.Errorf("store result: %w", err)
		}
		log.Debug("stored workflow result")
	}

	log.Info("✅ Printing workflow result")
	if _, err := r.Stdout.Write(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func (r *Runner) fetchResult(ctx context.Context, runID int64, log logrus.FieldLogger) ([]byte, error) {
	cfg := r.Config

	artifacts, err := r.API.ListRunArtifacts(ctx, cfg.Owner, cfg.Repo, runID)
	if err != nil {
		return nil, fmt.Errorf("can't get run artifacts info: %w", err)
	}
	log.Info("✅ Got run artifacts info")

	target := findArtifact(artifacts, cfg.ArtifactName)
	if target == nil {
		return nil, fmt.Errorf("there is no '%s' artifact (%w)", cfg.ArtifactName, ErrNoResult)
	}

	downloadURL, err := r.API.ArtifactDownloadURL(ctx, cfg.Owner, cfg.Repo, target.ID, "zip")
	if err != nil {
		return nil, fmt.Errorf("can't get artifact download url: %w", err)
	}

	result, err := r.Fetcher.Fetch(ctx, downloadURL, cfg.ResultFileName)
	if errors.Is(err, artifact.ErrResultFileMissing) {
		return nil, fmt.Errorf("there is no '%s' in '%s' artifact (%w)", cfg.ResultFileName, cfg.ArtifactName, ErrNoResult)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch '%s' artifact: %w", cfg.ArtifactName, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("'%s' in '%s' artifact is empty (%w)", cfg.ResultFileName, cfg.ArtifactName, ErrNoResult)
	}
	return result, nil
}

func findArtifact(artifacts []github.Artifact, name string) *github.Artifact {
	for i := range artifacts {
		if artifacts[i].Name == name {
			return &artifacts[i]
		}
	}
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
