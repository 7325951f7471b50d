package runner

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/workflow-call/pkg/config"
	"github.com/DataDog/workflow-call/pkg/correlation"
	"github.com/DataDog/workflow-call/pkg/github"
	"github.com/DataDog/workflow-call/pkg/workflow"
)

const testRunID = 42

// fakeGitHub serves the Actions endpoints for octo/hello build.yml. The
// dispatched run shows up on the second listing and completes on the
// second status poll.
type fakeGitHub struct {
	t       *testing.T
	baseURL string

	conclusion      string
	artifacts       []github.Artifact
	archive         []byte
	dispatchStatus  int
	artifactsStatus int
	hideRun         bool

	mu sync.Mutex
	st fakeStats
}

type fakeStats struct {
	correlationID string
	inputs        map[string]string
	listCalls     int
	getCalls      int
	artifactCalls int
}

func (f *fakeGitHub) stats() fakeStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/octo/hello/actions/workflows/build.yml/dispatches", f.api(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ref    string            `json:"ref"`
			Inputs map[string]string `json:"inputs"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "main", body.Ref)
		f.st.inputs = body.Inputs
		f.st.correlationID = body.Inputs[correlation.Key]
		if f.dispatchStatus != 0 {
			http.Error(w, `{"message":"Not Found"}`, f.dispatchStatus)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /repos/octo/hello/actions/workflows/build.yml/runs", f.api(func(w http.ResponseWriter, r *http.Request) {
		f.st.listCalls++
		assert.Equal(f.t, "workflow_dispatch", r.URL.Query().Get("event"))
		assert.Equal(f.t, "main", r.URL.Query().Get("branch"))
		runs := []github.WorkflowRun{{ID: 7, DisplayTitle: "build someone-else"}}
		if f.st.listCalls >= 2 && !f.hideRun {
			runs = append([]github.WorkflowRun{{
				ID:           testRunID,
				DisplayTitle: "build " + f.st.correlationID,
				Status:       "queued",
			}}, runs...)
		}
		writeJSON(w, github.WorkflowRuns{TotalCount: int64(len(runs)), WorkflowRuns: runs})
	}))
	mux.HandleFunc(fmt.Sprintf("GET /repos/octo/hello/actions/runs/%d", testRunID), f.api(func(w http.ResponseWriter, r *http.Request) {
		f.st.getCalls++
		run := github.WorkflowRun{ID: testRunID, Status: "in_progress"}
		if f.st.getCalls >= 2 {
			run.Status = github.StatusCompleted
			run.Conclusion = f.conclusion
		}
		writeJSON(w, run)
	}))
	mux.HandleFunc(fmt.Sprintf("GET /repos/octo/hello/actions/runs/%d/artifacts", testRunID), f.api(func(w http.ResponseWriter, r *http.Request) {
		f.st.artifactCalls++
		if f.artifactsStatus != 0 {
			http.Error(w, `{"message":"Server Error"}`, f.artifactsStatus)
			return
		}
		writeJSON(w, github.Artifacts{TotalCount: int64(len(f.artifacts)), Artifacts: f.artifacts})
	}))
	mux.HandleFunc("GET /repos/octo/hello/actions/artifacts/{id}/zip", f.api(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", f.baseURL+"/blobs/"+r.PathValue("id")+".zip")
		w.WriteHeader(http.StatusFound)
	}))
	mux.HandleFunc("GET /blobs/{name}", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(f.t, r.Header.Get("Authorization"))
		_, _ = w.Write(f.archive)
	})
	return mux
}

// api checks the headers every REST call carries and serializes access to
// the fake's state.
func (f *fakeGitHub) api(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "Bearer ghs_test", r.Header.Get("Authorization"))
		assert.Equal(f.t, "2022-11-28", r.Header.Get("X-GitHub-Api-Version"))
		f.mu.Lock()
		defer f.mu.Unlock()
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newFake(t *testing.T) *fakeGitHub {
	return &fakeGitHub{
		t:          t,
		conclusion: github.ConclusionSuccess,
		artifacts:  []github.Artifact{{ID: 9, Name: "logs"}, {ID: 11, Name: "result"}},
		archive:    zipArchive(t, map[string]string{"result.json": `{"ok":true}`}),
	}
}

func newTestRunner(t *testing.T, fake *fakeGitHub, callType config.CallType) (*Runner, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	fake.baseURL = srv.URL

	cfg := &config.Runner{
		WorkflowInput:  `{"target":"prod","count":3,"flags":{"dry":true}}`,
		Token:          "ghs_test",
		Owner:          "octo",
		Repo:           "hello",
		WorkflowFile:   "build.yml",
		Branch:         "main",
		APIURL:         srv.URL,
		CallType:       callType,
		Discovery:      config.Poll{Attempts: 15},
		Completion:     config.Poll{Attempts: 10},
		ArtifactName:   "result",
		ResultFileName: "result.json",
		ScratchDir:     t.TempDir(),
	}
	log, _ := test.NewNullLogger()
	r := New(cfg, log)
	out := &bytes.Buffer{}
	r.Stdout = out
	return r, out
}

func TestRunPrintsResult(t *testing.T) {
	fake := newFake(t)
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.String())
	assert.Equal(t, 0, ExitCode(err))

	assert.Len(t, fake.stats().correlationID, 36)
	assert.Equal(t, map[string]string{
		"target":        "prod",
		"count":         "3",
		"flags":         `{"dry":true}`,
		correlation.Key: fake.stats().correlationID,
	}, fake.stats().inputs)
	assert.Equal(t, 2, fake.stats().listCalls)
	assert.Equal(t, 2, fake.stats().getCalls)

	entries, err := os.ReadDir(r.Config.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunNoResultArtifact(t *testing.T) {
	fake := newFake(t)
	fake.artifacts = []github.Artifact{{ID: 9, Name: "logs"}}
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.ErrorIs(t, err, ErrNoResult)
	assert.Contains(t, err.Error(), "there is no 'result' artifact")
	assert.Equal(t, 0, ExitCode(err))
	assert.Empty(t, out.String())
}

func TestRunEmptyArtifactList(t *testing.T) {
	fake := newFake(t)
	fake.artifacts = nil
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 0, ExitCode(err))
	assert.Empty(t, out.String())
}

func TestRunMissingResultFile(t *testing.T) {
	fake := newFake(t)
	fake.archive = zipArchive(t, map[string]string{"other.txt": "nope"})
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.ErrorIs(t, err, ErrNoResult)
	assert.Contains(t, err.Error(), "there is no 'result.json' in 'result' artifact")
	assert.Equal(t, 0, ExitCode(err))
	assert.Empty(t, out.String())

	entries, err := os.ReadDir(r.Config.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunEmptyResultFile(t *testing.T) {
	fake := newFake(t)
	fake.archive = zipArchive(t, map[string]string{"result.json": ""})
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)
	rec := &recordingSink{}
	r.Sink = rec

	err := r.Run(t.Context())
	require.ErrorIs(t, err, ErrNoResult)
	assert.Contains(t, err.Error(), "'result.json' in 'result' artifact is empty")
	assert.Equal(t, 0, ExitCode(err))
	assert.Empty(t, out.String())
	assert.Nil(t, rec.data)
}

func TestRunFailedConclusion(t *testing.T) {
	fake := newFake(t)
	fake.conclusion = "failure"
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, err.Error(), "failure")
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, out.String())
	assert.Zero(t, fake.stats().artifactCalls)
}

func TestRunTriggerOnly(t *testing.T) {
	fake := newFake(t)
	r, out := newTestRunner(t, fake, config.Trigger)

	require.NoError(t, r.Run(t.Context()))
	assert.NotEmpty(t, fake.stats().correlationID)
	assert.Zero(t, fake.stats().listCalls)
	assert.Empty(t, out.String())
}

func TestRunTriggerAndWait(t *testing.T) {
	fake := newFake(t)
	r, out := newTestRunner(t, fake, config.TriggerAndWait)

	require.NoError(t, r.Run(t.Context()))
	assert.Equal(t, 2, fake.stats().getCalls)
	assert.Zero(t, fake.stats().artifactCalls)
	assert.Empty(t, out.String())
}

func TestRunDispatchError(t *testing.T) {
	fake := newFake(t)
	fake.dispatchStatus = http.StatusNotFound
	r, _ := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.Error(t, err)
	var apiErr *github.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, 1, ExitCode(err))
	assert.Zero(t, fake.stats().listCalls)
}

func TestRunInvalidInput(t *testing.T) {
	fake := newFake(t)
	r, _ := newTestRunner(t, fake, config.TriggerAndWaitResult)
	r.Config.WorkflowInput = `[1, 2]`

	err := r.Run(t.Context())
	require.ErrorIs(t, err, correlation.ErrInvalidInput)
	assert.Equal(t, 1, ExitCode(err))
	assert.Nil(t, fake.stats().inputs)
}

func TestRunRunNotFound(t *testing.T) {
	fake := newFake(t)
	fake.hideRun = true
	r, _ := newTestRunner(t, fake, config.TriggerAndWaitResult)
	r.Config.Discovery.Attempts = 3

	err := r.Run(t.Context())
	require.ErrorIs(t, err, workflow.ErrRunNotFound)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, 3, fake.stats().listCalls)
	assert.Zero(t, fake.stats().getCalls)
}

func TestRunArtifactListingError(t *testing.T) {
	fake := newFake(t)
	fake.artifactsStatus = http.StatusInternalServerError
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)

	err := r.Run(t.Context())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, out.String())
}

type recordingSink struct {
	runID int64
	name  string
	data  []byte
	err   error
}

func (s *recordingSink) Store(_ context.Context, runID int64, name string, data []byte) error {
	s.runID, s.name, s.data = runID, name, data
	return s.err
}

func TestRunStoresResult(t *testing.T) {
	fake := newFake(t)
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)
	rec := &recordingSink{}
	r.Sink = rec

	require.NoError(t, r.Run(t.Context()))
	assert.Equal(t, int64(testRunID), rec.runID)
	assert.Equal(t, "result.json", rec.name)
	assert.Equal(t, `{"ok":true}`, string(rec.data))
	assert.Equal(t, `{"ok":true}`, out.String())
}

func TestRunSinkErrorKeepsStdoutClean(t *testing.T) {
	fake := newFake(t)
	r, out := newTestRunner(t, fake, config.TriggerAndWaitResult)
	r.Sink = &recordingSink{err: errors.New("access denied")}

	err := r.Run(t.Context())
	require.ErrorContains(t, err, "access denied")
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, out.String())
}

func TestReport(t *testing.T) {
	for _, tc := range []struct {
		name  string
		err   error
		code  int
		level logrus.Level
	}{
		{name: "success", err: nil, code: 0},
		{name: "no result", err: fmt.Errorf("there is no 'result' artifact (%w)", ErrNoResult), code: 0, level: logrus.WarnLevel},
		{name: "failure", err: fmt.Errorf("%w: cancelled", ErrRunFailed), code: 1, level: logrus.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			assert.Equal(t, tc.code, Report(log, tc.err))
			if tc.err == nil {
				assert.Empty(t, hook.AllEntries())
				return
			}
			require.Len(t, hook.AllEntries(), 1)
			assert.Equal(t, tc.level, hook.LastEntry().Level)
			assert.True(t, strings.HasSuffix(hook.LastEntry().Message, tc.err.Error()))
		})
	}
}
