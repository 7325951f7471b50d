package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DispatchWorkflow triggers a workflow_dispatch event for workflowFile on
// ref. The API answers 204 without any reference to the run it schedules.
func (c *Client) DispatchWorkflow(ctx context.Context, owner, repo, workflowFile, ref string, inputs map[string]string) error {
	body := struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs,omitempty"`
	}{Ref: ref, Inputs: inputs}

	path := fmt.Sprintf("%s/actions/workflows/%s/dispatches", repoPath(owner, repo), url.PathEscape(workflowFile))
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// ListWorkflowRuns lists the runs of workflowFile matching filter, newest
// first.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo, workflowFile string, filter RunFilter) ([]WorkflowRun, error) {
	query := url.Values{}
	if filter.Branch != "" {
		query.Set("branch", filter.Branch)
	}
	if filter.Event != "" {
		query.Set("event", filter.Event)
	}
	if !filter.CreatedAfter.IsZero() {
		query.Set("created", ">="+filter.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if filter.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(filter.PerPage))
	}

	var runs WorkflowRuns
	path := fmt.Sprintf("%s/actions/workflows/%s/runs", repoPath(owner, repo), url.PathEscape(workflowFile))
	if err := c.get(ctx, path, query, &runs); err != nil {
		return nil, err
	}
	return runs.WorkflowRuns, nil
}

func (c *Client) GetWorkflowRun(ctx context.Context, owner, repo string, runID int64) (*WorkflowRun, error) {
	run := &WorkflowRun{}
	path := fmt.Sprintf("%s/actions/runs/%d", repoPath(owner, repo), runID)
	if err := c.get(ctx, path, nil, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (c *Client) ListRunArtifacts(ctx context.Context, owner, repo string, runID int64) ([]Artifact, error) {
	var as Artifacts
	path := fmt.Sprintf("%s/actions/runs/%d/artifacts", repoPath(owner, repo), runID)
	if err := c.get(ctx, path, url.Values{"per_page": {"100"}}, &as); err != nil {
		return nil, err
	}
	return as.Artifacts, nil
}

// ArtifactDownloadURL resolves the short-lived archive URL of an
// artifact. The API redirects to it, so the redirect is not followed.
func (c *Client) ArtifactDownloadURL(ctx context.Context, owner, repo string, artifactID int64, format string) (string, error) {
	path := fmt.Sprintf("%s/actions/artifacts/%d/%s", repoPath(owner, repo), artifactID, url.PathEscape(format))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", err
	}

	noRedirect := *c.HTTPClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 3 {
		return "", newAPIError(req, resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("artifact %d: no download location in %d response", artifactID, resp.StatusCode)
	}
	return location, nil
}

// Download writes the body at downloadURL to dest. The URL is presigned,
// so no credentials are sent with it.
func (c *Client) Download(ctx context.Context, downloadURL string, dest io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s returned status code: %d", req.URL.Redacted(), resp.StatusCode)
	}
	return io.Copy(dest, resp.Body)
}
