package github

import "time"

// Run statuses and conclusions used by the runner.
const (
	StatusCompleted   = "completed"
	ConclusionSuccess = "success"
)

type WorkflowRun struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayTitle string    `json:"display_title"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	Event        string    `json:"event"`
	HeadBranch   string    `json:"head_branch"`
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type WorkflowRuns struct {
	TotalCount   int64         `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

type Artifact struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	SizeInBytes        int64     `json:"size_in_bytes"`
	ArchiveDownloadURL string    `json:"archive_download_url"`
	Expired            bool      `json:"expired"`
	CreatedAt          time.Time `json:"created_at"`
}

type Artifacts struct {
	TotalCount int64      `json:"total_count"`
	Artifacts  []Artifact `json:"artifacts"`
}

type Installation struct {
	ID      int64   `json:"id"`
	AppID   int64   `json:"app_id"`
	Account Account `json:"account"`
}

type Account struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// InstallationToken is a short-lived installation access token.
type InstallationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RunFilter narrows a workflow run listing.
type RunFilter struct {
	Branch       string
	Event        string
	CreatedAfter time.Time // inclusive, sent as created=>=<timestamp>
	PerPage      int
}
