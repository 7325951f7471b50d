package config

import (
	"fmt"
	"time"
)

// CallType selects how far the runner follows a dispatched workflow.
type CallType string

const (
	// Trigger dispatches the workflow and returns.
	Trigger CallType = "Trigger"
	// TriggerAndWait also waits for the run to complete successfully.
	TriggerAndWait CallType = "TriggerAndWait"
	// TriggerAndWaitResult also fetches and prints the run's result file.
	TriggerAndWaitResult CallType = "TriggerAndWaitResult"
)

func ParseCallType(v string) (CallType, error) {
	switch ct := CallType(v); ct {
	case Trigger, TriggerAndWait, TriggerAndWaitResult:
		return ct, nil
	}
	return "", fmt.Errorf("unknown call type %q (Trigger, TriggerAndWait, TriggerAndWaitResult)", v)
}

// Poll bounds one polling loop.
type Poll struct {
	Attempts int
	Interval time.Duration
}

// Runner is the configuration of the call-workflow binary.
type Runner struct {
	WorkflowInput  string
	Token          string
	Owner          string
	Repo           string
	WorkflowFile   string
	Branch         string
	APIURL         string
	CallType       CallType
	Discovery      Poll
	Completion     Poll
	MaxWait        time.Duration // zero means bounded by Completion only
	ArtifactName   string
	ResultFileName string
	ScratchDir     string
	ResultS3Bucket string
	ResultS3Prefix string
}

// LoadRunner populates a Runner from the environment, reporting every
// missing or malformed variable at once.
func LoadRunner(getenv Getenv) (*Runner, error) {
	r := &reader{getenv: getenv}
	cfg := &Runner{
		WorkflowInput: r.required("WORKFLOW_INPUT_JSON"),
		Token:         r.required("INSTALLATION_TOKEN"),
		Owner:         r.required("OWNER_NAME"),
		Repo:          r.required("REPO_NAME"),
		WorkflowFile:  r.required("WORKFLOW_FILENAME"),
		Branch:        r.required("BRANCH_NAME"),
		APIURL:        r.optional("GITHUB_API_URL", DefaultAPIURL),
		Discovery: Poll{
			Attempts: r.positiveInt("RUN_DISCOVERY_ATTEMPTS", 15),
			Interval: r.duration("RUN_DISCOVERY_INTERVAL", 2*time.Second),
		},
		Completion: Poll{
			Attempts: r.positiveInt("RUN_COMPLETION_ATTEMPTS", 1800),
			Interval: r.duration("RUN_COMPLETION_INTERVAL", 4*time.Second),
		},
		MaxWait:        r.duration("MAX_WAIT_TIME", 0),
		ArtifactName:   r.optional("RESULT_ARTIFACT_NAME", "result"),
		ResultFileName: r.optional("RESULT_FILE_NAME", "result.json"),
		ScratchDir:     r.optional("SCRATCH_DIR", ""),
		ResultS3Bucket: r.optional("RESULT_S3_BUCKET", ""),
		ResultS3Prefix: r.optional("RESULT_S3_PREFIX", ""),
	}

	ct := r.optional("CALL_TYPE", string(TriggerAndWaitResult))
	callType, err := ParseCallType(ct)
	if err != nil {
		r.invalid = append(r.invalid, &InvalidError{Name: "CALL_TYPE", Value: ct, Err: err})
	}
	cfg.CallType = callType

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
