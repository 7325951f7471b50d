package runner

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// ExitCode maps the result of Run to the process exit code: 0 for success
// and for ErrNoResult, 1 for any other failure.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrNoResult) {
		return 0
	}
	return 1
}

// Report logs the terminal outcome of err and returns its exit code.
func Report(log logrus.FieldLogger, err error) int {
	code := ExitCode(err)
	switch {
	case err == nil:
	case code == 0:
		log.Warnf("¯\\_(ツ)_/¯ %s", err)
	default:
		log.Errorf("❌ %s", err)
	}
	return code
}
