package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultAPIURL = "https://api.github.com"

// Getenv is the lookup used to populate configuration, os.Getenv in
// production.
type Getenv func(string) string

// MissingError lists every required variable that was unset.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Names, ", "))
}

// InvalidError reports a variable whose value could not be parsed.
type InvalidError struct {
	Name  string
	Value string
	Err   error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Name, e.Err)
}

func (e *InvalidError) Unwrap() error {
	return e.Err
}

// reader accumulates missing and invalid variables so they can be
// reported together after a single pass.
type reader struct {
	getenv  Getenv
	missing []string
	invalid []error
}

func (r *reader) required(name string) string {
	v := r.getenv(name)
	if v == "" {
		r.missing = append(r.missing, name)
	}
	return v
}

func (r *reader) optional(name, def string) string {
	if v := r.getenv(name); v != "" {
		return v
	}
	return def
}

func (r *reader) positiveInt(name string, def int) int {
	v := r.getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < 1 {
		err = fmt.Errorf("must be at least 1")
	}
	if err != nil {
		r.invalid = append(r.invalid, &InvalidError{Name: name, Value: v, Err: err})
		return def
	}
	return n
}

func (r *reader) duration(name string, def time.Duration) time.Duration {
	v := r.getenv(name)
	if v == "" {
		return def
	}
	d, err := ParseDuration(v)
	if err != nil {
		r.invalid = append(r.invalid, &InvalidError{Name: name, Value: v, Err: err})
		return def
	}
	return d
}

func (r *reader) err() error {
	var errs []error
	if len(r.missing) > 0 {
		errs = append(errs, &MissingError{Names: r.missing})
	}
	errs = append(errs, r.invalid...)
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// ParseDuration accepts either a Go duration ("90s", "2m") or a bare
// integer number of seconds.
func ParseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration")
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration")
	}
	return d, nil
}
