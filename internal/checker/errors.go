package checker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPackageCount is returned for anything other than a self
	// check (1 package) or a pairwise check (2 packages).
	ErrInvalidPackageCount = errors.New("check needs 1 or 2 packages")
	ErrNotWhitelisted      = errors.New("package is not whitelisted")
	ErrUnsupportedPython   = errors.New("unsupported python version")
)

// PipError means the probe itself failed, as opposed to the packages
// failing to install or check.
type PipError struct {
	Command    []string
	ReturnCode int
	Output     string
	Err        error
}

func (e *PipError) Error() string {
	cmd := strings.Join(e.Command, " ")
	if e.Err != nil {
		return fmt.Sprintf("pip command %q failed: %v", cmd, e.Err)
	}
	return fmt.Sprintf("pip command %q exited with %d: %s", cmd, e.ReturnCode, e.Output)
}

func (e *PipError) Unwrap() error { return e.Err }

// HTTPError is a non-200 answer from the check endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("check endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
