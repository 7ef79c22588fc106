// Package status folds stored check results and dependency freshness into
// the statuses shown on badges.
package status

import (
	"fmt"
	"strings"

	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/freshness"
)

// Status is a badge status. Compatibility and dependency statuses share
// one enum so renderers can key a single color table on it.
type Status string

const (
	Success         Status = "SUCCESS"
	Unknown         Status = "UNKNOWN"
	InstallError    Status = "INSTALL_ERROR"
	CheckWarning    Status = "CHECK_WARNING"
	Calculating     Status = "CALCULATING"
	ConversionError Status = "CONVERSION_ERROR"
	UpToDate        Status = "UP_TO_DATE"
	LowPriority     Status = "LOW_PRIORITY"
	HighPriority    Status = "HIGH_PRIORITY"
)

var colors = map[Status]string{
	Success:         "green",
	Unknown:         "purple",
	InstallError:    "yellow",
	CheckWarning:    "red",
	Calculating:     "blue",
	ConversionError: "orange",
	UpToDate:        "green",
	LowPriority:     "yellow",
	HighPriority:    "red",
}

// Color is the badge color for the status.
func (s Status) Color() string {
	if c, ok := colors[s]; ok {
		return c
	}
	return colors[ConversionError]
}

// Label is the badge text for the status.
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func (s Status) Valid() bool {
	_, ok := colors[s]
	return ok
}

func (s *Status) UnmarshalText(b []byte) error {
	st := Status(b)
	if !st.Valid() {
		return fmt.Errorf("unknown badge status %q", b)
	}
	*s = st
	return nil
}

// FromCheck maps a check outcome onto a badge status.
func FromCheck(s checker.Status) Status {
	switch s {
	case checker.StatusSuccess:
		return Success
	case checker.StatusInstallError:
		return InstallError
	case checker.StatusCheckWarning:
		return CheckWarning
	case checker.StatusUnknown:
		return Unknown
	}
	return ConversionError
}

// FromLevel maps a freshness level onto a badge status.
func FromLevel(l freshness.Level) Status {
	switch l {
	case freshness.UpToDate:
		return UpToDate
	case freshness.LowPriority:
		return LowPriority
	case freshness.HighPriority:
		return HighPriority
	}
	return ConversionError
}
