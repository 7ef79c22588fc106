// Package freshness classifies how far behind their latest releases the
// dependencies of a package are.
package freshness

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultGracePeriodDays is how long a dependency may lag the latest
	// release before it becomes high priority.
	DefaultGracePeriodDays = 183
	// MajorGracePeriodDays is how long a new major release is given
	// before lagging it becomes high priority.
	MajorGracePeriodDays = 30
	// AllowedMinorDiff is how many minor versions may be skipped.
	AllowedMinorDiff = 3
)

const (
	msgNotUpdated   = "this dependency is not up to date with the latest version"
	msgSixMonths    = "it has been over 6 months since the latest version for this dependency was released"
	msgThreeMinor   = "this dependency is 3 or more minor versions behind the latest version"
	msgThirtyDays   = "it has been over 30 days since the major version for this dependency was released"
	msgMajorVersion = "this dependency is 1 or more major versions behind the latest version"
)

var ErrUnstableRelease = errors.New("a dependency cannot have an unstable release")

// Level orders how urgently a dependency needs an upgrade.
type Level int

const (
	UpToDate Level = iota
	LowPriority
	HighPriority
)

func (l Level) String() string {
	switch l {
	case UpToDate:
		return "UP_TO_DATE"
	case LowPriority:
		return "LOW_PRIORITY"
	case HighPriority:
		return "HIGH_PRIORITY"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	switch string(b) {
	case "UP_TO_DATE":
		*l = UpToDate
	case "LOW_PRIORITY":
		*l = LowPriority
	case "HIGH_PRIORITY":
		*l = HighPriority
	default:
		return fmt.Errorf("unknown priority level %q", b)
	}
	return nil
}

type Priority struct {
	Level   Level  `json:"level"`
	Details string `json:"details"`
}

// Release is a stable version split into its numeric parts.
type Release struct {
	Major, Minor, Patch int
}

var (
	twoPart  = regexp.MustCompile(`^\d+\.\d+$`)
	stableRe = regexp.MustCompile(`^\d+\.\d+\.\d+$|^\d+\.\d+\.\d+\.\d+$`)
)

// ParseRelease accepts "X.Y", "X.Y.Z" and "X.Y.Z.W". Anything else is an
// unstable release. A fourth component is ignored.
func ParseRelease(v string) (Release, error) {
	v = strings.TrimSpace(v)
	if twoPart.MatchString(v) {
		v += ".0"
	}
	if !stableRe.MatchString(v) {
		return Release{}, fmt.Errorf("%w %s", ErrUnstableRelease, v)
	}
	parts := strings.Split(v, ".")
	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return Release{}, fmt.Errorf("%w %s", ErrUnstableRelease, v)
		}
		nums[i] = n
	}
	return Release{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// UpdatePriority grades an outdated dependency. elapsed is the time since
// the latest version was released.
func UpdatePriority(installed, latest Release, elapsed time.Duration) Priority {
	days := int(elapsed / (24 * time.Hour))

	if installed.Major < latest.Major {
		switch {
		case latest.Major-installed.Major > 1:
			return Priority{HighPriority, msgMajorVersion}
		case latest.Minor != 0 || latest.Patch != 0:
			return Priority{HighPriority, msgMajorVersion}
		case days > MajorGracePeriodDays:
			return Priority{HighPriority, msgThirtyDays}
		}
		// Inside the grace period of a fresh major release the minor and
		// age rules still apply.
	}

	switch {
	case latest.Minor-installed.Minor >= AllowedMinorDiff:
		return Priority{HighPriority, msgThreeMinor}
	case days > DefaultGracePeriodDays:
		return Priority{HighPriority, msgSixMonths}
	}
	return Priority{LowPriority, msgNotUpdated}
}

// elapsedSince counts whole calendar days between two instants, by date.
func elapsedSince(released, now time.Time) time.Duration {
	if released.IsZero() || now.IsZero() {
		return 0
	}
	r := released.UTC()
	n := now.UTC()
	rd := time.Date(r.Year(), r.Month(), r.Day(), 0, 0, 0, 0, time.UTC)
	nd := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return nd.Sub(rd)
}
