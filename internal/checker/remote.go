package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultRemoteTimeout stays under the 300s limit of the hosts serving
// the check endpoint.
const DefaultRemoteTimeout = 299 * time.Second

// Messages the check endpoint answers with for packages it refuses to
// install. Such requests produce an UNKNOWN result instead of an error.
var unknownPackageMessages = []string{
	"Request contains third party github head packages.",
	"Request contains unrecognized packages",
}

// Remote asks a check endpoint to run the probe.
type Remote struct {
	endpoint string
	client   *http.Client
}

func NewRemote(endpoint string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Check(ctx context.Context, pythonVersion int, packages []string) (*Result, error) {
	if n := len(packages); n < 1 || n > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPackageCount, n)
	}

	u, err := url.Parse(r.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid check endpoint: %w", err)
	}
	q := u.Query()
	q.Set("python-version", strconv.Itoa(pythonVersion))
	for _, p := range packages {
		q.Add("package", p)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query check endpoint: %w", err)
	}
	defer resp.Body.Close()
	remoteRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read check response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusBadRequest && isUnknownPackageMessage(msg) {
			return NewResult(NewPackages(packages...), pythonVersion, StatusUnknown, msg), nil
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: msg}
	}

	var cr CheckResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("failed to decode check response: %w", err)
	}
	return cr.ToResult(pythonVersion, packages)
}

func isUnknownPackageMessage(msg string) bool {
	for _, m := range unknownPackageMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
