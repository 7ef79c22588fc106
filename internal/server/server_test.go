package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/purelind/pycompat-check/internal/badge"
	"github.com/purelind/pycompat-check/internal/cache"
	"github.com/purelind/pycompat-check/internal/checker"
	"github.com/purelind/pycompat-check/internal/config"
	"github.com/purelind/pycompat-check/internal/database"
	"github.com/purelind/pycompat-check/internal/freshness"
	"github.com/purelind/pycompat-check/internal/status"
	mock_checker "github.com/purelind/pycompat-check/test/mock/checker"
)

func do(t *testing.T, h http.Handler, url string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad error body %q: %v", rec.Body.String(), err)
	}
	if body.Status != "error" {
		t.Errorf("status field = %q", body.Status)
	}
	return body.Message
}

func TestCheckValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_checker.NewMockChecker(ctrl)
	w := config.NewWhitelist([]string{"a", "b"}, nil, nil)
	h := New(0, NewCheckHandler(m, []int{3, 2}, w)).Handler()

	tt := []struct {
		url  string
		want string
	}{
		{"/?python-version=3", "Request must specify at least one 'package' parameter"},
		{"/?python-version=3&package=a&package=b&package=c", "Request must specify at most two 'package' parameters"},
		{"/?python-version=3&package=a&package=x&package=y", "Request must specify at most two 'package' parameters"},
		{"/?python-version=3&package=a&package=x", "Request contains unrecognized packages: x"},
		{"/?package=a", "Request must specify 'python-version' parameter"},
		{"/?package=a&python-version=4", "Invalid Python version specified. Must be one of: 2, 3"},
		{"/?package=a&python-version=three", "Invalid Python version specified. Must be one of: 2, 3"},
	}
	for _, tc := range tt {
		rec := do(t, h, tc.url, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code %d", tc.url, rec.Code)
			continue
		}
		if got := errorMessage(t, rec); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_checker.NewMockChecker(ctrl)
	w := config.NewWhitelist([]string{"a", "b"}, nil, nil)
	h := New(0, NewCheckHandler(m, []int{2, 3}, w)).Handler()

	res := checker.NewResult(checker.NewPackages("a", "b"), 3, checker.StatusCheckWarning, "a 1.0 has requirement b<2")
	m.EXPECT().Check(gomock.Any(), 3, []string{"a", "b"}).Return(res, nil)

	rec := do(t, h, "/?python-version=3&package=a&package=b", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d: %s", rec.Code, rec.Body)
	}
	var got checker.CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(checker.NewCheckResponse(res), got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckProbeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mock_checker.NewMockChecker(ctrl)
	w := config.NewWhitelist([]string{"a"}, nil, nil)
	h := New(0, NewCheckHandler(m, []int{3}, w)).Handler()

	pipErr := &checker.PipError{Command: []string{"python3", "-m", "pip", "freeze"}, ReturnCode: 2, Output: "boom"}
	m.EXPECT().Check(gomock.Any(), 3, []string{"a"}).Return(nil, pipErr)
	rec := do(t, h, "/?python-version=3&package=a", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	if got := errorMessage(t, rec); got != pipErr.Error() {
		t.Errorf("got %q", got)
	}

	m.EXPECT().Check(gomock.Any(), 3, []string{"a"}).Return(nil, context.DeadlineExceeded)
	rec = do(t, h, "/?python-version=3&package=a", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	if got := errorMessage(t, rec); got != "Internal Server Error" {
		t.Errorf("got %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	w := config.NewWhitelist(nil, nil, nil)
	h := New(0, NewCheckHandler(nil, []int{3}, w)).Handler()
	rec := do(t, h, "/health_check", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello world" {
		t.Errorf("got %d %q", rec.Code, rec.Body)
	}
	if rec := do(t, h, "/metrics", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func newBadgeService(t *testing.T) *badge.Service {
	t.Helper()
	w := config.NewWhitelist([]string{"a", "b"}, nil, nil)
	store := database.NewMemory(w.PyPIName)
	var results []*checker.Result
	for _, v := range []int{2, 3} {
		for _, pkgs := range [][]string{{"a"}, {"b"}, {"a", "b"}} {
			r := checker.NewResult(checker.NewPackages(pkgs...), v, checker.StatusSuccess, "")
			r.Timestamp = time.Date(2019, 1, 16, 12, 0, 0, 0, time.UTC)
			results = append(results, r)
		}
	}
	if err := store.Save(context.Background(), results); err != nil {
		t.Fatal(err)
	}
	agg := status.NewAggregator(store, freshness.NewHighlighter(store, w), nil, w)
	return badge.NewService(agg, cache.NewLocal(), nil, w)
}

func TestBadgeImage(t *testing.T) {
	svc := newBadgeService(t)
	if err := svc.Refresh(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	h := New(0, NewBadgeHandler(svc)).Handler()

	tt := []struct {
		url  string
		want []string
	}{
		{"/one_badge_image?package=a", []string{">a<", "SUCCESS"}},
		{"/one_badge_image?package=a&badge_name=mine", []string{">mine<", "SUCCESS"}},
		{"/one_badge_image?package=left-pad", []string{"UNKNOWN"}},
		{"/self_compatibility_badge/image?package=a", []string{"SUCCESS"}},
		{"/google_compatibility_badge/image?package=a", []string{"SUCCESS"}},
		{"/self_dependency_badge/image?package=left-pad", []string{"UNKNOWN"}},
	}
	for _, tc := range tt {
		rec := do(t, h, tc.url, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: code %d", tc.url, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); ct != badge.SVGContentType {
			t.Errorf("%s: content type %q", tc.url, ct)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
			t.Errorf("%s: cache control %q", tc.url, cc)
		}
		for _, want := range tc.want {
			if !strings.Contains(rec.Body.String(), want) {
				t.Errorf("%s: badge lacks %q", tc.url, want)
			}
		}
	}
}

func TestBadgeETag(t *testing.T) {
	h := New(0, NewBadgeHandler(newBadgeService(t))).Handler()
	rec := do(t, h, "/one_badge_image?package=left-pad", nil)
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing etag")
	}
	rec = do(t, h, "/one_badge_image?package=left-pad", http.Header{"If-None-Match": {etag}})
	if rec.Code != http.StatusNotModified {
		t.Errorf("code %d", rec.Code)
	}
}

func TestBadgeTarget(t *testing.T) {
	svc := newBadgeService(t)
	if err := svc.Refresh(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	h := New(0, NewBadgeHandler(svc)).Handler()

	rec := do(t, h, "/one_badge_target?package=a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	var sum badge.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Status != status.Success || sum.PURL != "pkg:pypi/a" {
		t.Errorf("got %+v", sum)
	}

	rec = do(t, h, "/self_compatibility_badge/target?package=left-pad", nil)
	var target struct {
		Package string              `json:"package"`
		Result  status.CompatResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &target); err != nil {
		t.Fatal(err)
	}
	if target.Package != "left-pad" || target.Result.PY3.Status != status.Unknown {
		t.Errorf("got %+v", target)
	}

	rec = do(t, h, "/self_dependency_badge/target", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing package: code %d", rec.Code)
	}
	if rec := do(t, h, "/", nil); rec.Body.String() != "hello world" {
		t.Errorf("greetings: %q", rec.Body)
	}
}
