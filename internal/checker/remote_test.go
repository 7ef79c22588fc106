package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRemoteCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pkgs := q["package"]
		switch {
		case pkgs[0] == "broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		case pkgs[0] == "evil":
			http.Error(w, `{"status":"error","message":"Request contains unrecognized packages: evil"}`, http.StatusBadRequest)
		case pkgs[0] == "bad-request":
			http.Error(w, "Missing python version", http.StatusBadRequest)
		default:
			if got := q.Get("python-version"); got != "2" {
				t.Errorf("python-version: got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"result":"CHECK_WARNING","packages":["six","tensorflow"],"description":"conflict","dependency_info":null}`))
		}
	}))
	defer srv.Close()

	r := NewRemote(srv.URL+"/", 5*time.Second)
	ctx := context.Background()

	t.Run("Result", func(t *testing.T) {
		got, err := r.Check(ctx, 2, []string{"six", "tensorflow"})
		if err != nil {
			t.Fatal(err)
		}
		want := &Result{
			Packages:      NewPackages("six", "tensorflow"),
			PythonVersion: 2,
			Status:        StatusCheckWarning,
			Details:       "conflict",
		}
		got.Timestamp = time.Time{}
		if !cmp.Equal(got, want) {
			t.Error(cmp.Diff(got, want))
		}
	})

	t.Run("UnrecognizedPackage", func(t *testing.T) {
		got, err := r.Check(ctx, 3, []string{"evil"})
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != StatusUnknown {
			t.Errorf("got status %v, want UNKNOWN", got.Status)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		_, err := r.Check(ctx, 3, []string{"broken"})
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("got %v, want *HTTPError", err)
		}
		if !httpErr.Temporary() {
			t.Error("5xx should be temporary")
		}
	})

	t.Run("BadRequest", func(t *testing.T) {
		_, err := r.Check(ctx, 3, []string{"bad-request"})
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("got %v, want *HTTPError", err)
		}
		if httpErr.Temporary() {
			t.Error("400 should not be temporary")
		}
	})

	t.Run("PackageCount", func(t *testing.T) {
		if _, err := r.Check(ctx, 3, []string{"a", "b", "c"}); !errors.Is(err, ErrInvalidPackageCount) {
			t.Errorf("got %v, want ErrInvalidPackageCount", err)
		}
	})
}
