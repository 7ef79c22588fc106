package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/purelind/pycompat-check/internal/notify"
	"github.com/purelind/pycompat-check/internal/orchestrator"
)

func TestReportAfterRunTimeout(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		got.Add(1)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// the run context is already gone when the summary is sent
	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	<-runCtx.Done()

	sum := &orchestrator.Summary{
		Planned:  1,
		Failures: []orchestrator.Failure{{Unit: orchestrator.Unit{Packages: []string{"six"}, PythonVersion: 3}, Error: runCtx.Err().Error()}},
	}
	report(notify.NewNotifier("", srv.URL), sum)
	if got.Load() != 1 {
		t.Errorf("failure webhook called %d times, want 1", got.Load())
	}
}

func TestParseVersions(t *testing.T) {
	got, err := parseVersions("2, 3")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 3}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseVersions("3,x"); err == nil {
		t.Error("expected an error")
	}
}
