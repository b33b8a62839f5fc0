//go:build linux

package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/judgenot0/watchdog/config"
	"github.com/judgenot0/watchdog/handlers"
	"github.com/judgenot0/watchdog/scheduler"
	"github.com/judgenot0/watchdog/structs"
	"github.com/judgenot0/watchdog/watchdog"
)

// TestMain lets the test binary stand in for the watchdog binary when the
// supervisor re-execs it in child mode.
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == watchdog.ChildMode {
		watchdog.ChildMain(os.Args[2:])
	}
	os.Exit(m.Run())
}

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		WorkerCount:     2,
		EngineKey:       "test-key",
		ServerEndpoint:  "http://localhost:0",
		MemoryUsageFile: "/nonexistent",
	}
	sched := scheduler.NewScheduler(handlers.NewHandler(cfg))
	sched.With(cfg.WorkerCount)
	return NewServer(cfg, nil, sched)
}

func TestHandlerRun(t *testing.T) {
	server := testServer(t)

	body := fmt.Sprintf(`{
		"command": "/bin/echo hi",
		"stdin": "",
		"timeoutMS": 2000,
		"memoryLimitMB": 0,
		"uid": %d,
		"gid": %d
	}`, os.Getuid(), os.Getgid())

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.handlerRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var verdict structs.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.ExitCode != 0 || verdict.Stdout != "hi\n" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestHandlerRunRejectsBrokenSpec(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"command":"x"}`))
	rec := httptest.NewRecorder()
	server.handlerRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Key not found") {
		t.Fatalf("diagnostic missing from response: %s", rec.Body.String())
	}
}
