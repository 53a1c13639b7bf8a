package debugserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/service"
)

type fakeStatuses []service.DocumentStatus

func (f fakeStatuses) Snapshot() []service.DocumentStatus { return f }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	settings := inspection.NewSettings("https://deepscan.test", ".es6").WithToken("secret")
	settings.IgnoredRuleCodes = inspection.NewSet("UNUSED_VAR")

	h := &Handlers{
		Statuses: fakeStatuses{
			{URI: "file:///a.js", State: "ok"},
			{URI: "file:///b.js", State: "warn", Diagnostics: 2},
		},
		Settings:    func() inspection.Settings { return settings },
		Connections: func() int { return 3 },
		Version:     "1.2.3",
		Started:     time.Now().Add(-time.Minute),
	}
	srv := httptest.NewServer(NewRouter(h, nil, "deepscan-ls-test"))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var got healthResponse
	getJSON(t, srv.URL+"/health", http.StatusOK, &got)
	if got.Status != "ok" || got.Version != "1.2.3" || got.Documents != 2 || got.Connections != 3 {
		t.Errorf("health = %+v", got)
	}
	if got.Uptime == "" {
		t.Error("uptime should be set")
	}
}

func TestDocuments(t *testing.T) {
	srv := newTestServer(t)

	var got []service.DocumentStatus
	getJSON(t, srv.URL+"/documents", http.StatusOK, &got)
	if len(got) != 2 || got[1].URI != "file:///b.js" || got[1].Diagnostics != 2 {
		t.Errorf("documents = %+v", got)
	}
}

func TestSettingsHidesToken(t *testing.T) {
	srv := newTestServer(t)

	var raw map[string]any
	getJSON(t, srv.URL+"/settings", http.StatusOK, &raw)
	if raw["has_token"] != true {
		t.Errorf("has_token = %v", raw["has_token"])
	}
	for k, v := range raw {
		if s, ok := v.(string); ok && s == "secret" {
			t.Errorf("field %q leaks the token", k)
		}
	}
	if raw["server"] != "https://deepscan.test" {
		t.Errorf("server = %v", raw["server"])
	}
	rules, _ := raw["ignore_rules"].([]any)
	if len(rules) != 1 || rules[0] != "UNUSED_VAR" {
		t.Errorf("ignore_rules = %v", raw["ignore_rules"])
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t)

	var got errorResponse
	getJSON(t, srv.URL+"/nope", http.StatusNotFound, &got)
	if got.Error != "not found" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	// Reserve a free port, then release it for Serve.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/") //nolint:noctx // test helper
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServeListenError(t *testing.T) {
	if err := Serve(context.Background(), "256.0.0.1:bad", http.NotFoundHandler()); err == nil {
		t.Error("expected listen error")
	}
}
