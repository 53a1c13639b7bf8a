package service

import (
	"testing"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/domain/lsp"
)

func TestProcess(t *testing.T) {
	raw := []lsp.Diagnostic{{Code: "ruleA"}, {Code: "ruleB"}}

	got, status := Process(raw, inspection.NewSet("ruleA"))
	if len(got) != 1 || got[0].Code != "ruleB" {
		t.Fatalf("Process() = %+v, want only ruleB", got)
	}
	if status != inspection.StatusWarn {
		t.Errorf("status = %v, want warn", status)
	}
}

func TestProcessEmpty(t *testing.T) {
	got, status := Process([]lsp.Diagnostic{}, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if status != inspection.StatusOK {
		t.Errorf("status = %v, want ok", status)
	}
}

func TestProcessAllIgnored(t *testing.T) {
	got, status := Process([]lsp.Diagnostic{{Code: "a"}, {Code: "a"}}, inspection.NewSet("a"))
	if len(got) != 0 || status != inspection.StatusOK {
		t.Errorf("Process() = %d diagnostics, status %v; want 0, ok", len(got), status)
	}
}
