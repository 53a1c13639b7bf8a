package debugserver

import (
	"net/http"
	"time"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
	"github.com/Strob0t/deepscan-ls/internal/service"
)

// StatusSource reports the latest status of every inspected document.
type StatusSource interface {
	Snapshot() []service.DocumentStatus
}

// Handlers serves the read-only debug endpoints.
type Handlers struct {
	Statuses StatusSource
	Settings func() inspection.Settings
	// Connections reports the number of websocket observers; may be nil.
	Connections func() int
	Version     string
	Started     time.Time
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Documents   int    `json:"documents"`
	Connections int    `json:"connections"`
}

// Health reports liveness plus a few counters.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   h.Version,
		Documents: len(h.Statuses.Snapshot()),
	}
	if !h.Started.IsZero() {
		resp.Uptime = time.Since(h.Started).Round(time.Second).String()
	}
	if h.Connections != nil {
		resp.Connections = h.Connections()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Documents lists the latest status per document URI.
func (h *Handlers) Documents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Statuses.Snapshot())
}

type settingsResponse struct {
	Enabled        bool     `json:"enabled"`
	Server         string   `json:"server"`
	Proxy          string   `json:"proxy,omitempty"`
	UserAgent      string   `json:"user_agent"`
	HasToken       bool     `json:"has_token"`
	IgnoreRules    []string `json:"ignore_rules"`
	IgnorePatterns []string `json:"ignore_patterns"`
	FileSuffixes   []string `json:"file_suffixes"`
	ExtraSuffixes  []string `json:"extra_file_suffixes"`
	WorkspaceRoot  string   `json:"workspace_root,omitempty"`
}

// CurrentSettings shows the effective settings. The token itself is never
// included.
func (h *Handlers) CurrentSettings(w http.ResponseWriter, _ *http.Request) {
	if h.Settings == nil {
		writeError(w, http.StatusNotFound, "settings not available")
		return
	}
	s := h.Settings()
	patterns := s.IgnoredPathPatterns
	if patterns == nil {
		patterns = []string{}
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		Enabled:        s.Enabled,
		Server:         s.ServerURL,
		Proxy:          s.ProxyURL,
		UserAgent:      s.UserAgent,
		HasToken:       s.HasToken(),
		IgnoreRules:    s.IgnoredRuleCodes.Sorted(),
		IgnorePatterns: patterns,
		FileSuffixes:   s.RecognizedFileSuffixes.Sorted(),
		ExtraSuffixes:  s.ExtraFileSuffixes.Sorted(),
		WorkspaceRoot:  s.WorkspaceRoot,
	})
}
