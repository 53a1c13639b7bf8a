package config

import (
	"fmt"
	"sync/atomic"
)

// Holder keeps the current Config and swaps it on Reload.
// Readers always see a complete, validated Config.
type Holder struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewHolder wraps an already loaded Config read from path.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// Get returns the current Config. Callers must not mutate it.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Path returns the YAML file the Holder reloads from.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the file and environment. On error the previous Config
// is kept.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", h.path, err)
	}
	h.cur.Store(cfg)
	return nil
}
