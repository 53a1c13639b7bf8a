package service

import (
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
)

// Trigger is the editor event that asked for an inspection.
type Trigger int

const (
	TriggerOpen Trigger = iota
	TriggerSave
	// TriggerCommand is an explicit deepscan.tryInspect request.
	TriggerCommand
	// TriggerConfig re-inspects open documents after a settings change.
	TriggerConfig
)

func (t Trigger) String() string {
	switch t {
	case TriggerOpen:
		return "open"
	case TriggerSave:
		return "save"
	case TriggerCommand:
		return "command"
	case TriggerConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Limits bound the documents submitted to the server.
type Limits struct {
	MaxLines int
	MaxChars int
}

// DefaultLimits are used for zero fields.
var DefaultLimits = Limits{MaxLines: 10000, MaxChars: 500000}

// Decision is the verdict of the gate. The zero value proceeds.
type Decision struct {
	Reason inspection.SkipReason
}

// Proceed reports whether the document should be submitted.
func (d Decision) Proceed() bool { return d.Reason == "" }

func skip(reason inspection.SkipReason) Decision { return Decision{Reason: reason} }

// Gate decides whether a document is inspected at all.
type Gate struct {
	limits Limits
}

// NewGate returns a gate enforcing limits.
func NewGate(limits Limits) *Gate {
	if limits.MaxLines <= 0 {
		limits.MaxLines = DefaultLimits.MaxLines
	}
	if limits.MaxChars <= 0 {
		limits.MaxChars = DefaultLimits.MaxChars
	}
	return &Gate{limits: limits}
}

// Limits returns the limits the gate enforces.
func (g *Gate) Limits() Limits { return g.limits }

// Check runs the checks in order; the first failing check names the reason.
// The suffix check does not apply to explicit commands, and the token check
// comes last so that uninteresting documents never nag about the token.
func (g *Gate) Check(trigger Trigger, doc inspection.Document, s inspection.Settings) Decision {
	if !s.Enabled {
		return skip(inspection.SkipDisabled)
	}
	if trigger != TriggerCommand && !s.RecognizedFileSuffixes.Has(doc.Suffix()) {
		return skip(inspection.SkipUnsupportedSuffix)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return skip(inspection.SkipEmpty)
	}
	if MatchesIgnorePattern(s.IgnoredPathPatterns, doc.Path(), s.WorkspaceRoot) {
		return skip(inspection.SkipIgnoredPattern)
	}
	if doc.LineCount > g.limits.MaxLines {
		return skip(inspection.SkipTooManyLines)
	}
	if inspection.CountChars(doc.Text) > g.limits.MaxChars {
		return skip(inspection.SkipTooLarge)
	}
	if !s.HasToken() {
		return skip(inspection.SkipEmptyToken)
	}
	return Decision{}
}

// MatchesIgnorePattern applies gitignore-style patterns to docPath, taken
// relative to root when it lies below it. A pattern without a slash matches
// at any depth, a leading slash anchors it to the root, a trailing slash
// matches directories only and a leading "!" re-includes. The last matching
// pattern wins.
func MatchesIgnorePattern(patterns []string, docPath, root string) bool {
	rel := relativePath(docPath, root)
	ignored := false
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		negate := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(p, "!")

		dirOnly := strings.HasSuffix(p, "/")
		p = strings.TrimSuffix(p, "/")
		anchored := strings.HasPrefix(p, "/")
		p = strings.TrimPrefix(p, "/")
		if p == "" {
			continue
		}
		if !anchored && !strings.Contains(p, "/") {
			p = "**/" + p
		}

		if matchParentDir(p, rel) || (!dirOnly && matchGlob(p, rel)) {
			ignored = !negate
		}
	}
	return ignored
}

// matchParentDir reports whether pattern matches a directory containing rel.
func matchParentDir(pattern, rel string) bool {
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && matchGlob(pattern, rel[:i]) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		slog.Debug("ignore pattern invalid", "pattern", pattern, "error", err)
		return false
	}
	return ok
}

func relativePath(docPath, root string) string {
	root = strings.TrimSuffix(root, "/")
	if root != "" && strings.HasPrefix(docPath, root+"/") {
		return docPath[len(root)+1:]
	}
	return strings.TrimPrefix(docPath, "/")
}
