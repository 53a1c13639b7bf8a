// Package inspection holds the domain model of a DeepScan inspection: the
// settings snapshot it runs against, the document it submits, the alarms the
// remote service returns and the status reported back to the editor.
package inspection

import (
	"slices"
	"sort"
	"strings"
)

// DiagnosticSource is the source attached to every published diagnostic.
const DiagnosticSource = "deepscan"

// DefaultFileSuffixes are inspected without any configuration. Suffixes are
// used instead of language ids because a language id needs the language
// extension to be installed in the editor.
var DefaultFileSuffixes = []string{".js", ".jsx", ".ts", ".tsx", ".vue", ".mjs"}

// Set is an immutable-by-convention string set.
type Set map[string]struct{}

// NewSet builds a Set from items, ignoring empty strings.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		if it == "" {
			continue
		}
		s[it] = struct{}{}
	}
	return s
}

// Has reports whether item is in the set. A nil set contains nothing.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets contain the same members.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// Settings is the snapshot an inspection runs against. A Settings value is
// never mutated after it is published; updates build a new value.
type Settings struct {
	Enabled             bool
	ServerURL           string
	ProxyURL            string
	AccessToken         string
	UserAgent           string
	IgnoredRuleCodes    Set
	IgnoredPathPatterns []string
	WorkspaceRoot       string // ignore patterns are relative to this path

	// RecognizedFileSuffixes is the union of the default and extra suffixes.
	RecognizedFileSuffixes Set
	// ExtraFileSuffixes are user-configured suffixes submitted as JavaScript.
	ExtraFileSuffixes Set
}

// NewSettings returns enabled settings for serverURL recognizing the default
// suffixes plus extra.
func NewSettings(serverURL string, extra ...string) Settings {
	return Settings{
		Enabled:                true,
		ServerURL:              NormalizeServerURL(serverURL),
		IgnoredRuleCodes:       NewSet(),
		RecognizedFileSuffixes: NewSet(append(slices.Clone(DefaultFileSuffixes), extra...)...),
		ExtraFileSuffixes:      NewSet(extra...),
	}
}

// WithFileSuffixes returns a copy recognizing the defaults plus extra.
func (s Settings) WithFileSuffixes(extra []string) Settings {
	return s.WithSuffixSets(DefaultFileSuffixes, extra)
}

// WithSuffixSets returns a copy recognizing defaults plus extra. Only the
// extra suffixes are submitted as JavaScript.
func (s Settings) WithSuffixSets(defaults, extra []string) Settings {
	s.ExtraFileSuffixes = NewSet(extra...)
	s.RecognizedFileSuffixes = NewSet(append(slices.Clone(defaults), extra...)...)
	return s
}

// WithToken returns a copy using token for authentication.
func (s Settings) WithToken(token string) Settings {
	s.AccessToken = strings.TrimSpace(token)
	return s
}

// HasToken reports whether an access token is configured.
func (s Settings) HasToken() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// SameTarget reports whether other would produce the same inspection results,
// i.e. re-inspecting open documents after switching to other is pointless.
func (s Settings) SameTarget(other Settings) bool {
	return s.Enabled == other.Enabled &&
		s.ServerURL == other.ServerURL &&
		s.ProxyURL == other.ProxyURL &&
		s.AccessToken == other.AccessToken &&
		s.IgnoredRuleCodes.Equal(other.IgnoredRuleCodes) &&
		slices.Equal(s.IgnoredPathPatterns, other.IgnoredPathPatterns) &&
		s.WorkspaceRoot == other.WorkspaceRoot &&
		s.RecognizedFileSuffixes.Equal(other.RecognizedFileSuffixes)
}

// NormalizeServerURL strips surrounding whitespace and trailing slashes.
func NormalizeServerURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
