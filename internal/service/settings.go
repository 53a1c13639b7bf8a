package service

import (
	"github.com/Strob0t/deepscan-ls/internal/config"
	"github.com/Strob0t/deepscan-ls/internal/domain/inspection"
)

// SettingsFromConfig builds the settings used before the editor pushes any.
func SettingsFromConfig(c config.DeepScan) inspection.Settings {
	s := inspection.NewSettings(c.Server, c.FileSuffixes...)
	s.ProxyURL = c.Proxy
	s.UserAgent = c.UserAgent
	s.IgnoredRuleCodes = inspection.NewSet(c.IgnoreRules...)
	s.IgnoredPathPatterns = c.IgnorePatterns
	return s.WithToken(c.AccessToken)
}

// SettingsPatch holds values pushed by the editor. Nil fields keep the
// value of the settings the patch is applied to.
type SettingsPatch struct {
	Enabled   *bool
	ServerURL *string
	ProxyURL  *string
	UserAgent *string
	// DefaultSuffixes replaces the built-in recognized suffixes.
	DefaultSuffixes []string
	FileSuffixes    []string
	IgnoreRules     []string
	IgnorePatterns  []string
	WorkspaceRoot   *string
}

// Merge returns p overlaid with the fields set in o.
func (p SettingsPatch) Merge(o SettingsPatch) SettingsPatch {
	if o.Enabled != nil {
		p.Enabled = o.Enabled
	}
	if o.ServerURL != nil {
		p.ServerURL = o.ServerURL
	}
	if o.ProxyURL != nil {
		p.ProxyURL = o.ProxyURL
	}
	if o.UserAgent != nil {
		p.UserAgent = o.UserAgent
	}
	if o.DefaultSuffixes != nil {
		p.DefaultSuffixes = o.DefaultSuffixes
	}
	if o.FileSuffixes != nil {
		p.FileSuffixes = o.FileSuffixes
	}
	if o.IgnoreRules != nil {
		p.IgnoreRules = o.IgnoreRules
	}
	if o.IgnorePatterns != nil {
		p.IgnorePatterns = o.IgnorePatterns
	}
	if o.WorkspaceRoot != nil {
		p.WorkspaceRoot = o.WorkspaceRoot
	}
	return p
}

// Apply returns a copy of s with the patch applied. An empty server URL
// keeps the configured one.
func (p SettingsPatch) Apply(s inspection.Settings) inspection.Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.ServerURL != nil {
		if server := inspection.NormalizeServerURL(*p.ServerURL); server != "" {
			s.ServerURL = server
		}
	}
	if p.ProxyURL != nil {
		s.ProxyURL = *p.ProxyURL
	}
	if p.UserAgent != nil && *p.UserAgent != "" {
		s.UserAgent = *p.UserAgent
	}
	if p.DefaultSuffixes != nil || p.FileSuffixes != nil {
		defaults := inspection.DefaultFileSuffixes
		if p.DefaultSuffixes != nil {
			defaults = p.DefaultSuffixes
		}
		extra := s.ExtraFileSuffixes.Sorted()
		if p.FileSuffixes != nil {
			extra = p.FileSuffixes
		}
		s = s.WithSuffixSets(defaults, extra)
	}
	if p.IgnoreRules != nil {
		s.IgnoredRuleCodes = inspection.NewSet(p.IgnoreRules...)
	}
	if p.IgnorePatterns != nil {
		s.IgnoredPathPatterns = p.IgnorePatterns
	}
	if p.WorkspaceRoot != nil {
		s.WorkspaceRoot = *p.WorkspaceRoot
	}
	return s
}
