package pipeline

import "strings"

// AllowList holds URL substrings of requests that never carry the credential.
// A nil AllowList matches nothing.
type AllowList struct {
	patterns []string
}

// NewAllowList drops blank and duplicate patterns.
func NewAllowList(patterns ...string) *AllowList {
	a := &AllowList{}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		a.patterns = append(a.patterns, p)
	}
	return a
}

// Match reports whether rawURL contains any pattern.
func (a *AllowList) Match(rawURL string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.patterns {
		if strings.Contains(rawURL, p) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the allow-listed substrings.
func (a *AllowList) Patterns() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.patterns...)
}
