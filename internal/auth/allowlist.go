package auth

import (
	"sort"
	"strings"
)

// AllowList restricts sign-in to a set of email domains and individual
// addresses. An empty list admits everyone.
type AllowList struct {
	domains map[string]bool
	emails  map[string]bool
}

// NewAllowList accepts entries such as "example.com" or "someone@example.org".
// Blank entries are skipped.
func NewAllowList(entries []string) *AllowList {
	a := &AllowList{domains: map[string]bool{}, emails: map[string]bool{}}
	for _, entry := range entries {
		e := strings.ToLower(strings.TrimSpace(entry))
		e = strings.TrimPrefix(e, "@")
		if e == "" {
			continue
		}
		if strings.Contains(e, "@") {
			a.emails[e] = true
		} else {
			a.domains[e] = true
		}
	}
	return a
}

func (a *AllowList) Empty() bool {
	return len(a.domains) == 0 && len(a.emails) == 0
}

// Member reports whether email may sign in. The domain must match the part
// after "@" exactly; subdomains and suffixes do not count.
func (a *AllowList) Member(email string) bool {
	if a.Empty() {
		return true
	}
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return false
	}
	return a.domains[domain] || a.emails[email]
}

// Domains returns the allowed domains, sorted.
func (a *AllowList) Domains() []string {
	out := make([]string, 0, len(a.domains))
	for d := range a.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
