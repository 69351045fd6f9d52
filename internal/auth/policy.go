package auth

import (
	"net/http"
	"strings"
)

// Rule grants access to requests matching Method (empty for any), Prefix and Suffix.
type Rule struct {
	Method string
	Prefix string
	Suffix string
	Role   Role
}

func (r Rule) matches(req *http.Request) bool {
	if r.Method != "" && r.Method != req.Method {
		return false
	}
	return strings.HasPrefix(req.URL.Path, r.Prefix) && strings.HasSuffix(req.URL.Path, r.Suffix)
}

// Policy maps requests to the minimum role. The first matching rule wins.
type Policy struct {
	exempt map[string]struct{}
	rules  []Rule
}

// NewDefaultPolicy protects the report API: triggering runs needs operator, reading needs viewer.
// Paths in exempt skip authentication entirely.
func NewDefaultPolicy(exempt ...string) Policy {
	set := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		set[path] = struct{}{}
	}
	return Policy{
		exempt: set,
		rules: []Rule{
			{Method: http.MethodPost, Prefix: "/api/v1/jobs/", Suffix: "/run", Role: RoleOperator},
			{Method: http.MethodGet, Prefix: "/api/", Role: RoleViewer},
			{Method: http.MethodHead, Prefix: "/api/", Role: RoleViewer},
			{Prefix: "/api/", Role: RoleOperator},
		},
	}
}

// IsExempt reports whether the request skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	_, ok := p.exempt[r.URL.Path]
	return ok
}

// RequiredRole returns the role a request needs, or false when no rule applies.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range p.rules {
		if rule.matches(r) {
			return rule.Role, true
		}
	}
	return "", false
}
