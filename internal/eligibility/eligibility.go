// Package eligibility decides which allow list a member qualifies for.
package eligibility

import (
	"errors"
	"fmt"
)

// Policy selects the winning role when a member holds several recognized roles.
type Policy string

const (
	// PolicyPriority picks the recognized role listed first in configuration.
	PolicyPriority Policy = "priority"
	// PolicyLastMatch picks the last recognized role in the member's own role
	// order, as reported by the chat platform.
	PolicyLastMatch Policy = "last_match"
)

// ErrNoRecognizedRoles is returned when a resolver is built from an empty list.
var ErrNoRecognizedRoles = errors.New("no recognized roles configured")

// ParsePolicy converts a configuration string into a Policy.
// An empty string selects PolicyPriority.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyPriority:
		return PolicyPriority, nil
	case PolicyLastMatch:
		return PolicyLastMatch, nil
	default:
		return "", fmt.Errorf("unknown eligibility policy %q", s)
	}
}

// Resolver maps a member's roles to a single list name.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	recognized []string
	rank       map[string]int
	policy     Policy
}

// New builds a Resolver over recognized, which is ordered by priority.
// Duplicate names keep their first position.
func New(recognized []string, policy Policy) (*Resolver, error) {
	if len(recognized) == 0 {
		return nil, ErrNoRecognizedRoles
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = PolicyPriority
	}

	r := &Resolver{
		recognized: make([]string, 0, len(recognized)),
		rank:       make(map[string]int, len(recognized)),
		policy:     policy,
	}
	for _, name := range recognized {
		if _, dup := r.rank[name]; dup {
			continue
		}
		r.rank[name] = len(r.recognized)
		r.recognized = append(r.recognized, name)
	}
	return r, nil
}

// Resolve returns the list userRoles qualifies for.
// The boolean is false when no held role is recognized, which is the normal
// "ineligible" answer rather than a failure.
func (r *Resolver) Resolve(userRoles []string) (string, bool) {
	best := -1
	for _, role := range userRoles {
		idx, ok := r.rank[role]
		if !ok {
			continue
		}
		switch r.policy {
		case PolicyLastMatch:
			best = idx
		default:
			if best == -1 || idx < best {
				best = idx
			}
		}
	}
	if best == -1 {
		return "", false
	}
	return r.recognized[best], true
}

// Recognized returns a copy of the recognized roles in priority order.
func (r *Resolver) Recognized() []string {
	out := make([]string, len(r.recognized))
	copy(out, r.recognized)
	return out
}

// Held returns the recognized roles among userRoles, in priority order.
func (r *Resolver) Held(userRoles []string) []string {
	held := make(map[string]bool, len(userRoles))
	for _, role := range userRoles {
		held[role] = true
	}

	var out []string
	for _, name := range r.recognized {
		if held[name] {
			out = append(out, name)
		}
	}
	return out
}

// Policy returns the tie-break policy in use.
func (r *Resolver) Policy() Policy {
	return r.policy
}
