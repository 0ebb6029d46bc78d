// Package condition defines named preconditions and permission checks that
// gate a mutation, and renders them in two forms.
//
// The guard form joins every condition's pattern into the WHERE clause of an
// update. If any condition does not hold, the WHERE clause matches nothing
// and the update inserts nothing. The diagnostic form renders each condition
// as a labeled union branch of the verify query, so the executor can tell
// which conditions held once the update is known not to have applied.
//
// Groups are immutable values. Append returns a new group and never mutates
// its receiver, so shared bases like RepoCRUD are specialized per operation.
package condition

import (
	"fmt"
	"strings"

	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
)

// PassVar is the variable bound to a condition key in diagnostic branches.
const PassVar = "?__mms_pass"

// Kind distinguishes permission checks from business preconditions.
type Kind int

const (
	// KindPermit asserts the actor holds a permission over a scope.
	KindPermit Kind = iota

	// KindRequire asserts an arbitrary graph pattern.
	KindRequire
)

func (k Kind) String() string {
	if k == KindPermit {
		return "permit"
	}
	return "require"
}

// MessageFunc renders a failure message from the resolved prefixes.
type MessageFunc func(prefixes *sparql.PrefixMap) string

// Condition is one named guard.
type Condition struct {
	Kind Kind

	// Key labels the condition in diagnostic output. Unique within a group.
	Key string

	// Reason classifies a failed require. Empty for permits.
	Reason mms.Reason

	// Permission and Scope are set for permits.
	Permission mms.Permission
	Scope      mms.ScopeKind

	pattern func(*sparql.Pattern)
	message MessageFunc
}

// Permit checks that the actor holds a role permitting permission on the
// addressed resource of kind scope or on any resource enclosing it.
func Permit(permission mms.Permission, scope mms.ScopeKind) Condition {
	suffix := string(permission) + "_" + string(scope)
	policy := "?__mms_policy_" + suffix
	scopeVar := "?__mms_scope_" + suffix
	role := "?__mms_role_" + suffix

	return Condition{
		Kind:       KindPermit,
		Key:        "permit" + string(permission) + "On" + string(scope),
		Permission: permission,
		Scope:      scope,
		pattern: func(p *sparql.Pattern) {
			p.Graph("m-graph:"+mms.GraphPolicies, func(g *sparql.Pattern) {
				g.Rawf("%s mms:subject mu: ;\n    mms:scope %s ;\n    mms:role %s .", policy, scopeVar, role)
			})
			p.Values(scopeVar, scope.Lineage()...)
			p.Graph("m-graph:"+mms.GraphDefinitions, func(g *sparql.Pattern) {
				g.Rawf("%s mms:permits %s .", role, permission.Prefixed())
			})
		},
		message: func(prefixes *sparql.PrefixMap) string {
			return fmt.Sprintf("User %s is not permitted to %s on %s",
				prefixes.Ref("mu:"), permission, prefixes.Ref(scope.Prefix()))
		},
	}
}

// Require checks an arbitrary pattern. The pattern must bind only
// ?__mms_-prefixed variables so it cannot collide with caller variables.
func Require(key string, reason mms.Reason, pattern func(*sparql.Pattern), message MessageFunc) Condition {
	return Condition{
		Kind:    KindRequire,
		Key:     key,
		Reason:  reason,
		pattern: pattern,
		message: message,
	}
}

// Pattern renders the condition's guard pattern.
func (c Condition) Pattern() *sparql.Pattern {
	return sparql.Build(c.pattern)
}

// Message renders the failure message.
func (c Condition) Message(prefixes *sparql.PrefixMap) string {
	if c.message == nil {
		return fmt.Sprintf("Condition %q was not satisfied", c.Key)
	}
	return c.message(prefixes)
}

// Err builds the error reported when this condition fails.
func (c Condition) Err(prefixes *sparql.PrefixMap) *mms.Error {
	if c.Kind == KindPermit {
		return mms.NewPermissionDenied(c.Key, c.Message(prefixes))
	}
	return mms.NewConditionError(c.Reason, c.Key, c.Message(prefixes))
}

// inspect renders the labeled diagnostic branch.
func (c Condition) inspect() *sparql.Pattern {
	p := c.Pattern()
	p.Bind(sparql.QuoteLiteral(c.Key), PassVar)
	return p
}

// Group is an ordered, immutable set of conditions keyed by Key.
type Group struct {
	conds []Condition
}

// NewGroup creates a group from conds.
func NewGroup(conds ...Condition) Group {
	return Group{}.Append(conds...)
}

// Append returns a new group holding g's conditions followed by conds. A
// condition whose key is already present replaces the earlier one in place.
func (g Group) Append(conds ...Condition) Group {
	out := make([]Condition, len(g.conds), len(g.conds)+len(conds))
	copy(out, g.conds)

next:
	for _, c := range conds {
		for i := range out {
			if out[i].Key == c.Key {
				out[i] = c
				continue next
			}
		}
		out = append(out, c)
	}
	return Group{conds: out}
}

// Conditions returns a copy of the conditions in declaration order.
func (g Group) Conditions() []Condition {
	out := make([]Condition, len(g.conds))
	copy(out, g.conds)
	return out
}

// Len returns the number of conditions.
func (g Group) Len() int {
	return len(g.conds)
}

// Keys returns condition keys in declaration order.
func (g Group) Keys() []string {
	keys := make([]string, len(g.conds))
	for i, c := range g.conds {
		keys[i] = c.Key
	}
	return keys
}

// Guard appends every condition's pattern to p, conjunctively.
func (g Group) Guard(p *sparql.Pattern) {
	for _, c := range g.conds {
		p.Append(c.Pattern())
	}
}

// Inspect returns one diagnostic branch per condition, in declaration order.
// A branch yields <urn:mms:inspect> <urn:mms:pass> "key" when its condition
// holds.
func (g Group) Inspect() []*sparql.Pattern {
	out := make([]*sparql.Pattern, len(g.conds))
	for i, c := range g.conds {
		out[i] = c.inspect()
	}
	return out
}

// Failures returns the conditions absent from passed, in declaration order.
func (g Group) Failures(passed map[string]bool) []Condition {
	var out []Condition
	for _, c := range g.conds {
		if !passed[c.Key] {
			out = append(out, c)
		}
	}
	return out
}

// Explain returns the error for the first failed condition in declaration
// order, or nil when every condition passed.
func (g Group) Explain(passed map[string]bool, prefixes *sparql.PrefixMap) error {
	failed := g.Failures(passed)
	if len(failed) == 0 {
		return nil
	}
	return failed[0].Err(prefixes)
}

func (g Group) String() string {
	parts := make([]string, len(g.conds))
	for i, c := range g.conds {
		parts[i] = c.Kind.String() + "(" + c.Key + ")"
	}
	return "[" + strings.Join(parts, " ") + "]"
}
