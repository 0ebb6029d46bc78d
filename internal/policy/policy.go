// Package policy renders grant triples. Auto grants are folded into the
// same insert that creates a resource, so a resource never exists without
// an owner.
package policy

import (
	"fmt"
	"strings"

	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
)

// Transaction is the slice of txn.Context the injector needs.
type Transaction interface {
	ID() string
}

// IRI returns the prefixed name of the policy auto-created for the actor
// when tx creates a resource of kind scope. It is namespaced by the
// transaction id so concurrent creations never mint the same policy.
func IRI(tx Transaction, scope mms.ScopeKind) string {
	return fmt.Sprintf("m-policy:Auto%sOwner.%s", scope, tx.ID())
}

// Auto appends the grant giving the actor role over the resource of kind
// scope addressed by tx. Call it inside the creating insert template.
func Auto(tx Transaction, scope mms.ScopeKind, role mms.Role) func(*sparql.Pattern) {
	return func(p *sparql.Pattern) {
		p.Graph("m-graph:"+mms.GraphPolicies, func(g *sparql.Pattern) {
			g.Raw(Grant(IRI(tx, scope), "mu:", scope.Prefix(), role))
		})
	}
}

// Grant renders one policy node.
func Grant(policy, subject, scope string, role mms.Role) string {
	return fmt.Sprintf("%s a mms:Policy ;\n    mms:subject %s ;\n    mms:scope %s ;\n    mms:role %s .",
		policy, subject, scope, role.Prefixed())
}

// Definitions renders the role to permission triples seeded at bootstrap.
func Definitions(p *sparql.Pattern) {
	p.Graph("m-graph:"+mms.GraphDefinitions, func(g *sparql.Pattern) {
		for _, role := range mms.Roles {
			perms := mms.RolePermissions[role]
			objects := make([]string, len(perms))
			for i, perm := range perms {
				objects[i] = perm.Prefixed()
			}
			g.Rawf("%s a mms:Role ;\n    mms:permits %s .", role.Prefixed(), strings.Join(objects, ",\n        "))
		}
	})
}
