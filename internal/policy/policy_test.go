package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/sparql"
)

type fakeTxn string

func (f fakeTxn) ID() string { return string(f) }

func TestAutoGrant(t *testing.T) {
	p := sparql.Build(Auto(fakeTxn("t1"), mms.ScopeRepo, mms.RoleAdmin))

	assert.Equal(t, `graph m-graph:AccessControl.Policies {
    m-policy:AutoRepoOwner.t1 a mms:Policy ;
        mms:subject mu: ;
        mms:scope mor: ;
        mms:role mms-object:Role.Admin .
}`, p.String())
}

func TestAutoGrantIsNamespacedByTransaction(t *testing.T) {
	assert.NotEqual(t, IRI(fakeTxn("t1"), mms.ScopeOrg), IRI(fakeTxn("t2"), mms.ScopeOrg))
}

func TestDefinitionsCoverEveryRole(t *testing.T) {
	text := sparql.Build(Definitions).String()

	for _, role := range mms.Roles {
		assert.Contains(t, text, role.Prefixed()+" a mms:Role")
	}
	assert.Equal(t, len(mms.RolePermissions[mms.RoleAdmin])+
		len(mms.RolePermissions[mms.RoleWrite])+
		len(mms.RolePermissions[mms.RoleRead]),
		strings.Count(text, "mms-object:Permission."))
}
