package txn

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/mms"
)

func testParams(ids ...string) Params {
	return Params{
		RootIRI:   "https://mms.test/",
		ServiceID: "mms-test",
		Actor:     "alice",
		Scope:     mms.Scope{Org: "o", Repo: "r"},
		Request: Request{
			Path:        "/orgs/o/repos/r",
			Method:      "PUT",
			Body:        "{}",
			ContentType: "application/json",
		},
		Now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		IDs: NewFixedGenerator(ids...),
	}
}

func TestAuditInsertGolden(t *testing.T) {
	tx := New(testParams("t1"))

	text, err := tx.Render(tx.Update().InsertData(tx.Audit).String(), nil)
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "audit_insert", []byte(text+"\n"))
}

func TestCommitIDDefaultsToTransactionID(t *testing.T) {
	tx := New(testParams("t1"))
	assert.Equal(t, "t1", tx.ID())
	assert.Equal(t, "t1", tx.CommitID())

	p := testParams("t2")
	p.Scope.Commit = "c9"
	tx = New(p)
	assert.Equal(t, "t2", tx.ID())
	assert.Equal(t, "c9", tx.CommitID())
	assert.Equal(t, "https://mms.test/orgs/o/repos/r/commits/c9", tx.IRI("morc:"))
}

func TestScopeIRIsAreDeterministic(t *testing.T) {
	a := New(testParams("t1"))
	b := New(testParams("t2"))

	for _, name := range []string{"mo", "mor", "mor-graph", "mu", "m-graph"} {
		assert.Equal(t, a.Prefixes().IRI(name), b.Prefixes().IRI(name), name)
	}
	assert.NotEqual(t, a.Prefixes().IRI("mt"), b.Prefixes().IRI("mt"))
}

func TestPrefixesFollowScope(t *testing.T) {
	p := testParams("t1")
	p.Scope = mms.Scope{Org: "o"}
	tx := New(p)
	assert.Equal(t, "", tx.Prefixes().IRI("mor"))

	p = testParams("t2")
	p.Scope = mms.Scope{Org: "o", Repo: "r", Branch: "b", Commit: "c", Lock: "l"}
	tx = New(p)
	assert.Equal(t, "https://mms.test/orgs/o/repos/r/branches/b", tx.IRI("morb:"))
	assert.Equal(t, "https://mms.test/orgs/o/repos/r/commits/c/locks/l", tx.IRI("morcl:"))
}

func TestFork(t *testing.T) {
	parent := New(testParams("t1", "t2"))
	parent.Update().InsertData(nil)

	child := parent.Fork(mms.Scope{Org: "o", Repo: "r", Lock: "l"})
	assert.Equal(t, "t2", child.ID())
	assert.Equal(t, "t1", child.CommitID(), "commit id carries over")
	assert.Equal(t, "alice", child.Actor())
	assert.Equal(t, 0, child.Clauses().Count(), "fresh clause counter")
	assert.Equal(t, 1, parent.Clauses().Count())
}

func TestParamsBindScopeIDs(t *testing.T) {
	p := testParams("t1")
	p.CommitMessage = "first"
	tx := New(p)

	out, err := tx.Params().Apply("?_orgId ?_repoId ?_branchId ?_commitMessage ?_userId")
	require.NoError(t, err)
	assert.Equal(t, `"o" "r" ?_branchId "first" "alice"`, out)
}

func TestFixedGeneratorPanicsWhenExhausted(t *testing.T) {
	gen := NewFixedGenerator("only")
	assert.Equal(t, "only", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		require.Len(t, id, 36)
		require.False(t, seen[id])
		seen[id] = true
	}
}
