package resource

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/store"
	"github.com/roach88/mms/internal/testutil"
)

// cluster is a bootstrapped service over a fresh Fuseki dataset, with org
// "o" and repo "r" created by alice.
type cluster struct {
	svc   *Service
	store store.Store
}

func startCluster(t *testing.T) *cluster {
	t.Helper()
	f := testutil.StartFuseki(t)
	c := &cluster{
		svc:   New(engine.New(f.Store), Config{RootIRI: root, ServiceID: "mms-e2e"}),
		store: f.Store,
	}

	ctx := context.Background()
	_, err := c.svc.Bootstrap(ctx, alice(mms.Scope{}))
	require.NoError(t, err)
	_, err = c.svc.CreateOrg(ctx, alice(mms.Scope{Org: "o"}), OrgInput{Title: "O"})
	require.NoError(t, err)
	_, err = c.svc.CreateRepo(ctx, alice(mms.Scope{Org: "o", Repo: "r"}), RepoInput{Title: "R"})
	require.NoError(t, err)
	return c
}

// count returns the number of triples matching pattern in graph.
func (c *cluster) count(t *testing.T, graph, pattern string) int {
	t.Helper()
	g, err := c.store.Construct(context.Background(), fmt.Sprintf(
		"construct { ?s ?p ?o } where { graph <%s> { %s } }", graph, pattern))
	require.NoError(t, err)
	return g.Len()
}

func TestFuseki_BootstrapOnce(t *testing.T) {
	c := startCluster(t)

	_, err := c.svc.Bootstrap(context.Background(), alice(mms.Scope{}))
	assert.True(t, mms.IsReason(err, mms.ReasonAlreadyExists))
}

func TestFuseki_RepoCreatedTwice(t *testing.T) {
	c := startCluster(t)
	ctx := context.Background()
	scope := mms.Scope{Org: "o", Repo: "twice"}
	twice := root + "/orgs/o/repos/twice"

	res, err := c.svc.CreateRepo(ctx, alice(scope), RepoInput{
		Title:    "first",
		Metadata: patch(t, "<"+twice+"> <urn:mms:tag> \"green\" .\n"),
	})
	require.NoError(t, err)

	// The owner grant is part of the verify read that confirmed creation.
	grants := res.Graph.Subjects(mms.PropScope, twice)
	require.Len(t, grants, 1)
	assert.True(t, res.Graph.Has(grants[0].String(), mms.PropRole, adminRole))
	assert.True(t, res.Graph.Has(grants[0].String(), mms.PropSubject, root+"/users/alice"))

	_, err = c.svc.CreateRepo(ctx, alice(scope), RepoInput{Title: "second"})
	require.Error(t, err)
	assert.True(t, mms.IsReason(err, mms.ReasonAlreadyExists))

	got, err := c.svc.GetRepo(ctx, alice(scope))
	require.NoError(t, err)
	titles := got.Graph.Objects(twice, mms.PropTitle)
	require.Len(t, titles, 1, "no duplicate resource")
	assert.Equal(t, "first", titles[0].String())
	assert.True(t, got.Graph.Has(twice, "urn:mms:tag", "green"), "caller metadata stored")
	assert.Len(t, got.Graph.Subjects(mms.PropScope, twice), 1, "no duplicate grant")
}

func TestFuseki_ConcurrentCreateOrg(t *testing.T) {
	c := startCluster(t)
	const n = 8

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.svc.CreateOrg(context.Background(), alice(mms.Scope{Org: "race"}), OrgInput{Title: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		assert.True(t, mms.IsReason(err, mms.ReasonAlreadyExists), "got %v", err)
	}
	assert.Equal(t, 1, committed)

	org := root + "/orgs/race"
	assert.Equal(t, 1, c.count(t, root+"/graphs/Cluster", fmt.Sprintf("?s ?p ?o . filter(?s = <%s> && ?p = <%s>)", org, mms.RDFType)))
	assert.Equal(t, 1, c.count(t, root+"/graphs/AccessControl.Policies", fmt.Sprintf("?s ?p ?o . filter(?p = <%s> && ?o = <%s>)", mms.PropScope, org)))
}

func TestFuseki_LockExclusivity(t *testing.T) {
	c := startCluster(t)
	ctx := context.Background()

	head, err := c.svc.GetBranch(ctx, alice(mms.Scope{Org: "o", Repo: "r", Branch: "master"}))
	require.NoError(t, err)

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.svc.CreateLock(ctx, alice(mms.Scope{
				Org: "o", Repo: "r", Commit: head.CommitID, Lock: fmt.Sprintf("l%d", i),
			}))
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		assert.True(t, mms.IsCategory(err, mms.CategoryConflict), "got %v", err)
	}
	assert.Equal(t, 1, committed)
}

func TestFuseki_DeleteLock(t *testing.T) {
	c := startCluster(t)
	ctx := context.Background()

	head, err := c.svc.GetBranch(ctx, alice(mms.Scope{Org: "o", Repo: "r", Branch: "master"}))
	require.NoError(t, err)
	scope := mms.Scope{Org: "o", Repo: "r", Commit: head.CommitID, Lock: "held"}

	_, err = c.svc.CreateLock(ctx, alice(scope))
	require.NoError(t, err)

	_, err = c.svc.DeleteLock(ctx, Request{Actor: "bob", Scope: scope})
	require.Error(t, err)
	assert.True(t, mms.IsCategory(err, mms.CategoryPermissionDenied))
	assert.Contains(t, mms.PublicMessage(err), fmt.Sprintf("<%s/commits/%s/locks/held>", repo, head.CommitID))

	_, err = c.svc.DeleteLock(ctx, alice(scope))
	require.NoError(t, err)

	_, err = c.svc.GetLock(ctx, alice(scope))
	assert.True(t, mms.IsReason(err, mms.ReasonNotFound))

	_, err = c.svc.DeleteLock(ctx, alice(scope))
	require.Error(t, err)
	assert.True(t, mms.IsCategory(err, mms.CategoryPreconditionFailed))
	assert.True(t, mms.IsReason(err, mms.ReasonNotFound))
}

func TestFuseki_AuditGraphCleaned(t *testing.T) {
	c := startCluster(t)
	ctx := context.Background()

	// A mix of committed and failed requests.
	_, _ = c.svc.CreateOrg(ctx, alice(mms.Scope{Org: "o"}), OrgInput{})
	_, _ = c.svc.CreateOrg(ctx, Request{Actor: "bob", Scope: mms.Scope{Org: "p"}}, OrgInput{})
	_, _ = c.svc.CreateBranch(ctx, alice(mms.Scope{Org: "o", Repo: "r", Branch: "b"}), BranchInput{})
	_, _ = c.svc.Commit(ctx, alice(mms.Scope{Org: "o", Repo: "r", Branch: "b"}), CommitInput{
		Insert: patch(t, `<urn:mms:s> <urn:mms:p> "x" .`+"\n"),
	})

	assert.Equal(t, 0, c.count(t, root+"/graphs/Transactions", "?s ?p ?o"))
}

func TestFuseki_BranchFromSecondCommit(t *testing.T) {
	c := startCluster(t)
	ctx := context.Background()
	masterScope := mms.Scope{Org: "o", Repo: "r", Branch: "master"}

	var commits []string
	for v := 1; v <= 5; v++ {
		in := CommitInput{
			Message: fmt.Sprintf("value %d", v),
			Insert:  patch(t, fmt.Sprintf(`<urn:mms:s> <urn:mms:p> "%d" .`+"\n", v)),
		}
		if v > 1 {
			in.Delete = patch(t, fmt.Sprintf(`<urn:mms:s> <urn:mms:p> "%d" .`+"\n", v-1))
		}
		res, err := c.svc.Commit(ctx, alice(masterScope), in)
		require.NoError(t, err, "commit %d", v)
		commits = append(commits, res.CommitID)
	}

	// Every interim lock was released.
	assert.Equal(t, 0, c.count(t, repo+"/graphs/Metadata", fmt.Sprintf("?s ?p ?o . ?s a <%s>", mms.ClassLock)))

	restore := mms.Scope{Org: "o", Repo: "r", Branch: "restore"}
	_, err := c.svc.CreateBranch(ctx, alice(restore), BranchInput{Title: "restore", Commit: commits[1]})
	require.NoError(t, err)

	got, err := c.svc.ReadBranchGraph(ctx, alice(restore))
	require.NoError(t, err)
	assert.Equal(t, commits[1], got.CommitID)

	values := got.Graph.Objects("urn:mms:s", "urn:mms:p")
	require.Len(t, values, 1)
	assert.Equal(t, "2", values[0].String())

	latest, err := c.svc.ReadBranchGraph(ctx, alice(masterScope))
	require.NoError(t, err)
	assert.True(t, latest.Graph.Has("urn:mms:s", "urn:mms:p", "5"))
	assert.Equal(t, 1, latest.Graph.Len())
}
