package lock

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/condition"
	"github.com/roach88/mms/internal/engine"
	"github.com/roach88/mms/internal/mms"
	"github.com/roach88/mms/internal/testutil"
	"github.com/roach88/mms/internal/txn"
)

const (
	root    = "https://mms.test"
	lockIRI = root + "/orgs/o/repos/r/commits/c1/locks/l1"
)

func lockTx(id string) *txn.Context {
	return txn.New(txn.Params{
		RootIRI: root,
		Actor:   "alice",
		Scope:   mms.Scope{Org: "o", Repo: "r", Commit: "c1", Lock: "l1"},
		Now:     time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		IDs:     txn.NewFixedGenerator(id),
	})
}

func verifyGraph(committed bool, id string, lines []string, passed ...string) string {
	var b strings.Builder
	if committed {
		fmt.Fprintf(&b, "<%s/transactions/%s> <%s> <%s> .\n", root, id, mms.RDFType, mms.ClassTransaction)
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	for _, k := range passed {
		fmt.Fprintf(&b, "<%s> <%s> %q .\n", mms.InspectSubject, mms.InspectPass, k)
	}
	return b.String()
}

func acquired(id string) []string {
	policy := root + "/policies/AutoLockOwner." + id
	return []string{
		fmt.Sprintf("<%s> <%s> <%s> .", lockIRI, mms.RDFType, mms.ClassLock),
		fmt.Sprintf("<%s> <%s> <%s> .", policy, mms.PropScope, lockIRI),
		fmt.Sprintf("<%s> <%s> <%sRole.Admin> .", policy, mms.PropRole, mms.NamespaceMMSObject),
	}
}

var callerGroup = condition.CommitCRUD.Append(condition.Permit(mms.PermissionCreateLock, mms.ScopeCommit))

func TestAcquireConditionsOrder(t *testing.T) {
	keys := AcquireConditions(callerGroup).Keys()
	assert.Equal(t, []string{
		"clusterInitialized", "orgExists", "repoExists", "commitExists",
		"permitCreateLockOnCommit", "targetNotLocked", "lockNotExists",
	}, keys)
}

func TestAcquire(t *testing.T) {
	fake := testutil.NewFakeStore().
		QueueGraph(verifyGraph(true, "t1", acquired("t1"), AcquireConditions(callerGroup).Keys()...))
	m := NewManager(engine.New(fake), nil)

	res, err := m.Acquire(context.Background(), AcquireRequest{
		Txn:        lockTx("t1"),
		Purpose:    PurposeHold,
		Conditions: callerGroup,
	})
	require.NoError(t, err)
	assert.True(t, res.Graph.Has(lockIRI, mms.RDFType, mms.ClassLock))

	apply := fake.Updates()[0]
	assert.Contains(t, apply, `mms:purpose "hold"`)
	assert.Contains(t, apply, `mms:id "l1"`)
	assert.Contains(t, apply, "m-policy:AutoLockOwner.t1 a mms:Policy")
	assert.Contains(t, apply, "mms:role mms-object:Role.Admin")
	assert.Contains(t, apply, "filter not exists")
}

func TestAcquire_HeldLockIsConflict(t *testing.T) {
	// Both exclusion and uniqueness fail for a racing acquire of the same lock.
	passed := []string{"clusterInitialized", "orgExists", "repoExists", "commitExists", "permitCreateLockOnCommit"}
	fake := testutil.NewFakeStore().QueueGraph(verifyGraph(false, "t2", nil, passed...))
	m := NewManager(engine.New(fake), nil)

	_, err := m.Acquire(context.Background(), AcquireRequest{
		Txn:        lockTx("t2"),
		Purpose:    PurposeCommit,
		Conditions: callerGroup,
	})
	require.Error(t, err)
	assert.True(t, mms.IsCategory(err, mms.CategoryConflict))
	assert.True(t, mms.IsReason(err, mms.ReasonLockHeld))
	assert.Contains(t, err.Error(), root+"/orgs/o/repos/r/commits/c1")
}

func TestAcquire_RequiresLockID(t *testing.T) {
	tx := txn.New(txn.Params{
		RootIRI: root,
		Actor:   "alice",
		Scope:   mms.Scope{Org: "o", Repo: "r", Commit: "c1"},
		IDs:     txn.NewFixedGenerator("t1"),
	})
	fake := testutil.NewFakeStore()
	m := NewManager(engine.New(fake), nil)

	_, err := m.Acquire(context.Background(), AcquireRequest{Txn: tx})
	assert.True(t, mms.IsCategory(err, mms.CategoryValidation))
	assert.Empty(t, fake.Updates())
}

func TestRelease(t *testing.T) {
	fake := testutil.NewFakeStore().QueueGraph(verifyGraph(true, "t1", nil))
	m := NewManager(engine.New(fake), nil)

	_, err := m.Release(context.Background(), ReleaseRequest{Txn: lockTx("t1")})
	require.NoError(t, err)

	apply := fake.Updates()[0]
	assert.Contains(t, apply, "\ndelete {")
	assert.Contains(t, apply, "morcl: ?__mms_lock_p ?__mms_lock_o .")
	assert.Contains(t, apply, "mms-object:Permission.DeleteLock")
}

func TestRelease_ReacquiredBeforeVerifyIsCommitted(t *testing.T) {
	// Another request took the same lock id between apply and verify.
	fake := testutil.NewFakeStore().
		QueueGraph(verifyGraph(true, "t1", acquired("t2"), ReleaseConditions.Keys()...))
	m := NewManager(engine.New(fake), nil)

	res, err := m.Release(context.Background(), ReleaseRequest{Txn: lockTx("t1")})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.TransactionID)
}

func TestAcquire_ReleasedBeforeVerifyIsCommitted(t *testing.T) {
	fake := testutil.NewFakeStore().
		QueueGraph(verifyGraph(true, "t1", nil, AcquireConditions(callerGroup).Keys()...))
	m := NewManager(engine.New(fake), nil)

	res, err := m.Acquire(context.Background(), AcquireRequest{
		Txn:        lockTx("t1"),
		Conditions: callerGroup,
	})
	require.NoError(t, err)
	assert.False(t, res.Graph.Has(lockIRI, "", ""))
}

func TestRelease_Failures(t *testing.T) {
	base := []string{"clusterInitialized", "orgExists", "repoExists", "commitExists"}

	t.Run("without permission", func(t *testing.T) {
		fake := testutil.NewFakeStore().
			QueueGraph(verifyGraph(false, "t1", nil, append(base, "lockExists")...))
		m := NewManager(engine.New(fake), nil)

		_, err := m.Release(context.Background(), ReleaseRequest{Txn: lockTx("t1")})
		require.Error(t, err)
		assert.True(t, mms.IsCategory(err, mms.CategoryPermissionDenied))
		assert.Contains(t, mms.PublicMessage(err), "<"+lockIRI+">", "message names the target scope")
		assert.Contains(t, mms.PublicMessage(err), "DeleteLock")
	})

	t.Run("missing lock", func(t *testing.T) {
		fake := testutil.NewFakeStore().
			QueueGraph(verifyGraph(false, "t1", nil, append(base, "permitDeleteLockOnLock")...))
		m := NewManager(engine.New(fake), nil)

		_, err := m.Release(context.Background(), ReleaseRequest{Txn: lockTx("t1")})
		require.Error(t, err)
		assert.True(t, mms.IsCategory(err, mms.CategoryPreconditionFailed))
		assert.True(t, mms.IsReason(err, mms.ReasonNotFound))
		assert.Equal(t, "Lock <"+lockIRI+"> does not exist.", mms.PublicMessage(err))
	})
}
