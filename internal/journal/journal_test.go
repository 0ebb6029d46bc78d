package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mms/internal/mms"
)

// createTestJournal opens a journal in a per-test temp directory.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func testEntry(id string, outcome Outcome) Entry {
	return Entry{
		ID:        id,
		Operation: "CreateRepo",
		Actor:     "alice",
		Scope:     mms.Scope{Org: "o", Repo: "r"},
		Method:    "PUT",
		Path:      "/orgs/o/repos/r",
		Outcome:   outcome,
		Passed:    []string{"orgExists", "permitCreateRepoOnOrg"},
		StartedAt: time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC),
		Duration:  1500 * time.Microsecond,
	}
}

func TestOpenAppliesPragmasAndMigrations(t *testing.T) {
	j := createTestJournal(t)

	mode, err := j.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	version, err := j.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(currentSchemaVersion), version)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), testEntry("t1", OutcomeCommitted)))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
}

func TestRecordAndGet(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	want := testEntry("t1", OutcomeFailed)
	want.Category = mms.CategoryPreconditionFailed
	want.Reason = mms.ReasonAlreadyExists
	want.Message = "The provided repo <x> already exists."
	require.NoError(t, j.Record(ctx, want))

	got, err := j.Get(ctx, "t1")
	require.NoError(t, err)

	assert.NotZero(t, got.Seq)
	want.Seq = got.Seq
	assert.Equal(t, want, got)
}

func TestRecordIsIdempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testEntry("t1", OutcomeCommitted)))
	require.NoError(t, j.Record(ctx, testEntry("t1", OutcomeFailed)))

	entries, err := j.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeCommitted, entries[0].Outcome, "first write wins")
}

func TestGetMissing(t *testing.T) {
	j := createTestJournal(t)
	_, err := j.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiltersAndOrdersNewestFirst(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testEntry("t1", OutcomeCommitted)))
	require.NoError(t, j.Record(ctx, testEntry("t2", OutcomeFailed)))
	other := testEntry("t3", OutcomeCommitted)
	other.Scope.Repo = "other"
	require.NoError(t, j.Record(ctx, other))

	all, err := j.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	committed, err := j.List(ctx, ListOptions{Outcome: OutcomeCommitted, Org: "o", Repo: "r"})
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, "t1", committed[0].ID)

	limited, err := j.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := j.List(ctx, ListOptions{Repo: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRecordConcurrent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, j.Record(ctx, testEntry(fmt.Sprintf("t%d", i), OutcomeCommitted)))
		}(i)
	}
	wg.Wait()

	entries, err := j.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestRecordNilPassed(t *testing.T) {
	j := createTestJournal(t)
	e := testEntry("t1", OutcomeCommitted)
	e.Passed = nil
	require.NoError(t, j.Record(context.Background(), e))

	got, err := j.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Passed)
}
