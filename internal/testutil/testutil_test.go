package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewStepClock(start, time.Second)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Second), c.Now())

	c.Reset()
	assert.Equal(t, start, c.Now())
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("")
	assert.Equal(t, "t-1", g.Generate())
	assert.Equal(t, "t-2", g.Generate())

	g = NewSequenceGenerator("tx")
	for i := 0; i < 9; i++ {
		g.Generate()
	}
	assert.Equal(t, "tx-10", g.Generate())
}

func TestSequenceGenerator_Concurrent(t *testing.T) {
	g := NewSequenceGenerator("c")
	var mu sync.Mutex
	seen := map[string]bool{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestFakeStore_Scripted(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	f := NewFakeStore().
		QueueGraph(`<urn:s> <urn:p> "o" .` + "\n").
		QueueQueryError(boom).
		QueueUpdateError(nil).
		QueueUpdateError(boom)

	g, err := f.Construct(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	_, err = f.Construct(ctx, "q2")
	assert.ErrorIs(t, err, boom)

	g, err = f.Construct(ctx, "q3")
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())

	assert.NoError(t, f.Update(ctx, "u1"))
	assert.ErrorIs(t, f.Update(ctx, "u2"), boom)
	assert.NoError(t, f.Update(ctx, "u3"))

	assert.Equal(t, []string{"q1", "q2", "q3"}, f.Queries())
	assert.Equal(t, []string{"u1", "u2", "u3"}, f.Updates())
}
