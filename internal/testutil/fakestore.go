package testutil

import (
	"context"
	"sync"

	"github.com/roach88/mms/internal/store"
)

// FakeStore is a scripted store.Store.
//
// Updates and queries are recorded in call order. Update errors and
// construct responses are consumed from FIFO queues; once a queue is empty,
// updates succeed and constructs return an empty graph.
//
// Thread-safety: FakeStore is safe for concurrent use.
type FakeStore struct {
	mu           sync.Mutex
	updates      []string
	queries      []string
	updateErrors []error
	responses    []response
}

type response struct {
	graph *store.Graph
	err   error
}

var _ store.Store = (*FakeStore)(nil)

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// QueueGraph queues an N-Triples document as the next construct response.
// It panics if doc does not parse, since that is a broken test.
func (f *FakeStore) QueueGraph(doc string) *FakeStore {
	g, err := store.ParseNTriplesString(doc)
	if err != nil {
		panic("FakeStore: " + err.Error())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{graph: g})
	return f
}

// QueueQueryError queues err as the next construct response.
func (f *FakeStore) QueueQueryError(err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{err: err})
	return f
}

// QueueUpdateError makes the next update fail with err. A nil err queues a
// success, which lets a test fail a later update.
func (f *FakeStore) QueueUpdateError(err error) *FakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErrors = append(f.updateErrors, err)
	return f
}

// Update records text.
func (f *FakeStore) Update(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, text)
	if len(f.updateErrors) == 0 {
		return nil
	}
	err := f.updateErrors[0]
	f.updateErrors = f.updateErrors[1:]
	return err
}

// Construct records text and returns the next queued response.
func (f *FakeStore) Construct(ctx context.Context, text string) (*store.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if len(f.responses) == 0 {
		return store.NewGraph(), nil
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.graph, r.err
}

// Updates returns a copy of the recorded update texts.
func (f *FakeStore) Updates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updates...)
}

// Queries returns a copy of the recorded construct texts.
func (f *FakeStore) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}
