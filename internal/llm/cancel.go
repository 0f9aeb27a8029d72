package llm

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks cancel functions for in-flight requests so overlapping
// requests can be cancelled independently. Callers own the registry; there
// is no shared module-level slot.
type Registry struct {
	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewRegistry creates an empty cancellation registry.
func NewRegistry() *Registry {
	return &Registry{inflight: make(map[string]context.CancelFunc)}
}

// Handle identifies one in-flight request and can cancel it.
type Handle struct {
	ID  string
	reg *Registry
}

// Cancel aborts the request this handle refers to. Safe to call after the
// request has finished.
func (h Handle) Cancel() {
	h.reg.Cancel(h.ID)
}

// Begin derives a cancellable context for a new request and returns its
// handle. The caller must call End when the request finishes.
func (r *Registry) Begin(ctx context.Context) (context.Context, Handle) {
	return r.BeginWith(ctx, uuid.NewString())
}

// BeginWith is Begin with a caller-chosen id, so a client that wants to
// cancel from a second connection can pick the id up front.
func (r *Registry) BeginWith(ctx context.Context, id string) (context.Context, Handle) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.inflight[id] = cancel
	r.mu.Unlock()

	return ctx, Handle{ID: id, reg: r}
}

// Cancel aborts the request with the given id. Returns false if no such
// request is in flight.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.inflight[id]
	delete(r.inflight, id)
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// End releases the bookkeeping for a finished request and its context.
func (r *Registry) End(id string) {
	r.Cancel(id)
}

// Len returns the number of requests currently in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
