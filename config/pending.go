package config

import (
	"sync"

	"github.com/zsy619/mapcore/errs"
)

// Resolver is one not-yet-resolvable registration — a result map whose extends parent
// is not yet registered, a cache-ref, or a statement blocked on its namespace's
// cache-ref. Nested result-map references are not checked and never enqueue. TryResolve returns nil on success (removing it from the queue), a
// ForwardReferenceError to stay enqueued, or any other error to abort the parse.
type Resolver interface {
	ID() string
	TryResolve() error
}

// PendingQueue guards one of the three pending sets named in §3/§4.3. Each queue has
// its own lock (§5: "Each queue is drained under its own mutual-exclusion lock so
// concurrent parsers... cannot corrupt it"), independent of the other two and of the
// Configuration's own maps.
type PendingQueue struct {
	mu    sync.Mutex
	items []Resolver
}

// Enqueue adds r to the pending set, replacing any prior entry with the same ID so a
// re-parse attempt for the same definition doesn't accumulate duplicates.
func (q *PendingQueue) Enqueue(r Resolver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, existing := range q.items {
		if existing.ID() == r.ID() {
			q.items[i] = r
			return
		}
	}
	q.items = append(q.items, r)
}

// Drain attempts TryResolve on every pending entry once, removing those that succeed.
// It returns the number resolved this pass; callers loop until a pass resolves zero
// and the queue is either empty (success) or not (permanent failure, reported at seal).
func (q *PendingQueue) Drain() (resolved int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := q.items[:0:0]
	for _, r := range q.items {
		e := r.TryResolve()
		switch {
		case e == nil:
			resolved++
		case errs.Is(e, errs.KindForwardReference):
			remaining = append(remaining, r)
		default:
			return resolved, e
		}
	}
	q.items = remaining
	return resolved, nil
}

// Len reports how many entries remain pending.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IDs reports the ids of every entry still pending, for BuilderError reporting at seal.
func (q *PendingQueue) IDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.items))
	for i, r := range q.items {
		ids[i] = r.ID()
	}
	return ids
}

// DrainToFixpoint repeatedly drains q until a pass resolves nothing.
func DrainToFixpoint(q *PendingQueue) error {
	for {
		resolved, err := q.Drain()
		if err != nil {
			return err
		}
		if resolved == 0 {
			return nil
		}
	}
}
