package compliance

// eventRing is a bounded append-only buffer that evicts its oldest
// entries once capacity is reached, keeping memory flat under
// sustained load.
type eventRing[T any] struct {
	items []T
	cap   int
}

func newEventRing[T any](capacity int) *eventRing[T] {
	if capacity <= 0 {
		capacity = DefaultEventLimit
	}
	return &eventRing[T]{cap: capacity}
}

func (r *eventRing[T]) append(item T) {
	r.items = append(r.items, item)
	if len(r.items) > r.cap {
		r.items = r.items[len(r.items)-r.cap:]
	}
}

func (r *eventRing[T]) all() []T {
	return r.items
}

// retain keeps only items the predicate accepts and returns the number
// evicted.
func (r *eventRing[T]) retain(keep func(T) bool) int {
	kept := r.items[:0]
	for _, item := range r.items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	evicted := len(r.items) - len(kept)
	r.items = kept
	return evicted
}
