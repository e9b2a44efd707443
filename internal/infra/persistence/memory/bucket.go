package memory

// bucket keeps records by ID while remembering insertion order, which is the
// order catalog listings are returned in.
type bucket[T any] struct {
	byID  map[string]T
	order []string
}

func newBucket[T any]() bucket[T] {
	return bucket[T]{byID: make(map[string]T)}
}

func (b bucket[T]) clone(cp func(T) T) bucket[T] {
	out := bucket[T]{byID: make(map[string]T, len(b.byID)), order: append([]string(nil), b.order...)}
	for id, v := range b.byID {
		out.byID[id] = cp(v)
	}
	return out
}

func (b bucket[T]) get(id string) (T, bool) {
	v, ok := b.byID[id]
	return v, ok
}

func (b *bucket[T]) put(id string, v T) {
	if _, exists := b.byID[id]; !exists {
		b.order = append(b.order, id)
	}
	b.byID[id] = v
}

func (b *bucket[T]) remove(id string) {
	if _, ok := b.byID[id]; !ok {
		return
	}
	delete(b.byID, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

func (b bucket[T]) list(cp func(T) T) []T {
	out := make([]T, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, cp(b.byID[id]))
	}
	return out
}

func (b bucket[T]) find(cp func(T) T, match func(T) bool) (T, bool) {
	for _, id := range b.order {
		if v := b.byID[id]; match(v) {
			return cp(v), true
		}
	}
	var zero T
	return zero, false
}
