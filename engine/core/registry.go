package core

import "sync"

// Registry hands out stable non-zero ids for owned values. Released ids are
// reused before the table grows, so handle values stay small.
type Registry[T any] struct {
	mu     sync.Mutex
	owners []*T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{owners: make([]*T, 0, 64)}
}

// Acquire stores owner and returns its id. Ids start at 1 so that 0 can be
// used as a null handle.
func (r *Registry[T]) Acquire(owner *T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.owners {
		// Existing free spot. Take it.
		if o == nil {
			r.owners[i] = owner
			return uint64(i + 1)
		}
	}
	r.owners = append(r.owners, owner)
	return uint64(len(r.owners))
}

func (r *Registry[T]) Get(id uint64) (*T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || id > uint64(len(r.owners)) {
		return nil, false
	}
	o := r.owners[id-1]
	return o, o != nil
}

// Release frees id and returns the value it held.
func (r *Registry[T]) Release(id uint64) (*T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || id > uint64(len(r.owners)) {
		return nil, false
	}
	o := r.owners[id-1]
	r.owners[id-1] = nil
	return o, o != nil
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.owners {
		if o != nil {
			n++
		}
	}
	return n
}

// Each visits live entries in id order.
func (r *Registry[T]) Each(fn func(id uint64, v *T)) {
	r.mu.Lock()
	snapshot := append([]*T(nil), r.owners...)
	r.mu.Unlock()
	for i, o := range snapshot {
		if o != nil {
			fn(uint64(i+1), o)
		}
	}
}
