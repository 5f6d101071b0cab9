package repository

import (
	"sync"

	"ikedadada/go-torcircuit/internal/domain/aggregate"
	"ikedadada/go-torcircuit/internal/domain/repository"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

type CircuitRepo struct {
	mu sync.RWMutex
	m  map[vo.CircuitHandle]*aggregate.Circuit
}

func NewCircuitRepo() *CircuitRepo {
	return &CircuitRepo{m: make(map[vo.CircuitHandle]*aggregate.Circuit)}
}

func (r *CircuitRepo) Save(c *aggregate.Circuit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[c.Handle()] = c
	return nil
}

func (r *CircuitRepo) Find(h vo.CircuitHandle) (*aggregate.Circuit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[h]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (r *CircuitRepo) Delete(h vo.CircuitHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[h]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m, h)
	return nil
}

func (r *CircuitRepo) ListActive() ([]*aggregate.Circuit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*aggregate.Circuit, 0, len(r.m))
	for _, c := range r.m {
		if !c.State().IsTerminal() {
			out = append(out, c)
		}
	}
	return out, nil
}
