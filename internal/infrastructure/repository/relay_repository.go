package repository

import (
	"bytes"
	"sort"
	"sync"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/repository"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

type relayRepositoryImpl struct {
	mu sync.RWMutex
	m  map[vo.Fingerprint]*entity.RelayDescriptor
}

// NewRelayRepository creates an in-memory RelayRepository holding descs.
func NewRelayRepository(descs ...*entity.RelayDescriptor) repository.RelayRepository {
	r := &relayRepositoryImpl{m: make(map[vo.Fingerprint]*entity.RelayDescriptor, len(descs))}
	for _, d := range descs {
		r.m[d.Fingerprint()] = d
	}
	return r
}

func (r *relayRepositoryImpl) Save(d *entity.RelayDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[d.Fingerprint()] = d
	return nil
}

func (r *relayRepositoryImpl) FindByFingerprint(fp vo.Fingerprint) (*entity.RelayDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.m[fp]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (r *relayRepositoryImpl) FindByFlags(f vo.RelayFlags) ([]*entity.RelayDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.RelayDescriptor
	for _, d := range r.m {
		if d.HasFlags(f) {
			out = append(out, d)
		}
	}
	sortByFingerprint(out)
	return out, nil
}

func (r *relayRepositoryImpl) All() ([]*entity.RelayDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.RelayDescriptor, 0, len(r.m))
	for _, d := range r.m {
		out = append(out, d)
	}
	sortByFingerprint(out)
	return out, nil
}

func sortByFingerprint(ds []*entity.RelayDescriptor) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i].Fingerprint(), ds[j].Fingerprint()
		return bytes.Compare(a[:], b[:]) < 0
	})
}
