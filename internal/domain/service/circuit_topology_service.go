package service

import (
	"errors"
	"fmt"
	"math/rand"

	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// ErrNoEligibleRelay means no relay satisfies the criteria for a position.
var ErrNoEligibleRelay = errors.New("no eligible relay")

// RelaySelectionCriteria represents criteria for selecting relays
type RelaySelectionCriteria struct {
	Hops          int
	GuardFlags    vo.RelayFlags // required of the first hop
	MiddleFlags   vo.RelayFlags // required of every later hop
	ExcludeRelays []vo.Fingerprint
}

// DefaultSelectionCriteria picks a Guard+Fast entry and Fast+Stable
// middles for a two-hop circuit.
func DefaultSelectionCriteria() RelaySelectionCriteria {
	return RelaySelectionCriteria{
		Hops:        2,
		GuardFlags:  vo.FlagGuard | vo.FlagFast,
		MiddleFlags: vo.FlagFast | vo.FlagStable,
	}
}

// CircuitTopologyService chooses the relays a circuit is built through.
type CircuitTopologyService interface {
	SelectPath(relays []*entity.RelayDescriptor, c RelaySelectionCriteria) ([]*entity.RelayDescriptor, error)
}

type circuitTopologyServiceImpl struct {
	intN func(int) int
}

// NewCircuitTopologyService returns a uniform random path selector. A nil
// intN uses math/rand.
func NewCircuitTopologyService(intN func(int) int) CircuitTopologyService {
	if intN == nil {
		intN = rand.Intn
	}
	return &circuitTopologyServiceImpl{intN: intN}
}

func (s *circuitTopologyServiceImpl) SelectPath(relays []*entity.RelayDescriptor, c RelaySelectionCriteria) ([]*entity.RelayDescriptor, error) {
	if c.Hops < 1 {
		return nil, fmt.Errorf("path needs at least one hop, got %d", c.Hops)
	}
	used := make(map[vo.Fingerprint]bool, len(c.ExcludeRelays)+c.Hops)
	for _, fp := range c.ExcludeRelays {
		used[fp] = true
	}
	path := make([]*entity.RelayDescriptor, 0, c.Hops)
	for i := 0; i < c.Hops; i++ {
		want := c.MiddleFlags
		if i == 0 {
			want = c.GuardFlags
		}
		var candidates []*entity.RelayDescriptor
		for _, r := range relays {
			if !used[r.Fingerprint()] && r.HasFlags(want) {
				candidates = append(candidates, r)
			}
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("hop %d (%s): %w", i, want, ErrNoEligibleRelay)
		}
		pick := candidates[s.intN(len(candidates))]
		used[pick.Fingerprint()] = true
		path = append(path, pick)
	}
	return path, nil
}
