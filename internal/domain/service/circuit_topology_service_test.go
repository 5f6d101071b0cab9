package service

import (
	"errors"
	"fmt"
	"testing"

	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

func makeRelay(t *testing.T, i int, flags ...string) *entity.RelayDescriptor {
	t.Helper()
	d, err := entity.NewRelayDescriptor(entity.RelayDescriptorParams{
		Nickname:     fmt.Sprintf("r%d", i),
		Address:      "10.0.0.1",
		ORPort:       uint16(9000 + i),
		Fingerprint:  fmt.Sprintf("%040X", i+1),
		NtorOnionKey: "AQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHyA",
		Flags:        flags,
	})
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return d
}

func TestSelectPath_RespectsFlags(t *testing.T) {
	relays := []*entity.RelayDescriptor{
		makeRelay(t, 0, "Fast", "Stable"),
		makeRelay(t, 1, "Guard", "Fast"),
		makeRelay(t, 2, "Fast", "Stable"),
		makeRelay(t, 3, "Exit"),
	}
	s := NewCircuitTopologyService(func(int) int { return 0 })
	path, err := s.SelectPath(relays, DefaultSelectionCriteria())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("path length %d", len(path))
	}
	if path[0] != relays[1] {
		t.Errorf("guard = %s, want r1", path[0].Nickname())
	}
	if path[1] != relays[0] {
		t.Errorf("middle = %s, want r0", path[1].Nickname())
	}
}

func TestSelectPath_NoRepeats(t *testing.T) {
	var relays []*entity.RelayDescriptor
	for i := 0; i < 5; i++ {
		relays = append(relays, makeRelay(t, i, "Guard", "Fast", "Stable"))
	}
	s := NewCircuitTopologyService(nil)
	for n := 0; n < 50; n++ {
		path, err := s.SelectPath(relays, RelaySelectionCriteria{Hops: 5})
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		seen := map[vo.Fingerprint]bool{}
		for _, d := range path {
			if seen[d.Fingerprint()] {
				t.Fatalf("relay %s picked twice", d.Nickname())
			}
			seen[d.Fingerprint()] = true
		}
	}
}

func TestSelectPath_Errors(t *testing.T) {
	relays := []*entity.RelayDescriptor{makeRelay(t, 0, "Guard", "Fast", "Stable")}
	s := NewCircuitTopologyService(nil)

	if _, err := s.SelectPath(relays, RelaySelectionCriteria{Hops: 0}); err == nil {
		t.Error("zero hops accepted")
	}
	if _, err := s.SelectPath(relays, DefaultSelectionCriteria()); !errors.Is(err, ErrNoEligibleRelay) {
		t.Errorf("err = %v, want ErrNoEligibleRelay", err)
	}
	crit := DefaultSelectionCriteria()
	crit.Hops = 1
	crit.ExcludeRelays = []vo.Fingerprint{relays[0].Fingerprint()}
	if _, err := s.SelectPath(relays, crit); !errors.Is(err, ErrNoEligibleRelay) {
		t.Errorf("excluded relay picked: %v", err)
	}
}
