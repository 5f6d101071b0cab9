package relaysim

import (
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	infra "ikedadada/go-torcircuit/internal/infrastructure/service"
)

const firstSimPort = 9001

// Network is a registry of simulated relays keyed by identity.
type Network struct {
	mu     sync.RWMutex
	relays map[vo.Fingerprint]*Relay
	order  []*Relay
	log    *logging.Logger
}

func NewNetwork(log *logging.Logger) *Network {
	if log == nil {
		log = logging.MustGetLogger("relaysim")
	}
	return &Network{relays: make(map[vo.Fingerprint]*Relay), log: log}
}

// AddRelay creates a relay with fresh keys. Its descriptor points at a
// placeholder port until ListenTLS is called.
func (n *Network) AddRelay(cfg RelayConfig) (*Relay, error) {
	n.mu.Lock()
	port := uint16(firstSimPort + len(n.order))
	n.mu.Unlock()
	r, err := newRelay(n, cfg, port)
	if err != nil {
		return nil, errors.Wrapf(err, "relay %s", cfg.Nickname)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.relays[r.Fingerprint()] = r
	n.order = append(n.order, r)
	return r, nil
}

// Lookup returns the relay with identity fp, or nil.
func (n *Network) Lookup(fp vo.Fingerprint) *Relay {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.relays[fp]
}

// Remove takes a relay out of the registry so extends to it fail.
func (n *Network) Remove(fp vo.Fingerprint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := n.relays[fp]; ok {
		r.Close()
		delete(n.relays, fp)
	}
}

// Descriptors lists every relay's descriptor in insertion order.
func (n *Network) Descriptors() []*entity.RelayDescriptor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*entity.RelayDescriptor, 0, len(n.order))
	for _, r := range n.order {
		if _, ok := n.relays[r.Fingerprint()]; ok {
			out = append(out, r.Descriptor())
		}
	}
	return out
}

// ListenTLS starts a TLS listener for every relay.
func (n *Network) ListenTLS() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, r := range n.order {
		if err := r.ListenTLS(); err != nil {
			return errors.Wrapf(err, "listen %s", r.nickname)
		}
	}
	return nil
}

// Dialer connects to relays of this network over in-memory links.
func (n *Network) Dialer() service.LinkDialer {
	d := infra.NewMemLinkDialer(func(fp vo.Fingerprint, link service.LinkConnection) error {
		r := n.Lookup(fp)
		if r == nil {
			return errors.Errorf("no relay %s", fp)
		}
		go r.ServeLink(link)
		return nil
	})
	d.Log = n.log
	return d
}

// Close stops every listener.
func (n *Network) Close() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, r := range n.order {
		r.Close()
	}
}
