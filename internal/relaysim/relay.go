// Package relaysim runs in-process relays that answer the client side of
// the link, CREATE2 and EXTEND2 protocols. Relays reach each other through
// a Network registry instead of opening links among themselves.
package relaysim

import (
	"crypto/rand"
	"fmt"
	"net"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/infrastructure/crypto"
	infra "ikedadada/go-torcircuit/internal/infrastructure/service"
)

// Behavior selects the ways a relay misbehaves. The zero value is an
// honest relay.
type Behavior struct {
	// CorruptAuth flips a bit of the AUTH value in CREATED2/EXTENDED2.
	CorruptAuth bool
	// DestroyOnCreate answers CREATE2 with DESTROY carrying this reason.
	DestroyOnCreate vo.DestroyReason
	// Silent never answers CREATE2.
	Silent bool
	// CorruptRelayDigest breaks the digest of relay cells this relay
	// originates.
	CorruptRelayDigest bool
	// TruncateOnExtend answers EXTEND2 with RELAY_TRUNCATED and this
	// reason.
	TruncateOnExtend vo.DestroyReason
	// ReplayBackward makes a first hop resend its previous backward relay
	// cell instead of the current one.
	ReplayBackward bool
}

// RelayConfig describes a relay to add to a Network.
type RelayConfig struct {
	Nickname string
	Flags    []string
	Behavior Behavior
}

// Relay is one simulated onion router.
type Relay struct {
	nickname string
	flags    []string
	creds    *crypto.RelayCredentials
	keys     service.NtorServerKeys
	ntor     service.HandshakeResponder
	network  *Network
	log      *logging.Logger

	mu       sync.Mutex
	behavior Behavior
	desc     *entity.RelayDescriptor
	ln       net.Listener
}

// コンストラクタ
func newRelay(n *Network, cfg RelayConfig, port uint16) (*Relay, error) {
	creds, err := crypto.NewRelayCredentials(cfg.Nickname, time.Hour)
	if err != nil {
		return nil, err
	}
	cs := infra.NewCryptoService()
	priv, pub, err := cs.X25519Generate()
	if err != nil {
		return nil, err
	}
	r := &Relay{
		nickname: cfg.Nickname,
		flags:    cfg.Flags,
		behavior: cfg.Behavior,
		creds:    creds,
		keys: service.NtorServerKeys{
			Identity:  creds.Fingerprint(),
			OnionKey:  vo.NtorOnionKey(pub),
			OnionPriv: priv,
		},
		ntor:    service.NewHandshakeResponder(cs),
		network: n,
		log:     n.log,
	}
	if err := r.describe(port); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Relay) describe(port uint16) error {
	d, err := entity.NewRelayDescriptor(entity.RelayDescriptorParams{
		Nickname:     r.nickname,
		Address:      "127.0.0.1",
		ORPort:       port,
		Fingerprint:  r.keys.Identity.String(),
		NtorOnionKey: r.keys.OnionKey.String(),
		Flags:        r.flags,
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.desc = d
	r.mu.Unlock()
	return nil
}

func (r *Relay) Nickname() string                      { return r.nickname }
func (r *Relay) Fingerprint() vo.Fingerprint           { return r.keys.Identity }
func (r *Relay) Credentials() *crypto.RelayCredentials { return r.creds }

func (r *Relay) Behavior() Behavior {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.behavior
}

// SetBehavior changes how the relay answers from the next cell on.
func (r *Relay) SetBehavior(b Behavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behavior = b
}

// Descriptor is what a client needs to reach this relay.
func (r *Relay) Descriptor() *entity.RelayDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.desc
}

// ListenTLS accepts TLS links on a loopback port and points the
// descriptor at it.
func (r *Relay) ListenTLS() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	if err := r.describe(uint16(ln.Addr().(*net.TCPAddr).Port)); err != nil {
		ln.Close()
		return err
	}
	r.mu.Lock()
	r.ln = ln
	r.mu.Unlock()
	go r.acceptLoop(ln)
	return nil
}

func (r *Relay) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			link, err := infra.AcceptLink(conn, infra.LinkResponderConfig{Credentials: r.creds, Log: r.log})
			if err != nil {
				r.log.Warningf("%s: link handshake from %s: %v", r.nickname, conn.RemoteAddr(), err)
				conn.Close()
				return
			}
			r.ServeLink(link)
		}()
	}
}

// Close stops accepting links.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	err := r.ln.Close()
	r.ln = nil
	return err
}

// answerCreate runs the responder handshake. A nil reply with a non-zero
// reason means DESTROY; a nil reply and zero reason means no answer.
func (r *Relay) answerCreate(req vo.Create2Payload) (*vo.Created2Payload, *entity.HopCryptoState, vo.DestroyReason) {
	b := r.Behavior()
	switch {
	case b.Silent:
		return nil, nil, vo.DestroyNone
	case b.DestroyOnCreate != vo.DestroyNone:
		return nil, nil, b.DestroyOnCreate
	}
	reply, hop, err := r.ntor.ServerHandshake(r.keys, req)
	if err != nil {
		r.log.Warningf("%s: handshake: %v", r.nickname, err)
		return nil, nil, vo.DestroyProtocol
	}
	if b.CorruptAuth {
		reply.HData[len(reply.HData)-1] ^= 0x01
	}
	return &reply, hop, vo.DestroyNone
}

// originate seals and encrypts a relay cell this relay sends toward the
// client.
func (r *Relay) originate(hop *entity.HopCryptoState, rc entity.RelayCell) ([]byte, error) {
	body, err := rc.Encode(rand.Reader)
	if err != nil {
		return nil, err
	}
	hop.SealBackward(body)
	if r.Behavior().CorruptRelayDigest {
		body[6] ^= 0xff
	}
	hop.ApplyBackward(body)
	return body, nil
}

func (r *Relay) String() string {
	return fmt.Sprintf("%s~%s", r.nickname, r.keys.Identity)
}
