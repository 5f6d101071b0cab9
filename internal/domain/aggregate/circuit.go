package aggregate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

const (
	// MaxRelayEarly is the number of RELAY_EARLY cells a circuit may send.
	MaxRelayEarly = 8

	DefaultReplyTimeout = 20 * time.Second

	circuitIDAttempts = 16
)

// CircuitConfig holds the collaborators of a Circuit.
type CircuitConfig struct {
	Dialer    service.LinkDialer
	Handshake service.HandshakeService
	// ReplyTimeout bounds the wait for CREATED2 and EXTENDED2.
	ReplyTimeout time.Duration
	// Rand feeds circuit ids and relay cell padding.
	Rand io.Reader
	Log  *logging.Logger
}

// errDestroyed is the cancellation cause of an operation aborted by Destroy.
var errDestroyed = errors.New("circuit destroyed")

// Circuit is a client circuit: one link to the first hop and the ordered
// hop states of every relay it reaches. A Circuit is not safe for
// concurrent Create/Extend. Destroy aborts an in-flight operation.
type Circuit struct {
	mu  sync.Mutex
	cfg CircuitConfig

	// abort cancels the in-flight Create or Extend. Guarded by opMu so
	// Destroy can reach it while mu is held by the operation.
	opMu       sync.Mutex
	abort      context.CancelCauseFunc
	destroying bool

	handle     vo.CircuitHandle
	state      vo.CircuitState
	link       service.LinkConnection
	id         vo.CircuitID
	hops       []*entity.HopCryptoState
	path       []*entity.RelayDescriptor
	relayEarly int
	createdAt  time.Time
}

// NewCircuit returns an Empty circuit.
func NewCircuit(cfg CircuitConfig) *Circuit {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if cfg.Log == nil {
		cfg.Log = logging.MustGetLogger("circuit")
	}
	return &Circuit{
		cfg:    cfg,
		handle: vo.NewCircuitHandle(),
		state:  vo.CircuitEmpty,
	}
}

func (c *Circuit) Handle() vo.CircuitHandle { return c.handle }

func (c *Circuit) ID() vo.CircuitID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Circuit) State() vo.CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Hops returns the hop states, first hop first.
func (c *Circuit) Hops() []*entity.HopCryptoState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*entity.HopCryptoState(nil), c.hops...)
}

func (c *Circuit) HopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hops)
}

// Path returns the descriptors of the relays the circuit reaches.
func (c *Circuit) Path() []*entity.RelayDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*entity.RelayDescriptor(nil), c.path...)
}

func (c *Circuit) Link() service.LinkConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

// CreatedAt is when the first hop was established.
func (c *Circuit) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

// Create opens a link to desc and builds the first hop with CREATE2.
func (c *Circuit) Create(ctx context.Context, desc *entity.RelayDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != vo.CircuitEmpty {
		return fmt.Errorf("create in state %s: %w", c.state, domain.ErrInvalidState)
	}
	ctx, done := c.begin(ctx)
	defer done()
	const op = "create"
	relay := desc.Fingerprint()

	link, err := c.cfg.Dialer.Connect(ctx, desc)
	if err != nil {
		if errors.Is(context.Cause(ctx), errDestroyed) {
			c.state = vo.CircuitDestroyed
		}
		return err
	}
	c.link = link
	stop := context.AfterFunc(ctx, func() { link.Close() })
	defer stop()

	id, err := c.allocateID(link)
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}
	c.id = id

	req, st, err := c.cfg.Handshake.BuildCreate2(desc)
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}
	defer st.Wipe()
	body, err := req.MarshalBinary()
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}
	if err := link.SendCell(&entity.Cell{CircID: id, Cmd: vo.CmdCreate2, Payload: body}); err != nil {
		return c.fail(ctx, op, relay, err)
	}

	reply, err := c.await(ctx, op, relay)
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}
	if reply.Cmd != vo.CmdCreated2 {
		return c.fail(ctx, op, relay, domain.NewProtocolError(op, relay, fmt.Errorf("expected CREATED2, got %s", reply.Cmd)))
	}
	created, err := vo.ParseCreated2Payload(reply.Payload)
	if err != nil {
		return c.fail(ctx, op, relay, domain.NewProtocolError(op, relay, err))
	}
	hop, err := c.cfg.Handshake.CompleteHandshake(desc, st, created)
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}

	c.hops = append(c.hops, hop)
	c.path = append(c.path, desc)
	c.state = vo.CircuitOneHop
	c.createdAt = time.Now()
	c.cfg.Log.Infof("circuit %s: created %s via %s", c.id, desc.Nickname(), relay)
	return nil
}

// Extend asks the last hop to extend the circuit to desc with EXTEND2.
func (c *Circuit) Extend(ctx context.Context, desc *entity.RelayDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanExtend() {
		return fmt.Errorf("extend in state %s: %w", c.state, domain.ErrInvalidState)
	}
	if c.relayEarly >= MaxRelayEarly {
		return domain.ErrRelayEarlyExhausted
	}
	const op = "extend"
	relay := desc.Fingerprint()

	req, st, err := c.cfg.Handshake.BuildCreate2(desc)
	if err != nil {
		return err
	}
	defer st.Wipe()
	data, err := vo.Extend2Payload{Specifiers: desc.LinkSpecifiers(), Handshake: req}.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	body, err := c.onionSeal(entity.RelayCell{Cmd: vo.RelayExtend2, Data: data})
	if err != nil {
		return err
	}

	ctx, done := c.begin(ctx)
	defer done()
	link := c.link
	prev := c.state
	c.state = vo.CircuitExtending
	stop := context.AfterFunc(ctx, func() { link.Close() })
	defer stop()

	if err := link.SendCell(&entity.Cell{CircID: c.id, Cmd: vo.CmdRelayEarly, Payload: body}); err != nil {
		return c.fail(ctx, op, relay, err)
	}
	c.relayEarly++

	reply, err := c.await(ctx, op, relay)
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}
	if reply.Cmd != vo.CmdRelay {
		return c.fail(ctx, op, relay, domain.NewProtocolError(op, relay, fmt.Errorf("expected RELAY, got %s", reply.Cmd)))
	}
	from, rc, err := c.onionOpen(reply.Payload)
	if err != nil {
		return c.fail(ctx, op, relay, domain.NewProtocolError(op, relay, err))
	}
	last := len(c.hops) - 1
	sender := c.path[from].Fingerprint()
	switch {
	case from != last:
		return c.fail(ctx, op, sender, domain.NewProtocolError(op, sender, fmt.Errorf("%s from hop %d while extending hop %d", rc.Cmd, from, last)))
	case rc.Cmd == vo.RelayTruncated:
		reason := vo.DestroyReasonFromPayload(rc.Data)
		return c.fail(ctx, op, sender, domain.NewRemoteDestroyError(op, sender, reason))
	case rc.Cmd != vo.RelayExtended2:
		return c.fail(ctx, op, sender, domain.NewProtocolError(op, sender, fmt.Errorf("expected RELAY_EXTENDED2, got %s", rc.Cmd)))
	}
	extended, err := vo.ParseCreated2Payload(rc.Data)
	if err != nil {
		return c.fail(ctx, op, relay, domain.NewProtocolError(op, relay, err))
	}
	hop, err := c.cfg.Handshake.CompleteHandshake(desc, st, extended)
	if err != nil {
		return c.fail(ctx, op, relay, err)
	}

	c.hops = append(c.hops, hop)
	c.path = append(c.path, desc)
	c.state = vo.CircuitNHops
	c.cfg.Log.Infof("circuit %s: extended to %s (%d hops, was %s)", c.id, desc.Nickname(), len(c.hops), prev)
	return nil
}

// Destroy tears the circuit down, sending DESTROY on a best-effort basis.
// An in-flight Create or Extend is aborted first and fails with a
// ConnectionError. Destroying a destroyed circuit is a no-op.
func (c *Circuit) Destroy(reason vo.DestroyReason) error {
	c.opMu.Lock()
	c.destroying = true
	if c.abort != nil {
		c.abort(errDestroyed)
	}
	c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown(reason, true)
	return nil
}

// begin makes ctx cancellable by Destroy for the duration of one operation.
func (c *Circuit) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	c.opMu.Lock()
	c.abort = cancel
	if c.destroying {
		cancel(errDestroyed)
	}
	c.opMu.Unlock()
	return ctx, func() {
		c.opMu.Lock()
		c.abort = nil
		c.opMu.Unlock()
		cancel(nil)
	}
}

// fail destroys the circuit after err and returns the error the caller
// should see.
func (c *Circuit) fail(ctx context.Context, op string, relay vo.Fingerprint, err error) error {
	if ctx.Err() != nil {
		err = domain.NewContextError(op, relay, context.Cause(ctx))
	}
	kind, _ := domain.KindOf(err)
	c.cfg.Log.Warningf("circuit %s: %s failed: %v", c.id, op, err)
	// Nothing to tell a relay that already destroyed the circuit or a link
	// that is gone.
	notify := kind != domain.KindRemoteDestroy && kind != domain.KindConnection
	c.teardown(reasonFor(kind), notify)
	return err
}

func (c *Circuit) teardown(reason vo.DestroyReason, notify bool) {
	if c.state == vo.CircuitDestroyed {
		return
	}
	if c.link != nil {
		if notify && !c.id.IsZero() {
			cell := &entity.Cell{CircID: c.id, Cmd: vo.CmdDestroy, Payload: []byte{byte(reason)}}
			if err := c.link.SendCell(cell); err != nil {
				c.cfg.Log.Debugf("circuit %s: DESTROY not sent: %v", c.id, err)
			}
		}
		if !c.id.IsZero() {
			c.link.ReleaseCircuitID(c.id)
		}
		c.link.Close()
	}
	for _, h := range c.hops {
		h.Wipe()
	}
	c.state = vo.CircuitDestroyed
	c.cfg.Log.Debugf("circuit %s: destroyed (%s)", c.id, reason)
}

func reasonFor(k domain.ErrorKind) vo.DestroyReason {
	switch k {
	case domain.KindLinkTimeout:
		return vo.DestroyTimeout
	case domain.KindMalformedCell, domain.KindProtocol, domain.KindHandshakeAuth:
		return vo.DestroyProtocol
	case domain.KindConnection:
		return vo.DestroyChannelClosed
	case domain.KindRemoteDestroy:
		return vo.DestroyNone
	default:
		return vo.DestroyInternal
	}
}

func (c *Circuit) allocateID(link service.LinkConnection) (vo.CircuitID, error) {
	for i := 0; i < circuitIDAttempts; i++ {
		id, err := vo.NewCircuitID(c.cfg.Rand, link.Version())
		if err != nil {
			return 0, err
		}
		if link.ClaimCircuitID(id) {
			return id, nil
		}
	}
	return 0, errors.New("no free circuit id on link")
}

// await returns the next cell addressed to this circuit. DESTROY for the
// circuit or the link is reported as RemoteDestroy.
func (c *Circuit) await(ctx context.Context, op string, relay vo.Fingerprint) (*entity.Cell, error) {
	deadline := time.Now().Add(c.cfg.ReplyTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			return nil, domain.NewLinkTimeoutError(op, relay, context.DeadlineExceeded)
		}
		cell, err := c.link.RecvCell(wait)
		if err != nil {
			return nil, err
		}
		// DESTROY on circuit 0 tears down the whole link.
		if cell.Cmd == vo.CmdDestroy && (cell.CircID.IsZero() || cell.CircID == c.id) {
			return nil, domain.NewRemoteDestroyError(op, c.link.PeerIdentity(), vo.DestroyReasonFromPayload(cell.Payload))
		}
		if cell.CircID != c.id {
			c.cfg.Log.Debugf("circuit %s: ignoring %s for circuit %s", c.id, cell.Cmd, cell.CircID)
			continue
		}
		return cell, nil
	}
}

// onionSeal seals rc for the last hop and encrypts it for every hop,
// last to first.
func (c *Circuit) onionSeal(rc entity.RelayCell) ([]byte, error) {
	body, err := rc.Encode(c.cfg.Rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	c.hops[len(c.hops)-1].SealForward(body)
	for i := len(c.hops) - 1; i >= 0; i-- {
		c.hops[i].ApplyForward(body)
	}
	return body, nil
}

// onionOpen peels an inbound body hop by hop until one recognises it.
func (c *Circuit) onionOpen(body []byte) (int, entity.RelayCell, error) {
	body = append([]byte(nil), body...)
	for i, h := range c.hops {
		h.ApplyBackward(body)
		if entity.IsRecognized(body) && h.VerifyBackward(body) {
			rc, err := entity.DecodeRelayCell(body)
			return i, rc, err
		}
	}
	return 0, entity.RelayCell{}, domain.ErrDigestMismatch
}
