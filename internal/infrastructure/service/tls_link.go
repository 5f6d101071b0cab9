package service

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// linkConnectionImpl is a negotiated link over a (TLS) stream. Writes are
// serialised; reads are expected from one goroutine at a time.
type linkConnectionImpl struct {
	conn    net.Conn
	codec   entity.Codec
	version vo.LinkVersion
	peer    vo.Fingerprint
	log     *logging.Logger

	wmu sync.Mutex
	rmu sync.Mutex

	idMu sync.Mutex
	ids  map[vo.CircuitID]struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewLinkConnection wraps a stream whose link handshake has already
// completed with version v and proven identity peer.
func NewLinkConnection(conn net.Conn, v vo.LinkVersion, peer vo.Fingerprint, log *logging.Logger) service.LinkConnection {
	return newLinkConnection(conn, v, peer, log)
}

func newLinkConnection(conn net.Conn, v vo.LinkVersion, peer vo.Fingerprint, log *logging.Logger) *linkConnectionImpl {
	if log == nil {
		log = logging.MustGetLogger("link")
	}
	return &linkConnectionImpl{
		conn:    conn,
		codec:   entity.CodecFor(v),
		version: v,
		peer:    peer,
		log:     log,
		ids:     make(map[vo.CircuitID]struct{}),
	}
}

func (l *linkConnectionImpl) Version() vo.LinkVersion      { return l.version }
func (l *linkConnectionImpl) PeerIdentity() vo.Fingerprint { return l.peer }

func (l *linkConnectionImpl) SendCell(c *entity.Cell) error {
	if l.closed.Load() {
		return domain.NewConnectionError("send cell", l.peer, domain.ErrLinkClosed)
	}
	buf, err := l.codec.Encode(c)
	if err != nil {
		return err
	}
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if _, err := l.conn.Write(buf); err != nil {
		return l.classify("send "+c.Cmd.String(), err)
	}
	l.log.Debugf("-> %s circ=%s", c.Cmd, c.CircID)
	return nil
}

func (l *linkConnectionImpl) RecvCell(timeout time.Duration) (*entity.Cell, error) {
	l.rmu.Lock()
	defer l.rmu.Unlock()
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := l.conn.SetReadDeadline(deadline); err != nil && !l.closed.Load() {
		return nil, l.classify("set read deadline", err)
	}
	for {
		c, err := l.codec.Decode(l.conn)
		if err != nil {
			return nil, l.classify("receive cell", err)
		}
		if c.Cmd == vo.CmdPadding || c.Cmd == vo.CmdVPadding {
			continue
		}
		l.log.Debugf("<- %s circ=%s", c.Cmd, c.CircID)
		return c, nil
	}
}

func (l *linkConnectionImpl) ClaimCircuitID(id vo.CircuitID) bool {
	if id.IsZero() {
		return false
	}
	l.idMu.Lock()
	defer l.idMu.Unlock()
	if _, taken := l.ids[id]; taken {
		return false
	}
	l.ids[id] = struct{}{}
	return true
}

func (l *linkConnectionImpl) ReleaseCircuitID(id vo.CircuitID) {
	l.idMu.Lock()
	defer l.idMu.Unlock()
	delete(l.ids, id)
}

func (l *linkConnectionImpl) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.conn.Close()
		l.log.Debugf("link to %s closed", l.peer)
	})
	return l.closeErr
}

// classify turns a transport error into the circuit error taxonomy.
func (l *linkConnectionImpl) classify(op string, err error) error {
	if ce, ok := domain.AsCircuitError(err); ok {
		if ce.Relay.IsZero() {
			ce.Relay = l.peer
		}
		return err
	}
	if l.closed.Load() {
		return domain.NewConnectionError(op, l.peer, domain.ErrLinkClosed)
	}
	if isTimeout(err) {
		return domain.NewLinkTimeoutError(op, l.peer, err)
	}
	if errors.Is(err, io.EOF) {
		return domain.NewConnectionError(op, l.peer, pkgerrors.Wrap(err, "peer closed link"))
	}
	return domain.NewConnectionError(op, l.peer, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
