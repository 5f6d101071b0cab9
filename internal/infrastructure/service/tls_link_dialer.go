package service

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/infrastructure/crypto"
)

const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultHandshakeTimeout = 20 * time.Second
)

// TLSLinkDialerConfig configures NewTLSLinkDialer. Zero fields take defaults.
type TLSLinkDialerConfig struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	// Versions offered in our VERSIONS cell.
	Versions []vo.LinkVersion
	// Dialer carries the TCP connection, e.g. a SOCKS5 upstream.
	Dialer proxy.ContextDialer
	Log    *logging.Logger
	Now    func() time.Time
}

type tlsLinkDialer struct {
	cfg TLSLinkDialerConfig
}

// NewTLSLinkDialer returns a LinkDialer that speaks the client side of the
// link handshake over TLS.
func NewTLSLinkDialer(cfg TLSLinkDialerConfig) service.LinkDialer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if len(cfg.Versions) == 0 {
		cfg.Versions = vo.SupportedLinkVersions
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	if cfg.Log == nil {
		cfg.Log = logging.MustGetLogger("link")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &tlsLinkDialer{cfg: cfg}
}

func (d *tlsLinkDialer) Connect(ctx context.Context, desc *entity.RelayDescriptor) (service.LinkConnection, error) {
	fp := desc.Fingerprint()
	addr := desc.Endpoint().String()

	dctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	raw, err := d.cfg.Dialer.DialContext(dctx, "tcp", addr)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, domain.NewConnectionError("dial "+addr, fp, err)
	}

	deadline := d.cfg.Now().Add(d.cfg.HandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := raw.SetDeadline(deadline); err != nil {
		raw.Close()
		return nil, domain.NewConnectionError("set deadline", fp, err)
	}
	// Cancellation interrupts any blocked handshake I/O.
	stop := context.AfterFunc(ctx, func() { raw.Close() })
	defer stop()

	link, err := d.handshake(ctx, raw, desc)
	if err != nil {
		raw.Close()
		if ctx.Err() != nil {
			return nil, domain.NewContextError("link handshake", fp, ctx.Err())
		}
		return nil, err
	}
	if !stop() {
		link.Close()
		return nil, domain.NewContextError("link handshake", fp, ctx.Err())
	}
	if err := raw.SetDeadline(time.Time{}); err != nil {
		link.Close()
		return nil, domain.NewConnectionError("clear deadline", fp, err)
	}
	d.cfg.Log.Infof("link to %s (%s) open, %s", desc.Nickname(), addr, link.Version())
	return link, nil
}

func (d *tlsLinkDialer) handshake(ctx context.Context, raw net.Conn, desc *entity.RelayDescriptor) (*linkConnectionImpl, error) {
	fp := desc.Fingerprint()
	conn := tls.Client(raw, &tls.Config{
		// Relays present self-signed certificates; the CERTS cell is what
		// authenticates them.
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, handshakeError("tls handshake", fp, err)
	}
	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		return nil, domain.NewConnectionError("tls handshake", fp, errors.New("no peer certificate"))
	}

	versions, err := entity.VersionsCodec.EncodeVariable(0, vo.CmdVersions, vo.EncodeVersions(d.cfg.Versions))
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(versions); err != nil {
		return nil, handshakeError("send VERSIONS", fp, err)
	}
	c, err := entity.VersionsCodec.Decode(conn)
	if err != nil {
		return nil, handshakeError("receive VERSIONS", fp, err)
	}
	if c.Cmd != vo.CmdVersions {
		return nil, domain.NewProtocolError("receive VERSIONS", fp, errors.Errorf("unexpected %s", c.Cmd))
	}
	theirs, err := vo.DecodeVersions(c.Payload)
	if err != nil {
		return nil, domain.NewMalformedCellError("receive VERSIONS", err)
	}
	v, ok := vo.NegotiateLinkVersion(d.cfg.Versions, theirs)
	if !ok {
		return nil, domain.NewConnectionError("negotiate version", fp, errors.Errorf("no common link version in %v", theirs))
	}

	codec := entity.CodecFor(v)
	var proven vo.Fingerprint
	certsSeen := false
	for done := false; !done; {
		c, err := codec.Decode(conn)
		if err != nil {
			return nil, handshakeError("link handshake", fp, err)
		}
		switch c.Cmd {
		case vo.CmdPadding, vo.CmdVPadding, vo.CmdAuthChallenge:
			// We never authenticate, so AUTH_CHALLENGE needs no answer.
		case vo.CmdCerts:
			if certsSeen {
				return nil, domain.NewProtocolError("receive CERTS", fp, errors.New("duplicate CERTS cell"))
			}
			certsSeen = true
			p, err := vo.ParseCertsPayload(c.Payload)
			if err != nil {
				return nil, domain.NewMalformedCellError("receive CERTS", err)
			}
			proven, err = crypto.VerifyLinkCerts(p, peerCerts[0], fp, d.cfg.Now())
			if err != nil {
				return nil, domain.NewConnectionError("verify CERTS", fp, err)
			}
		case vo.CmdNetinfo:
			if !certsSeen {
				return nil, domain.NewProtocolError("receive NETINFO", fp, errors.New("NETINFO before CERTS"))
			}
			if _, err := vo.ParseNetInfo(c.Payload); err != nil {
				return nil, domain.NewMalformedCellError("receive NETINFO", err)
			}
			done = true
		default:
			return nil, domain.NewProtocolError("link handshake", fp, errors.Errorf("unexpected %s", c.Cmd))
		}
	}

	body, err := vo.NetInfo{OtherAddr: desc.Addr()}.MarshalBinary()
	if err != nil {
		return nil, err
	}
	netinfo, err := codec.EncodeFixed(0, vo.CmdNetinfo, body)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(netinfo); err != nil {
		return nil, handshakeError("send NETINFO", fp, err)
	}
	return newLinkConnection(conn, v, proven, d.cfg.Log), nil
}

// handshakeError classifies an I/O failure during link setup.
func handshakeError(op string, fp vo.Fingerprint, err error) error {
	if _, ok := domain.AsCircuitError(err); ok {
		return err
	}
	if isTimeout(err) {
		return domain.NewLinkTimeoutError(op, fp, err)
	}
	return domain.NewConnectionError(op, fp, err)
}
