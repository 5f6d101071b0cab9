package service

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/binary"
	"net"
	"net/netip"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/infrastructure/crypto"
)

// authChallengeMethodRSASHA256TLSSecret is the only authentication method
// we advertise in AUTH_CHALLENGE.
const authChallengeMethodRSASHA256TLSSecret = 1

// LinkResponderConfig configures AcceptLink.
type LinkResponderConfig struct {
	Credentials      *crypto.RelayCredentials
	Versions         []vo.LinkVersion
	HandshakeTimeout time.Duration
	Log              *logging.Logger
}

// AcceptLink runs the responder side of the link handshake on an accepted
// TCP connection. The initiator is not authenticated, so the returned
// link has a zero PeerIdentity.
func AcceptLink(raw net.Conn, cfg LinkResponderConfig) (service.LinkConnection, error) {
	if cfg.Credentials == nil {
		return nil, errors.New("responder credentials required")
	}
	if len(cfg.Versions) == 0 {
		cfg.Versions = vo.SupportedLinkVersions
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Log == nil {
		cfg.Log = logging.MustGetLogger("link")
	}
	if err := raw.SetDeadline(time.Now().Add(cfg.HandshakeTimeout)); err != nil {
		return nil, domain.NewConnectionError("set deadline", vo.Fingerprint{}, err)
	}

	conn := tls.Server(raw, &tls.Config{
		Certificates: []tls.Certificate{cfg.Credentials.TLS},
		MinVersion:   tls.VersionTLS12,
	})
	if err := conn.Handshake(); err != nil {
		return nil, handshakeError("tls handshake", vo.Fingerprint{}, err)
	}

	c, err := entity.VersionsCodec.Decode(conn)
	if err != nil {
		return nil, handshakeError("receive VERSIONS", vo.Fingerprint{}, err)
	}
	if c.Cmd != vo.CmdVersions {
		return nil, domain.NewProtocolError("receive VERSIONS", vo.Fingerprint{}, errors.Errorf("unexpected %s", c.Cmd))
	}
	theirs, err := vo.DecodeVersions(c.Payload)
	if err != nil {
		return nil, domain.NewMalformedCellError("receive VERSIONS", err)
	}
	versions, err := entity.VersionsCodec.EncodeVariable(0, vo.CmdVersions, vo.EncodeVersions(cfg.Versions))
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(versions); err != nil {
		return nil, handshakeError("send VERSIONS", vo.Fingerprint{}, err)
	}
	v, ok := vo.NegotiateLinkVersion(cfg.Versions, theirs)
	if !ok {
		return nil, domain.NewConnectionError("negotiate version", vo.Fingerprint{}, errors.Errorf("no common link version in %v", theirs))
	}

	codec := entity.CodecFor(v)
	out, err := responderPreamble(codec, cfg.Credentials, raw)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(out); err != nil {
		return nil, handshakeError("send CERTS", vo.Fingerprint{}, err)
	}

	for {
		c, err := codec.Decode(conn)
		if err != nil {
			return nil, handshakeError("receive NETINFO", vo.Fingerprint{}, err)
		}
		if c.Cmd == vo.CmdPadding || c.Cmd == vo.CmdVPadding {
			continue
		}
		if c.Cmd != vo.CmdNetinfo {
			return nil, domain.NewProtocolError("receive NETINFO", vo.Fingerprint{}, errors.Errorf("unexpected %s", c.Cmd))
		}
		if _, err := vo.ParseNetInfo(c.Payload); err != nil {
			return nil, domain.NewMalformedCellError("receive NETINFO", err)
		}
		break
	}
	if err := raw.SetDeadline(time.Time{}); err != nil {
		return nil, domain.NewConnectionError("clear deadline", vo.Fingerprint{}, err)
	}
	cfg.Log.Debugf("accepted link from %s, %s", raw.RemoteAddr(), v)
	return newLinkConnection(conn, v, vo.Fingerprint{}, cfg.Log), nil
}

// responderPreamble encodes CERTS, AUTH_CHALLENGE and NETINFO.
func responderPreamble(codec entity.Codec, creds *crypto.RelayCredentials, raw net.Conn) ([]byte, error) {
	certs, err := creds.Certs().MarshalBinary()
	if err != nil {
		return nil, err
	}
	out, err := codec.EncodeVariable(0, vo.CmdCerts, certs)
	if err != nil {
		return nil, err
	}

	challenge := make([]byte, 32, 36)
	if _, err := rand.Read(challenge); err != nil {
		return nil, errors.Wrap(err, "auth challenge")
	}
	challenge = binary.BigEndian.AppendUint16(challenge, 1)
	challenge = binary.BigEndian.AppendUint16(challenge, authChallengeMethodRSASHA256TLSSecret)
	cell, err := codec.EncodeVariable(0, vo.CmdAuthChallenge, challenge)
	if err != nil {
		return nil, err
	}
	out = append(out, cell...)

	ni := vo.NetInfo{Time: uint32(time.Now().Unix())}
	if ap, err := netip.ParseAddrPort(raw.RemoteAddr().String()); err == nil {
		ni.OtherAddr = ap.Addr()
	}
	if ap, err := netip.ParseAddrPort(raw.LocalAddr().String()); err == nil {
		ni.MyAddrs = []netip.Addr{ap.Addr()}
	}
	body, err := ni.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cell, err = codec.EncodeFixed(0, vo.CmdNetinfo, body)
	if err != nil {
		return nil, err
	}
	return append(out, cell...), nil
}
