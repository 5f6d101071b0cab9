package relaysim

import (
	"errors"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// hopCircuit is a relay's view of one circuit. next is set once the
// circuit was extended through this relay.
type hopCircuit struct {
	relay *Relay
	hop   *entity.HopCryptoState
	next  *hopCircuit
}

func (c *hopCircuit) wipe() {
	for h := c; h != nil; h = h.next {
		h.hop.Wipe()
	}
}

// ServeLink answers cells arriving on link until it fails or closes.
func (r *Relay) ServeLink(link service.LinkConnection) {
	r.log.Debugf("%s: serving link", r.nickname)
	defer func() {
		link.Close()
		r.log.Debugf("%s: link done", r.nickname)
	}()

	s := &linkSession{relay: r, link: link, circuits: make(map[vo.CircuitID]*hopCircuit)}
	for {
		cell, err := link.RecvCell(0)
		if err != nil {
			if !domain.IsKind(err, domain.KindConnection) {
				r.log.Warningf("%s: receive: %v", r.nickname, err)
			}
			s.closeAll()
			return
		}
		if err := s.handle(cell); err != nil {
			r.log.Warningf("%s: circuit %s: %v", r.nickname, cell.CircID, err)
		}
	}
}

type linkSession struct {
	relay    *Relay
	link     service.LinkConnection
	circuits map[vo.CircuitID]*hopCircuit
	lastBack []byte
}

func (s *linkSession) handle(cell *entity.Cell) error {
	switch cell.Cmd {
	case vo.CmdCreate2:
		return s.create(cell)
	case vo.CmdRelay, vo.CmdRelayEarly:
		return s.relayForward(cell)
	case vo.CmdDestroy:
		if c, ok := s.circuits[cell.CircID]; ok {
			c.wipe()
			delete(s.circuits, cell.CircID)
		}
		return nil
	default:
		return nil
	}
}

func (s *linkSession) create(cell *entity.Cell) error {
	if _, dup := s.circuits[cell.CircID]; dup {
		return s.destroy(cell.CircID, vo.DestroyProtocol)
	}
	req, err := vo.ParseCreate2Payload(cell.Payload)
	if err != nil {
		return s.destroy(cell.CircID, vo.DestroyProtocol)
	}
	reply, hop, reason := s.relay.answerCreate(req)
	if reply == nil {
		if reason == vo.DestroyNone {
			return nil
		}
		return s.destroy(cell.CircID, reason)
	}
	body, err := reply.MarshalBinary()
	if err != nil {
		return err
	}
	s.circuits[cell.CircID] = &hopCircuit{relay: s.relay, hop: hop}
	return s.link.SendCell(&entity.Cell{CircID: cell.CircID, Cmd: vo.CmdCreated2, Payload: body})
}

func (s *linkSession) relayForward(cell *entity.Cell) error {
	c, ok := s.circuits[cell.CircID]
	if !ok {
		return nil
	}
	body := append([]byte(nil), cell.Payload...)
	back, err := c.forward(body)
	if err != nil {
		c.wipe()
		delete(s.circuits, cell.CircID)
		return errors.Join(err, s.destroy(cell.CircID, vo.DestroyProtocol))
	}
	if back == nil {
		return nil
	}
	if s.relay.Behavior().ReplayBackward && s.lastBack != nil {
		back, s.lastBack = s.lastBack, back
	} else {
		s.lastBack = back
	}
	return s.link.SendCell(&entity.Cell{CircID: cell.CircID, Cmd: vo.CmdRelay, Payload: back})
}

func (s *linkSession) destroy(id vo.CircuitID, reason vo.DestroyReason) error {
	return s.link.SendCell(&entity.Cell{CircID: id, Cmd: vo.CmdDestroy, Payload: []byte{byte(reason)}})
}

func (s *linkSession) closeAll() {
	for id, c := range s.circuits {
		c.wipe()
		delete(s.circuits, id)
	}
}

var errUnrecognized = errors.New("relay cell not recognised at last hop")

// forward removes this hop's layer and either handles the cell here or
// passes it on. It returns the backward body to send, or nil for none.
func (c *hopCircuit) forward(body []byte) ([]byte, error) {
	c.hop.ApplyForward(body)
	if entity.IsRecognized(body) && c.hop.VerifyForward(body) {
		rc, err := entity.DecodeRelayCell(body)
		if err != nil {
			return nil, err
		}
		return c.handleRelay(rc)
	}
	if c.next == nil {
		return nil, errUnrecognized
	}
	back, err := c.next.forward(body)
	if err != nil || back == nil {
		return nil, err
	}
	c.hop.ApplyBackward(back)
	return back, nil
}

func (c *hopCircuit) handleRelay(rc entity.RelayCell) ([]byte, error) {
	r := c.relay
	switch rc.Cmd {
	case vo.RelayExtend2:
		if c.next != nil {
			return r.originate(c.hop, entity.RelayCell{Cmd: vo.RelayTruncated, Data: []byte{byte(vo.DestroyProtocol)}})
		}
		ext, err := vo.ParseExtend2Payload(rc.Data)
		if err != nil {
			return nil, err
		}
		return c.extend(ext)
	default:
		r.log.Debugf("%s: ignoring %s", r.nickname, rc.Cmd)
		return nil, nil
	}
}

func (c *hopCircuit) extend(ext vo.Extend2Payload) ([]byte, error) {
	r := c.relay
	truncate := func(reason vo.DestroyReason) ([]byte, error) {
		return r.originate(c.hop, entity.RelayCell{Cmd: vo.RelayTruncated, Data: []byte{byte(reason)}})
	}
	if reason := r.Behavior().TruncateOnExtend; reason != vo.DestroyNone {
		return truncate(reason)
	}
	fp, ok := ext.Fingerprint()
	if !ok {
		return truncate(vo.DestroyProtocol)
	}
	target := r.network.Lookup(fp)
	if target == nil {
		r.log.Infof("%s: extend to unknown relay %s", r.nickname, fp)
		return truncate(vo.DestroyConnectFailed)
	}
	reply, hop, reason := target.answerCreate(ext.Handshake)
	if reply == nil {
		if reason == vo.DestroyNone {
			return nil, nil
		}
		return truncate(reason)
	}
	data, err := reply.MarshalBinary()
	if err != nil {
		return nil, err
	}
	c.next = &hopCircuit{relay: target, hop: hop}
	r.log.Debugf("%s: extended to %s", r.nickname, target.nickname)
	return r.originate(c.hop, entity.RelayCell{Cmd: vo.RelayExtended2, Data: data})
}
