package entity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"ikedadada/go-torcircuit/internal/domain"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// FixedCellLen is the wire size of a fixed-length cell on a v4+ link.
const FixedCellLen = 4 + 1 + vo.CellPayloadLen

// Cell represents a single link-level cell exchanged with a relay.
type Cell struct {
	CircID  vo.CircuitID
	Cmd     vo.CellCommand
	Payload []byte
}

// Codec frames cells for one link. Links start with 2-byte circuit ids for
// the VERSIONS exchange and switch to 4-byte ids once v4+ is negotiated.
type Codec struct {
	CircIDLen int
}

var (
	LinkCodec     = Codec{CircIDLen: 4}
	VersionsCodec = Codec{CircIDLen: 2}
)

// CodecFor returns the codec used after negotiating v.
func CodecFor(v vo.LinkVersion) Codec { return Codec{CircIDLen: v.CircIDLen()} }

func (c Codec) putHeader(buf []byte, id vo.CircuitID, cmd vo.CellCommand) int {
	if c.CircIDLen == 2 {
		binary.BigEndian.PutUint16(buf, uint16(id))
	} else {
		binary.BigEndian.PutUint32(buf, uint32(id))
	}
	buf[c.CircIDLen] = byte(cmd)
	return c.CircIDLen + 1
}

// EncodeFixed serializes a fixed-length cell, zero padding the payload to
// 509 bytes.
func (c Codec) EncodeFixed(id vo.CircuitID, cmd vo.CellCommand, payload []byte) ([]byte, error) {
	if cmd.IsVariableLength() {
		return nil, fmt.Errorf("%w: %s is a variable-length command", domain.ErrEncoding, cmd)
	}
	if len(payload) > vo.CellPayloadLen {
		return nil, fmt.Errorf("%w: payload too big: %d > %d", domain.ErrEncoding, len(payload), vo.CellPayloadLen)
	}
	buf := make([]byte, c.CircIDLen+1+vo.CellPayloadLen)
	n := c.putHeader(buf, id, cmd)
	copy(buf[n:], payload)
	return buf, nil
}

// EncodeVariable serializes a variable-length cell with its 2-byte length.
func (c Codec) EncodeVariable(id vo.CircuitID, cmd vo.CellCommand, payload []byte) ([]byte, error) {
	if len(payload) > vo.MaxVariablePayloadLen {
		return nil, fmt.Errorf("%w: payload too big: %d > %d", domain.ErrEncoding, len(payload), vo.MaxVariablePayloadLen)
	}
	buf := make([]byte, c.CircIDLen+1+2+len(payload))
	n := c.putHeader(buf, id, cmd)
	binary.BigEndian.PutUint16(buf[n:], uint16(len(payload)))
	copy(buf[n+2:], payload)
	return buf, nil
}

// Encode picks fixed or variable framing from the command.
func (c Codec) Encode(cell *Cell) ([]byte, error) {
	if cell.Cmd.IsVariableLength() {
		return c.EncodeVariable(cell.CircID, cell.Cmd, cell.Payload)
	}
	return c.EncodeFixed(cell.CircID, cell.Cmd, cell.Payload)
}

// Decode reads exactly one cell from r. A clean end of stream before the
// first byte is returned as io.EOF; anything cut short after that, or an
// unknown fixed-length command, is a malformed cell. Other read errors
// (deadlines, resets) are returned unchanged for the caller to classify.
func (c Codec) Decode(r io.Reader) (*Cell, error) {
	hdr := make([]byte, c.CircIDLen+1)
	if _, err := io.ReadFull(r, hdr); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, domain.NewMalformedCellError("decode cell", fmt.Errorf("truncated header"))
		}
		return nil, err
	}
	var id vo.CircuitID
	if c.CircIDLen == 2 {
		id = vo.CircuitID(binary.BigEndian.Uint16(hdr))
	} else {
		id = vo.CircuitID(binary.BigEndian.Uint32(hdr))
	}
	cmd := vo.CellCommand(hdr[c.CircIDLen])

	var plen int
	if cmd.IsVariableLength() {
		var l [2]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return nil, truncated(err, cmd)
		}
		plen = int(binary.BigEndian.Uint16(l[:]))
	} else {
		if !cmd.IsValid() {
			return nil, domain.NewMalformedCellError("decode cell", fmt.Errorf("unknown command %d", byte(cmd)))
		}
		plen = vo.CellPayloadLen
	}
	payload := make([]byte, plen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, truncated(err, cmd)
	}
	return &Cell{CircID: id, Cmd: cmd, Payload: payload}, nil
}

func truncated(err error, cmd vo.CellCommand) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.NewMalformedCellError("decode cell", fmt.Errorf("truncated %s cell", cmd))
	}
	return err
}

// EncodeFixed encodes with 4-byte circuit ids.
func EncodeFixed(id vo.CircuitID, cmd vo.CellCommand, payload []byte) ([]byte, error) {
	return LinkCodec.EncodeFixed(id, cmd, payload)
}

// EncodeVariable encodes with 4-byte circuit ids.
func EncodeVariable(id vo.CircuitID, cmd vo.CellCommand, payload []byte) ([]byte, error) {
	return LinkCodec.EncodeVariable(id, cmd, payload)
}

// Decode decodes with 4-byte circuit ids.
func Decode(r io.Reader) (*Cell, error) { return LinkCodec.Decode(r) }
