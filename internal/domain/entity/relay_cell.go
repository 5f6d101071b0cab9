package entity

import (
	"encoding/binary"
	"fmt"
	"io"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// Relay cell body layout:
// command(1) | recognized(2) | stream(2) | digest(4) | length(2) | data(498)
const (
	RelayHeaderLen  = 11
	MaxRelayDataLen = vo.CellPayloadLen - RelayHeaderLen

	relayRecognizedOff = 1
	relayStreamOff     = 3
	relayDigestOff     = 5
	relayDigestLen     = 4
	relayLengthOff     = 9
)

// RelayCell represents the plaintext of a RELAY or RELAY_EARLY payload.
type RelayCell struct {
	Cmd      vo.RelayCommand
	StreamID vo.StreamID
	Data     []byte
}

// Encode lays out a 509-byte body with recognized and digest zeroed. The
// four bytes after the data are zero and the rest is filled from pad.
func (rc RelayCell) Encode(pad io.Reader) ([]byte, error) {
	if len(rc.Data) > MaxRelayDataLen {
		return nil, fmt.Errorf("relay data too big: %d > %d", len(rc.Data), MaxRelayDataLen)
	}
	body := make([]byte, vo.CellPayloadLen)
	body[0] = byte(rc.Cmd)
	binary.BigEndian.PutUint16(body[relayStreamOff:], uint16(rc.StreamID))
	binary.BigEndian.PutUint16(body[relayLengthOff:], uint16(len(rc.Data)))
	copy(body[RelayHeaderLen:], rc.Data)
	if start := RelayHeaderLen + len(rc.Data) + 4; start < len(body) && pad != nil {
		if _, err := io.ReadFull(pad, body[start:]); err != nil {
			return nil, fmt.Errorf("relay padding: %w", err)
		}
	}
	return body, nil
}

// DecodeRelayCell parses a recognised relay body.
func DecodeRelayCell(body []byte) (RelayCell, error) {
	if len(body) != vo.CellPayloadLen {
		return RelayCell{}, fmt.Errorf("relay body must be %d bytes, got %d", vo.CellPayloadLen, len(body))
	}
	l := int(binary.BigEndian.Uint16(body[relayLengthOff:]))
	if l > MaxRelayDataLen {
		return RelayCell{}, fmt.Errorf("relay length %d exceeds %d", l, MaxRelayDataLen)
	}
	return RelayCell{
		Cmd:      vo.RelayCommand(body[0]),
		StreamID: vo.StreamID(binary.BigEndian.Uint16(body[relayStreamOff:])),
		Data:     append([]byte(nil), body[RelayHeaderLen:RelayHeaderLen+l]...),
	}, nil
}

// IsRecognized reports whether the recognized field of a decrypted body is
// zero. It is only a hint; the running digest decides.
func IsRecognized(body []byte) bool {
	return len(body) >= relayDigestOff && body[relayRecognizedOff] == 0 && body[relayRecognizedOff+1] == 0
}
