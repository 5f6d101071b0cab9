package entity_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

func testHopPair(t *testing.T) (client, relay *entity.HopCryptoState) {
	t.Helper()
	material := make([]byte, entity.HopKeyMaterialLen)
	for i := range material {
		material[i] = byte(i)
	}
	keys, err := entity.HopKeysFromMaterial(material)
	require.NoError(t, err)
	fp := vo.Fingerprint{0xaa}
	client, err = entity.NewHopCryptoState(fp, keys)
	require.NoError(t, err)
	relay, err = entity.NewHopCryptoState(fp, keys)
	require.NoError(t, err)
	return client, relay
}

func relayBody(t *testing.T, data string) []byte {
	t.Helper()
	b, err := entity.RelayCell{Cmd: vo.RelayExtend2, Data: []byte(data)}.Encode(rand.Reader)
	require.NoError(t, err)
	return b
}

func TestHopCryptoState_ForwardRoundTrip(t *testing.T) {
	client, relay := testHopPair(t)
	for i := 0; i < 3; i++ {
		body := relayBody(t, "hello")
		plain := append([]byte(nil), body...)
		client.SealForward(body)
		client.ApplyForward(body)
		require.NotEqual(t, plain[11:16], body[11:16])

		relay.ApplyForward(body)
		require.True(t, relay.VerifyForward(body), "cell %d", i)
		rc, err := entity.DecodeRelayCell(body)
		require.NoError(t, err)
		assert.Equal(t, vo.RelayExtend2, rc.Cmd)
		assert.Equal(t, []byte("hello"), rc.Data)
	}
}

func TestHopCryptoState_BackwardRoundTrip(t *testing.T) {
	client, relay := testHopPair(t)
	body := relayBody(t, "extended")
	relay.SealBackward(body)
	relay.ApplyBackward(body)

	client.ApplyBackward(body)
	require.True(t, client.VerifyBackward(body))
	assert.Equal(t, vo.Fingerprint{0xaa}, client.Relay())
}

func TestHopCryptoState_MismatchDoesNotAdvanceDigest(t *testing.T) {
	client, relay := testHopPair(t)

	// A body sealed with a foreign digest must be rejected...
	_, other := testHopPair(t)
	forged := relayBody(t, "forged")
	other.SealBackward(forged)
	other.SealBackward(forged)
	require.False(t, client.VerifyBackward(forged))

	// ...and must not disturb the next genuine cell.
	good := relayBody(t, "genuine")
	relay.SealBackward(good)
	require.True(t, client.VerifyBackward(good))
}

func TestHopCryptoState_Replay(t *testing.T) {
	client, relay := testHopPair(t)
	body := relayBody(t, "once")
	relay.SealBackward(body)
	relay.ApplyBackward(body)
	replay := append([]byte(nil), body...)

	client.ApplyBackward(body)
	require.True(t, client.VerifyBackward(body))

	client.ApplyBackward(replay)
	assert.False(t, client.VerifyBackward(replay))
}

func TestHopKeysFromMaterial(t *testing.T) {
	m := make([]byte, 92)
	for i := range m {
		m[i] = byte(i)
	}
	k, err := entity.HopKeysFromMaterial(m)
	require.NoError(t, err)
	assert.Equal(t, m[0:20], k.Df[:])
	assert.Equal(t, m[20:40], k.Db[:])
	assert.Equal(t, m[40:56], k.Kf[:])
	assert.Equal(t, m[56:72], k.Kb[:])

	k.Wipe()
	assert.Equal(t, entity.HopKeys{}, k)

	_, err = entity.HopKeysFromMaterial(m[:71])
	require.Error(t, err)
}

func TestRelayCell_Encode(t *testing.T) {
	body, err := entity.RelayCell{Cmd: vo.RelayExtended2, Data: []byte{1, 2, 3}}.Encode(bytes.NewReader(bytes.Repeat([]byte{0xff}, 600)))
	require.NoError(t, err)
	require.Len(t, body, vo.CellPayloadLen)
	assert.Equal(t, byte(vo.RelayExtended2), body[0])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, body[1:9], "recognized, stream and digest are zero")
	assert.Equal(t, []byte{0, 3, 1, 2, 3}, body[9:14])
	assert.Equal(t, []byte{0, 0, 0, 0}, body[14:18])
	assert.Equal(t, byte(0xff), body[18])
	assert.True(t, entity.IsRecognized(body))

	_, err = entity.RelayCell{Data: make([]byte, entity.MaxRelayDataLen+1)}.Encode(nil)
	require.Error(t, err)

	bad := append([]byte(nil), body...)
	bad[9], bad[10] = 0x02, 0x00
	_, err = entity.DecodeRelayCell(bad)
	require.Error(t, err)
}
