package util

import (
	"github.com/fxamacker/cbor/v2"
)

// EncodePayload serializes any type as canonical CBOR
func EncodePayload(payload any) ([]byte, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(payload)
}

// DecodePayload deserializes CBOR into the specified type using generics
func DecodePayload[T any](data []byte) (*T, error) {
	var result T
	if err := cbor.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
