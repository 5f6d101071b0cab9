package repository

import (
	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// RelayRepository stores validated relay descriptors.
type RelayRepository interface {
	// Save inserts or replaces the descriptor with the same fingerprint.
	Save(*entity.RelayDescriptor) error
	FindByFingerprint(vo.Fingerprint) (*entity.RelayDescriptor, error)
	// FindByFlags returns relays carrying every flag in f, ordered by
	// fingerprint.
	FindByFlags(f vo.RelayFlags) ([]*entity.RelayDescriptor, error)
	// All returns every relay ordered by fingerprint.
	All() ([]*entity.RelayDescriptor, error)
}
