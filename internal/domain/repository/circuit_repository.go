package repository

import (
	"ikedadada/go-torcircuit/internal/domain/aggregate"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

type CircuitRepository interface {
	Save(*aggregate.Circuit) error
	Find(vo.CircuitHandle) (*aggregate.Circuit, error)
	Delete(vo.CircuitHandle) error
	// ListActive returns circuits that are not destroyed.
	ListActive() ([]*aggregate.Circuit, error)
}
