package value_object

import "github.com/google/uuid"

// CircuitHandle names a circuit inside this process. Unlike CircuitID it
// is unique across links and never goes on the wire.
type CircuitHandle struct{ val uuid.UUID }

func NewCircuitHandle() CircuitHandle { return CircuitHandle{uuid.New()} }
func CircuitHandleFrom(s string) (CircuitHandle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CircuitHandle{}, err
	}
	return CircuitHandle{val: id}, nil
}
func (c CircuitHandle) String() string             { return c.val.String() }
func (c CircuitHandle) Equal(o CircuitHandle) bool { return c.val == o.val }
func (c CircuitHandle) IsZero() bool               { return c.val == uuid.Nil }
