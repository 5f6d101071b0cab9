package value_object

// CircuitState is the lifecycle position of a client circuit.
type CircuitState uint8

const (
	CircuitEmpty CircuitState = iota
	CircuitOneHop
	CircuitExtending
	CircuitNHops
	CircuitDestroyed
)

func (s CircuitState) String() string {
	switch s {
	case CircuitEmpty:
		return "empty"
	case CircuitOneHop:
		return "one-hop"
	case CircuitExtending:
		return "extending"
	case CircuitNHops:
		return "n-hops"
	case CircuitDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// CanExtend reports whether an EXTEND2 may be started from this state.
func (s CircuitState) CanExtend() bool { return s == CircuitOneHop || s == CircuitNHops }

func (s CircuitState) IsTerminal() bool { return s == CircuitDestroyed }
