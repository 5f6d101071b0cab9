package value_object

// StreamID is the relay header stream field. Circuit control messages
// such as EXTEND2 always use stream 0.
type StreamID uint16

const ControlStream StreamID = 0
