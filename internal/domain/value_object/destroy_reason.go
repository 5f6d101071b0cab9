package value_object

import "fmt"

// DestroyReason is the one-byte reason carried by DESTROY and
// RELAY_TRUNCATED cells.
type DestroyReason byte

const (
	DestroyNone          DestroyReason = 0
	DestroyProtocol      DestroyReason = 1
	DestroyInternal      DestroyReason = 2
	DestroyRequested     DestroyReason = 3
	DestroyHibernating   DestroyReason = 4
	DestroyResourceLimit DestroyReason = 5
	DestroyConnectFailed DestroyReason = 6
	DestroyORIdentity    DestroyReason = 7
	DestroyChannelClosed DestroyReason = 8
	DestroyFinished      DestroyReason = 9
	DestroyTimeout       DestroyReason = 10
	DestroyDestroyed     DestroyReason = 11
	DestroyNoSuchService DestroyReason = 12
)

var destroyReasonNames = [...]string{
	"none",
	"protocol",
	"internal",
	"requested",
	"hibernating",
	"resourcelimit",
	"connectfailed",
	"or_identity",
	"channel_closed",
	"finished",
	"timeout",
	"destroyed",
	"nosuchservice",
}

func (r DestroyReason) String() string {
	if int(r) < len(destroyReasonNames) {
		return destroyReasonNames[r]
	}
	return fmt.Sprintf("unknown(%d)", byte(r))
}

// DestroyReasonFromPayload reads the reason byte of a DESTROY or
// RELAY_TRUNCATED body. An empty body means no reason was given.
func DestroyReasonFromPayload(p []byte) DestroyReason {
	if len(p) == 0 {
		return DestroyNone
	}
	return DestroyReason(p[0])
}
