package value_object

import "fmt"

const (
	// CellPayloadLen is the payload size of every fixed-length cell.
	CellPayloadLen = 509
	// MaxVariablePayloadLen is bounded by the 16-bit length prefix.
	MaxVariablePayloadLen = 0xffff
)

// CellCommand is the command byte of a link-level cell.
type CellCommand byte

const (
	CmdPadding          CellCommand = 0
	CmdCreate           CellCommand = 1
	CmdCreated          CellCommand = 2
	CmdRelay            CellCommand = 3
	CmdDestroy          CellCommand = 4
	CmdCreateFast       CellCommand = 5
	CmdCreatedFast      CellCommand = 6
	CmdVersions         CellCommand = 7
	CmdNetinfo          CellCommand = 8
	CmdRelayEarly       CellCommand = 9
	CmdCreate2          CellCommand = 10
	CmdCreated2         CellCommand = 11
	CmdPaddingNegotiate CellCommand = 12

	CmdVPadding      CellCommand = 128
	CmdCerts         CellCommand = 129
	CmdAuthChallenge CellCommand = 130
	CmdAuthenticate  CellCommand = 131
	CmdAuthorize     CellCommand = 132
)

var cellCommandNames = map[CellCommand]string{
	CmdPadding:          "PADDING",
	CmdCreate:           "CREATE",
	CmdCreated:          "CREATED",
	CmdRelay:            "RELAY",
	CmdDestroy:          "DESTROY",
	CmdCreateFast:       "CREATE_FAST",
	CmdCreatedFast:      "CREATED_FAST",
	CmdVersions:         "VERSIONS",
	CmdNetinfo:          "NETINFO",
	CmdRelayEarly:       "RELAY_EARLY",
	CmdCreate2:          "CREATE2",
	CmdCreated2:         "CREATED2",
	CmdPaddingNegotiate: "PADDING_NEGOTIATE",
	CmdVPadding:         "VPADDING",
	CmdCerts:            "CERTS",
	CmdAuthChallenge:    "AUTH_CHALLENGE",
	CmdAuthenticate:     "AUTHENTICATE",
	CmdAuthorize:        "AUTHORIZE",
}

// IsVariableLength reports whether cells with this command carry a
// 2-byte length prefix instead of a fixed 509-byte payload.
func (c CellCommand) IsVariableLength() bool {
	return c == CmdVersions || c >= 128
}

// IsValid reports whether the command is one we know how to frame.
func (c CellCommand) IsValid() bool {
	_, ok := cellCommandNames[c]
	return ok
}

func (c CellCommand) String() string {
	if n, ok := cellCommandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", byte(c))
}
