package value_object

import "fmt"

// RelayCommand is the command byte inside a decrypted relay cell body.
type RelayCommand byte

const (
	RelayBegin     RelayCommand = 1
	RelayData      RelayCommand = 2
	RelayEnd       RelayCommand = 3
	RelayConnected RelayCommand = 4
	RelaySendMe    RelayCommand = 5
	RelayExtend    RelayCommand = 6
	RelayExtended  RelayCommand = 7
	RelayTruncate  RelayCommand = 8
	RelayTruncated RelayCommand = 9
	RelayDrop      RelayCommand = 10
	RelayResolve   RelayCommand = 11
	RelayResolved  RelayCommand = 12
	RelayBeginDir  RelayCommand = 13
	RelayExtend2   RelayCommand = 14
	RelayExtended2 RelayCommand = 15
)

var relayCommandNames = map[RelayCommand]string{
	RelayBegin:     "BEGIN",
	RelayData:      "DATA",
	RelayEnd:       "END",
	RelayConnected: "CONNECTED",
	RelaySendMe:    "SENDME",
	RelayExtend:    "EXTEND",
	RelayExtended:  "EXTENDED",
	RelayTruncate:  "TRUNCATE",
	RelayTruncated: "TRUNCATED",
	RelayDrop:      "DROP",
	RelayResolve:   "RESOLVE",
	RelayResolved:  "RESOLVED",
	RelayBeginDir:  "BEGIN_DIR",
	RelayExtend2:   "EXTEND2",
	RelayExtended2: "EXTENDED2",
}

func (c RelayCommand) String() string {
	if n, ok := relayCommandNames[c]; ok {
		return "RELAY_" + n
	}
	return fmt.Sprintf("RELAY_unknown(%d)", byte(c))
}
