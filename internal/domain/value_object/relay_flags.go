package value_object

import (
	"fmt"
	"strings"
)

// RelayFlags is the set of consensus flags attached to a relay.
type RelayFlags uint16

const (
	FlagAuthority RelayFlags = 1 << iota
	FlagBadExit
	FlagExit
	FlagFast
	FlagGuard
	FlagHSDir
	FlagRunning
	FlagStable
	FlagV2Dir
	FlagValid
)

var relayFlagNames = []struct {
	flag RelayFlags
	name string
}{
	{FlagAuthority, "Authority"},
	{FlagBadExit, "BadExit"},
	{FlagExit, "Exit"},
	{FlagFast, "Fast"},
	{FlagGuard, "Guard"},
	{FlagHSDir, "HSDir"},
	{FlagRunning, "Running"},
	{FlagStable, "Stable"},
	{FlagV2Dir, "V2Dir"},
	{FlagValid, "Valid"},
}

// ParseRelayFlag maps a consensus flag name (case-insensitive) to its bit.
func ParseRelayFlag(s string) (RelayFlags, error) {
	for _, f := range relayFlagNames {
		if strings.EqualFold(f.name, s) {
			return f.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown relay flag %q", s)
}

// ParseRelayFlags folds a list of flag names into a set.
func ParseRelayFlags(names []string) (RelayFlags, error) {
	var out RelayFlags
	for _, n := range names {
		f, err := ParseRelayFlag(n)
		if err != nil {
			return 0, err
		}
		out |= f
	}
	return out, nil
}

// Has reports whether every flag in want is set.
func (f RelayFlags) Has(want RelayFlags) bool { return f&want == want }

func (f RelayFlags) Names() []string {
	var out []string
	for _, n := range relayFlagNames {
		if f&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (f RelayFlags) String() string { return strings.Join(f.Names(), " ") }
