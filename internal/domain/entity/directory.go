package entity

// Directory is a relay catalog document as published by a directory
// mirror or written by hand for a test network.
type Directory struct {
	Relays []RelayInfo `json:"relays"`
}

// RelayInfo is one catalog entry before validation.
type RelayInfo struct {
	Nickname     string   `json:"nickname"`
	Address      string   `json:"address"`
	ORPort       uint16   `json:"or_port"`
	DirPort      uint16   `json:"dir_port,omitempty"`
	Fingerprint  string   `json:"fingerprint"`
	NtorOnionKey string   `json:"ntor_onion_key"`
	Ed25519ID    string   `json:"ed25519_id,omitempty"`
	Flags        []string `json:"flags"`
}

// Descriptor validates the entry.
func (ri RelayInfo) Descriptor() (*RelayDescriptor, error) {
	return NewRelayDescriptor(RelayDescriptorParams{
		Nickname:     ri.Nickname,
		Address:      ri.Address,
		ORPort:       ri.ORPort,
		DirPort:      ri.DirPort,
		Fingerprint:  ri.Fingerprint,
		NtorOnionKey: ri.NtorOnionKey,
		Ed25519ID:    ri.Ed25519ID,
		Flags:        ri.Flags,
	})
}

// RelayInfoFrom is the inverse of Descriptor.
func RelayInfoFrom(d *RelayDescriptor) RelayInfo {
	p := d.Params()
	return RelayInfo{
		Nickname:     p.Nickname,
		Address:      p.Address,
		ORPort:       p.ORPort,
		DirPort:      p.DirPort,
		Fingerprint:  p.Fingerprint,
		NtorOnionKey: p.NtorOnionKey,
		Ed25519ID:    p.Ed25519ID,
		Flags:        p.Flags,
	}
}
