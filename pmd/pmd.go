// Package pmd contains definitions shared by the poll-mode driver packages:
// device limits and the error taxonomy of configuration-plane operations.
package pmd

// Device limits.
const (
	// MaxMACAddresses is the number of MAC address slots in the filter table.
	MaxMACAddresses = 128

	// MaxVLANFilters is the number of VLAN filter slots.
	MaxVLANFilters = 128

	// MaxVLANID is the largest valid VLAN identifier.
	MaxVLANID = 4095

	// ScatterSegments is the number of buffer segments in a scattered RX descriptor.
	// The configured descriptor count of an RX queue must be a multiple of this number.
	ScatterSegments = 4
)

// NoVLAN is the VLAN index of a flow rule that does not match VLAN tag.
const NoVLAN = -1
