// Package macaddr provides a comparable MAC-48 address type.
package macaddr

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net"
)

// Len is the length of a MAC-48 address.
const Len = 6

// EtherAddr is a MAC-48 address.
// Unlike net.HardwareAddr, it is comparable and can be used as a map key.
type EtherAddr [Len]byte

// Broadcast is the broadcast address ff:ff:ff:ff:ff:ff.
var Broadcast = EtherAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ErrLength indicates the input is not a MAC-48 address.
var ErrLength = errors.New("not a MAC-48 address")

// FromHardwareAddr converts net.HardwareAddr to EtherAddr.
func FromHardwareAddr(hw net.HardwareAddr) (a EtherAddr, e error) {
	if len(hw) != Len {
		return a, ErrLength
	}
	copy(a[:], hw)
	return a, nil
}

// Parse parses EtherAddr from string.
func Parse(input string) (a EtherAddr, e error) {
	hw, e := net.ParseMAC(input)
	if e != nil {
		return a, e
	}
	return FromHardwareAddr(hw)
}

// MustParse parses EtherAddr from string, and panics on error.
func MustParse(input string) EtherAddr {
	a, e := Parse(input)
	if e != nil {
		panic(e)
	}
	return a
}

// MakeRandom generates a random locally administered address.
func MakeRandom(multicast bool) (a EtherAddr) {
	rand.Read(a[:])
	a[0] |= 0x02
	if multicast {
		a[0] |= 0x01
	} else {
		a[0] &^= 0x01
	}
	return a
}

// IsZero returns true if this is the zero address.
func (a EtherAddr) IsZero() bool {
	return a == EtherAddr{}
}

// IsBroadcast returns true if this is the broadcast address.
func (a EtherAddr) IsBroadcast() bool {
	return a == Broadcast
}

// IsGroup returns true if this is a group address, including broadcast.
func (a EtherAddr) IsGroup() bool {
	return a[0]&0x01 != 0
}

// IsUnicast returns true if this is a non-zero unicast address.
func (a EtherAddr) IsUnicast() bool {
	return !a.IsGroup() && !a.IsZero()
}

// HardwareAddr converts EtherAddr to net.HardwareAddr.
func (a EtherAddr) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), a[:]...))
}

func (a EtherAddr) String() string {
	return a.HardwareAddr().String()
}

// MarshalJSON implements json.Marshaler interface.
func (a EtherAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (a *EtherAddr) UnmarshalJSON(data []byte) (e error) {
	var s string
	if e := json.Unmarshal(data, &s); e != nil {
		return e
	}
	*a, e = Parse(s)
	return e
}
