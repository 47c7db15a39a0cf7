package simverbs

import (
	"encoding/binary"
)

// Toeplitz computes the Toeplitz hash of input under key.
// key should be at least 4 octets longer than input; missing key bits are taken as zero.
func Toeplitz(key, input []byte) (hash uint32) {
	var window uint32
	if len(key) >= 4 {
		window = binary.BigEndian.Uint32(key)
	} else {
		var k [4]byte
		copy(k[:], key)
		window = binary.BigEndian.Uint32(k[:])
	}

	next := 32
	for _, octet := range input {
		for bit := 7; bit >= 0; bit-- {
			if octet&(1<<bit) != 0 {
				hash ^= window
			}
			window <<= 1
			if i := next / 8; i < len(key) && key[i]&(0x80>>(next%8)) != 0 {
				window |= 1
			}
			next++
		}
	}
	return hash
}
