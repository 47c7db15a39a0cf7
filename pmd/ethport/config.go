package ethport

import (
	"encoding/hex"
	"fmt"

	"github.com/usnistgov/rxsteer/core/macaddr"
	"github.com/usnistgov/rxsteer/pmd"
	"github.com/usnistgov/rxsteer/pmd/flow"
	"github.com/usnistgov/rxsteer/pmd/rxq"
)

// Limits and defaults.
const (
	MaxRxQueues     = 1024
	DefaultRxQueues = 1

	// MinRSSKeyLength is the minimum Toeplitz key length, enough to hash IPv6 addresses and L4 ports.
	MinRSSKeyLength = 40
)

// Config contains Port creation arguments.
type Config struct {
	// Port is the physical port number used in flow rules.
	Port int `json:"port,omitempty"`

	// MAC is the permanent MAC address configured at index 0.
	// Default is a random locally administered unicast address.
	MAC macaddr.EtherAddr `json:"mac,omitempty"`

	// RxQueues is the number of RX queue slots.
	RxQueues int `json:"rxQueues,omitempty"`

	// VF indicates the device is a virtual function.
	VF bool `json:"vf,omitempty"`

	// RxMode contains initial receive settings.
	RxMode rxq.RxMode `json:"rxMode"`

	// RSSKey is the Toeplitz key for every hash type, written as hexadecimal.
	// Default is flow.DefaultRSSKey.
	RSSKey string `json:"rssKey,omitempty"`

	// WidenTable uses the largest indirection table when RxQueues is not a power of two.
	WidenTable bool `json:"widenTable,omitempty"`

	// Promiscuous requests promiscuous mode initially.
	Promiscuous bool `json:"promiscuous,omitempty"`

	// AllMulticast requests all-multicast mode initially.
	AllMulticast bool `json:"allMulticast,omitempty"`
}

func (cfg *Config) applyDefaults() {
	if cfg.RxQueues <= 0 {
		cfg.RxQueues = DefaultRxQueues
	}
	if cfg.MAC.IsZero() {
		cfg.MAC = macaddr.MakeRandom(false)
	}
}

func (cfg Config) validate() error {
	switch {
	case cfg.RxQueues > MaxRxQueues:
		return fmt.Errorf("%w: RxQueues must not exceed %d", pmd.ErrInvalidArgument, MaxRxQueues)
	case !cfg.MAC.IsUnicast():
		return fmt.Errorf("%w: MAC must be unicast", pmd.ErrInvalidArgument)
	}
	_, e := cfg.rssKeys()
	return e
}

func (cfg Config) rssKeys() (m map[flow.HashType][]byte, e error) {
	if cfg.RSSKey == "" {
		return nil, nil
	}
	key, e := hex.DecodeString(cfg.RSSKey)
	if e != nil {
		return nil, fmt.Errorf("%w: RSSKey %v", pmd.ErrInvalidArgument, e)
	}
	if len(key) < MinRSSKeyLength {
		return nil, fmt.Errorf("%w: RSSKey must have at least %d octets", pmd.ErrInvalidArgument, MinRSSKeyLength)
	}
	m = map[flow.HashType][]byte{}
	for _, t := range flow.HashTypes {
		m[t] = key
	}
	return m, nil
}
