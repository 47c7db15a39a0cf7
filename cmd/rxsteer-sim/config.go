package main

import (
	_ "embed"

	"github.com/usnistgov/rxsteer/dpdk/pktmbuf"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
	"github.com/usnistgov/rxsteer/pmd/ethport"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// DefaultDescriptors is the RX queue size when rxq-setup omits it.
const DefaultDescriptors = 256

// simConfig contains simulation parameters.
type simConfig struct {
	Device      simverbs.Config    `json:"device"`
	Pool        pktmbuf.PoolConfig `json:"pool"`
	Port        ethport.Config     `json:"port"`
	Descriptors int                `json:"descriptors,omitempty"`
}

func (cfg *simConfig) applyDefaults() {
	if cfg.Descriptors <= 0 {
		cfg.Descriptors = DefaultDescriptors
	}
}

//go:embed config.schema.json
var configSchemaJSON []byte

var configSchema = func() *gojsonschema.Schema {
	schema, e := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(configSchemaJSON))
	if e != nil {
		logger.Panic("config schema error", zap.Error(e))
	}
	return schema
}()
