package simverbs_test

import (
	"testing"

	"github.com/usnistgov/rxsteer/core/testenv"
	"github.com/usnistgov/rxsteer/dpdk/verbs/simverbs"
)

func TestToeplitz(t *testing.T) {
	assert, _ := makeAR(t)

	key := testenv.BytesFromHex("6D5A56DA255B0EC24167253D43A38FB0D0CA2BCBAE7B30B477CB2DA38030F20C6A42B73BBEAC01FA")
	assert.Equal(uint32(0x323e8fc2), simverbs.Toeplitz(key, testenv.BytesFromHex("420995BB A18E6450")))
	assert.Equal(uint32(0x51ccc178), simverbs.Toeplitz(key, testenv.BytesFromHex("420995BB A18E6450 0AEA 06E6")))
	assert.Equal(uint32(0), simverbs.Toeplitz(key, nil))
}
