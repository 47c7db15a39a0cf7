package pktmbuf_test

import (
	"github.com/usnistgov/rxsteer/core/testenv"
)

var makeAR = testenv.MakeAR
