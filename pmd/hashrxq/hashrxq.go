// Package hashrxq manages RSS hash queues: indirection tables over receive work queues,
// one queue pair per hashed protocol stack, and the flow rules attached to each queue pair.
package hashrxq

import (
	"github.com/usnistgov/rxsteer/core/logging"
)

var logger = logging.New("hashrxq")
