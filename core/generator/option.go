package generator

import (
	"math/rand"
	"time"

	"github.com/wlynxg/P4DB/core/metrics"
	"github.com/wlynxg/P4DB/core/protocol"
)

const (
	DefaultCount    = 10
	DefaultPoolSize = 4
	DefaultIDRange  = 1000
	DefaultInterval = time.Second

	// MaxAttr bounds the random second and third attributes, inclusive.
	MaxAttr = 5
)

type Option struct {
	Endpoints protocol.Endpoints
	// Count is the number of frames in the random burst.
	Count int
	// Pool holds the candidate entity ids, see NewEntityPool.
	Pool []int32
	// Interval is the quiescent wait between the random and targeted bursts.
	Interval   time.Duration
	RelationID uint8
	Aggregate  uint8
	Payload    []byte
	// Rand drives every random choice; nil seeds one from the clock.
	Rand    *rand.Rand
	Metrics *metrics.Metrics
}
