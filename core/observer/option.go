package observer

import (
	"net/netip"

	"github.com/wlynxg/P4DB/core/metrics"
)

type Option struct {
	// Sources restricts reporting to frames whose IPv4 source is inside one
	// of the prefixes. Empty accepts every source.
	Sources []netip.Prefix
	// SnapLen is the read buffer size; zero means device.DefaultSnapLen.
	SnapLen int
	Metrics *metrics.Metrics
}
