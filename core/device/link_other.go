//go:build !linux

package device

import (
	"net"
	"runtime"

	"github.com/pkg/errors"
)

// Open is only available on linux; use the pcap links elsewhere.
func Open(ifi *net.Interface, opt Option) (Link, error) {
	return nil, errors.Errorf("raw links are not supported on %s", runtime.GOOS)
}
