package device

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// InterfaceNotFoundError is returned when no interface name contains the pattern.
type InterfaceNotFoundError struct {
	Pattern string
}

func (e *InterfaceNotFoundError) Error() string {
	return fmt.Sprintf("cannot find interface matching %q", e.Pattern)
}

// interfaces is replaced in tests.
var interfaces = net.Interfaces

// FindInterface returns the first interface whose name contains pattern.
func FindInterface(pattern string) (*net.Interface, error) {
	ifs, err := interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}
	for i := range ifs {
		if strings.Contains(ifs[i].Name, pattern) {
			return &ifs[i], nil
		}
	}
	return nil, &InterfaceNotFoundError{Pattern: pattern}
}

// InterfaceIPv4 returns the first IPv4 address of ifi, or 0.0.0.0 if it has none.
func InterfaceIPv4(ifi *net.Interface) (netip.Addr, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "addresses of %s", ifi.Name)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			a, _ := netip.AddrFromSlice(ip4)
			return a, nil
		}
	}
	return netip.IPv4Unspecified(), nil
}

// ResolveIPv4 resolves host to an IPv4 address.
func ResolveIPv4(host string) (netip.Addr, error) {
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "resolve %s", host)
	}
	a, ok := netip.AddrFromSlice(addr.IP.To4())
	if !ok {
		return netip.Addr{}, errors.Errorf("%s has no ipv4 address", host)
	}
	return a, nil
}
