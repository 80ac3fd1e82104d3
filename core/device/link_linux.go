package device

import (
	"net"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// compilation time interface check
var _ Link = new(packetLink)

// packetLink is an AF_PACKET raw socket bound to one interface.
// https://man7.org/linux/man-pages/man7/packet.7.html
type packetLink struct {
	name string
	file *os.File
}

func (l *packetLink) Read(buff []byte) (int, error) {
	return l.file.Read(buff)
}

func (l *packetLink) Write(buff []byte) (int, error) {
	n, err := l.file.Write(buff)
	if err == nil && n != len(buff) {
		return n, errors.Errorf("short write on %s: %d of %d bytes", l.name, n, len(buff))
	}
	return n, err
}

func (l *packetLink) Close() error {
	return l.file.Close()
}

func (l *packetLink) Name() string {
	return l.name
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// Open binds a raw packet socket to ifi.
func Open(ifi *net.Interface, opt Option) (Link, error) {
	var proto uint16
	if opt.Capture {
		proto = htons(unix.ETH_P_ALL)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := setup(fd, ifi, proto, opt); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// non-blocking so that Close unblocks a pending Read through the runtime poller
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setnonblock", err)
	}

	return &packetLink{
		name: ifi.Name,
		file: os.NewFile(uintptr(fd), "packet:"+ifi.Name),
	}, nil
}

func setup(fd int, ifi *net.Interface, proto uint16, opt Option) error {
	if len(opt.Filter) > 0 {
		prog := unix.SockFprog{
			Len:    uint16(len(opt.Filter)),
			Filter: (*unix.SockFilter)(unsafe.Pointer(&opt.Filter[0])),
		}
		if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog); err != nil {
			return os.NewSyscallError("setsockopt SO_ATTACH_FILTER", err)
		}
	}

	if err := unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: ifi.Index}); err != nil {
		return os.NewSyscallError("bind", err)
	}

	if opt.Promiscuous {
		mreq := unix.PacketMreq{Ifindex: int32(ifi.Index), Type: unix.PACKET_MR_PROMISC}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			return os.NewSyscallError("setsockopt PACKET_ADD_MEMBERSHIP", err)
		}
	}
	return nil
}
