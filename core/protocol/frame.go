package protocol

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/wlynxg/P4DB/pkgs/xpool"
)

const (
	// ProtocolRelation in the IPv4 protocol field marks a RelationHeader-first payload.
	ProtocolRelation layers.IPProtocol = 0xFA

	SourcePort      layers.UDPPort = 1234
	DestinationPort layers.UDPPort = 4321

	DefaultTTL = 64

	udpHeaderSize = 8
)

var (
	BroadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	serializeOptions = gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	serializePool    = xpool.New(func() gopacket.SerializeBuffer { return gopacket.NewSerializeBuffer() })
)

// Endpoints holds the link and network addresses of a frame.
type Endpoints struct {
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr
	Src    netip.Addr
	Dst    netip.Addr
}

// Kind tells which decode strategy produced a Frame.
type Kind uint8

const (
	KindRelation Kind = iota + 1
	KindUDP
)

func (k Kind) String() string {
	switch k {
	case KindRelation:
		return "relation"
	case KindUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// Frame is a decoded Ethernet/IPv4 frame carrying either a relation header
// stack or a plain UDP datagram.
type Frame struct {
	Kind     Kind
	SrcMAC   net.HardwareAddr
	DstMAC   net.HardwareAddr
	Src      netip.Addr
	Dst      netip.Addr
	Protocol layers.IPProtocol
	TTL      uint8
	Length   uint16

	Relation RelationHeader
	Entry    *EntryRecord

	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// Matched reports whether the frame carried a RelationHeader. A false result
// is the NotMatched outcome, with the UDP payload left in Payload.
func (f *Frame) Matched() bool {
	return f.Kind == KindRelation
}

func (f *Frame) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s > %s %s > %s proto=%d len=%d", f.SrcMAC, f.DstMAC, f.Src, f.Dst, f.Protocol, f.Length)
	if f.Matched() {
		fmt.Fprintf(&sb, " | %s", f.Relation)
		if f.Entry != nil {
			fmt.Fprintf(&sb, " | %s", f.Entry)
		}
	}
	fmt.Fprintf(&sb, " | udp %d > %d payload=%q", f.SrcPort, f.DstPort, f.Payload)
	return sb.String()
}

// EncodeFrame builds Ethernet / IPv4 / [RelationHeader / [EntryRecord]] / UDP / payload.
// With a nil hdr the frame is a plain UDP frame (protocol 17); entry then must be nil.
func EncodeFrame(ep Endpoints, hdr *RelationHeader, entry *EntryRecord, payload []byte) ([]byte, error) {
	if len(ep.SrcMAC) != 6 || len(ep.DstMAC) != 6 {
		return nil, errors.Errorf("invalid mac address %q > %q", ep.SrcMAC, ep.DstMAC)
	}
	if !ep.Src.Is4() || !ep.Dst.Is4() {
		return nil, errors.Errorf("invalid ipv4 address %s > %s", ep.Src, ep.Dst)
	}

	eth := &layers.Ethernet{
		SrcMAC:       ep.SrcMAC,
		DstMAC:       ep.DstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		Id:       1,
		TTL:      DefaultTTL,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    ep.Src.AsSlice(),
		DstIP:    ep.Dst.AsSlice(),
	}
	udp := &layers.UDP{SrcPort: SourcePort, DstPort: DestinationPort}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, errors.Wrap(err, "udp checksum")
	}

	stack := []gopacket.SerializableLayer{eth, ip}
	switch {
	case hdr != nil:
		b, err := hdr.Encode()
		if err != nil {
			return nil, err
		}
		ip.Protocol = ProtocolRelation
		relation := make([]byte, 0, RelationHeaderSize+EntryRecordSize)
		relation = append(relation, b)
		if entry != nil {
			e := entry.Encode()
			relation = append(relation, e[:]...)
		}
		stack = append(stack, gopacket.Payload(relation))
	case entry != nil:
		return nil, errors.New("entry record without relation header")
	}
	stack = append(stack, udp, gopacket.Payload(payload))

	buff := serializePool.Get()
	defer serializePool.Put(buff)
	if err := buff.Clear(); err != nil {
		return nil, err
	}
	if err := gopacket.SerializeLayers(buff, serializeOptions, stack...); err != nil {
		return nil, errors.Wrap(err, "serialize frame")
	}
	return append([]byte(nil), buff.Bytes()...), nil
}
