package protocol

import (
	"encoding/binary"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

const ipv4MinHeader = 20

type decodeFunc func(f *Frame, payload []byte) error

// decoders is the closed set of strategies selected by the IPv4 protocol field.
var decoders = map[layers.IPProtocol]decodeFunc{
	ProtocolRelation:     decodeRelation,
	layers.IPProtocolUDP: decodeUDP,
}

// DecodeFrame parses a raw Ethernet frame. It never modifies raw and the
// returned Frame does not alias it.
func DecodeFrame(raw []byte) (*Frame, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return nil, malformed("ethernet: %v", err)
	}
	if eth.EthernetType != layers.EthernetTypeIPv4 {
		return nil, errors.Wrapf(ErrUnsupportedFrame, "ethernet type %s", eth.EthernetType)
	}

	ip, payload, err := parseIPv4(eth.Payload)
	if err != nil {
		return nil, err
	}

	decode, ok := decoders[ip.Protocol]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFrame, "ip protocol %d", ip.Protocol)
	}

	src, _ := netip.AddrFromSlice(ip.SrcIP)
	dst, _ := netip.AddrFromSlice(ip.DstIP)
	f := &Frame{
		SrcMAC:   append(net.HardwareAddr(nil), eth.SrcMAC...),
		DstMAC:   append(net.HardwareAddr(nil), eth.DstMAC...),
		Src:      src,
		Dst:      dst,
		Protocol: ip.Protocol,
		TTL:      ip.TTL,
		Length:   ip.Length,
	}
	if err := decode(f, payload); err != nil {
		return nil, err
	}
	return f, nil
}

// parseIPv4 validates the header against the captured bytes and returns the
// payload bounded by the total-length field, dropping any link padding.
func parseIPv4(buff []byte) (*layers.IPv4, []byte, error) {
	if len(buff) < ipv4MinHeader {
		return nil, nil, malformed("ipv4 header needs %d bytes, have %d", ipv4MinHeader, len(buff))
	}
	if v := buff[0] >> 4; v != 4 {
		return nil, nil, malformed("ip version %d", v)
	}
	headerLength := int(buff[0]&0x0F) * 4
	total := int(binary.BigEndian.Uint16(buff[2:4]))
	if headerLength < ipv4MinHeader || total < headerLength {
		return nil, nil, malformed("ip header length %d, total length %d", headerLength, total)
	}
	if total > len(buff) {
		return nil, nil, malformed("ip total length %d exceeds %d captured bytes", total, len(buff))
	}

	ip := &layers.IPv4{}
	if err := ip.DecodeFromBytes(buff[:total], gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, malformed("ipv4: %v", err)
	}
	return ip, buff[headerLength:total], nil
}

// decodeRelation consumes the relation header, then infers from the UDP
// length field whether an EntryRecord sits between it and the UDP header.
// When both readings fit, the fixed ports and then the UDP checksum decide.
func decodeRelation(f *Frame, payload []byte) error {
	if len(payload) < RelationHeaderSize+udpHeaderSize {
		return malformed("relation payload of %d bytes cannot hold a udp header", len(payload))
	}
	f.Kind = KindRelation
	f.Relation = DecodeRelation(payload[0])

	rest := payload[RelationHeaderSize:]
	offsets := make([]int, 0, 2)
	for _, off := range []int{EntryRecordSize, 0} {
		if udpBoundary(rest, off) {
			offsets = append(offsets, off)
		}
	}
	if len(offsets) > 1 {
		offsets = narrow(offsets, func(off int) bool { return wirePorts(rest[off:]) })
	}
	if len(offsets) > 1 {
		offsets = narrow(offsets, func(off int) bool { return udpChecksumValid(f.Src, f.Dst, rest[off:]) })
	}

	switch {
	case len(offsets) == 0:
		return malformed("no udp header boundary in %d bytes after relation header", len(rest))
	case len(offsets) > 1:
		return malformed("ambiguous entry record in %d bytes after relation header", len(rest))
	}

	if offsets[0] == EntryRecordSize {
		entry, err := DecodeEntry(rest)
		if err != nil {
			return err
		}
		f.Entry = &entry
	}
	return decodeUDPHeader(f, rest[offsets[0]:])
}

// narrow keeps the offsets accepted by keep, unless that leaves none.
func narrow(offsets []int, keep func(off int) bool) []int {
	kept := make([]int, 0, len(offsets))
	for _, off := range offsets {
		if keep(off) {
			kept = append(kept, off)
		}
	}
	if len(kept) == 0 {
		return offsets
	}
	return kept
}

func wirePorts(udp []byte) bool {
	return binary.BigEndian.Uint16(udp[0:2]) == uint16(SourcePort) &&
		binary.BigEndian.Uint16(udp[2:4]) == uint16(DestinationPort)
}

// udpChecksumValid verifies a non-zero UDP checksum over the IPv4
// pseudo-header. A zero checksum means none was sent and never verifies.
func udpChecksumValid(src, dst netip.Addr, udp []byte) bool {
	if binary.BigEndian.Uint16(udp[6:8]) == 0 || !src.Is4() || !dst.Is4() {
		return false
	}
	s, d := src.As4(), dst.As4()
	sum := uint32(uint8(layers.IPProtocolUDP)) + uint32(len(udp))
	sum += uint32(binary.BigEndian.Uint16(s[0:2])) + uint32(binary.BigEndian.Uint16(s[2:4]))
	sum += uint32(binary.BigEndian.Uint16(d[0:2])) + uint32(binary.BigEndian.Uint16(d[2:4]))
	for i := 0; i+1 < len(udp); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(udp[i : i+2]))
	}
	if len(udp)%2 == 1 {
		sum += uint32(udp[len(udp)-1]) << 8
	}
	for sum > 0xffff {
		sum = sum>>16 + sum&0xffff
	}
	return sum == 0xffff
}

func decodeUDP(f *Frame, payload []byte) error {
	f.Kind = KindUDP
	return decodeUDPHeader(f, payload)
}

// udpBoundary reports whether a UDP header starting at off spans exactly the
// rest of buff.
func udpBoundary(buff []byte, off int) bool {
	if len(buff) < off+udpHeaderSize {
		return false
	}
	return int(binary.BigEndian.Uint16(buff[off+4:off+6])) == len(buff)-off
}

func decodeUDPHeader(f *Frame, buff []byte) error {
	var udp layers.UDP
	if err := udp.DecodeFromBytes(buff, gopacket.NilDecodeFeedback); err != nil {
		return malformed("udp: %v", err)
	}
	if int(udp.Length) < udpHeaderSize || int(udp.Length) > len(buff) {
		return malformed("udp length %d with %d bytes available", udp.Length, len(buff))
	}
	f.SrcPort = uint16(udp.SrcPort)
	f.DstPort = uint16(udp.DstPort)
	f.Payload = append([]byte{}, buff[udpHeaderSize:udp.Length]...)
	return nil
}
