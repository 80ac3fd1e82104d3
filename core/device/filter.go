package device

import (
	"golang.org/x/net/bpf"

	"github.com/wlynxg/P4DB/core/protocol"
)

// RawInstruction is an assembled classic BPF instruction.
type RawInstruction = bpf.RawInstruction

const (
	etherTypeOffset  = 12
	ipProtocolOffset = 14 + 9
	etherTypeIPv4    = 0x0800
	ipProtocolUDP    = 17

	// DefaultSnapLen is the largest frame a capture keeps.
	DefaultSnapLen = 65535
)

// CaptureFilter accepts IPv4 frames whose protocol is the relation protocol
// or UDP, the equivalent of "ip proto (250 or 17)".
func CaptureFilter(snapLen uint32) []bpf.Instruction {
	return []bpf.Instruction{
		bpf.LoadAbsolute{Off: etherTypeOffset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeIPv4, SkipTrue: 4},
		bpf.LoadAbsolute{Off: ipProtocolOffset, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(protocol.ProtocolRelation), SkipTrue: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipProtocolUDP, SkipFalse: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	}
}

// AssembleCaptureFilter assembles CaptureFilter for attaching to a socket.
func AssembleCaptureFilter(snapLen uint32) ([]RawInstruction, error) {
	return bpf.Assemble(CaptureFilter(snapLen))
}
