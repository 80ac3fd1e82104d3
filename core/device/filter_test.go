package device

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"github.com/wlynxg/P4DB/core/protocol"
)

var testEndpoints = protocol.Endpoints{
	SrcMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
	DstMAC: protocol.BroadcastMAC,
	Src:    netip.MustParseAddr("10.0.1.1"),
	Dst:    netip.MustParseAddr("10.0.2.2"),
}

func TestCaptureFilter(t *testing.T) {
	vm, err := bpf.NewVM(CaptureFilter(DefaultSnapLen))
	require.NoError(t, err)

	relation, err := protocol.EncodeFrame(testEndpoints, &protocol.RelationHeader{RelationID: 1}, &protocol.EntryRecord{EntryID: 1}, []byte("x"))
	require.NoError(t, err)
	udp, err := protocol.EncodeFrame(testEndpoints, nil, nil, []byte("x"))
	require.NoError(t, err)

	tcp := append([]byte(nil), udp...)
	tcp[14+9] = 6
	arp := append([]byte(nil), relation...)
	arp[12], arp[13] = 0x08, 0x06

	tests := []struct {
		name   string
		frame  []byte
		accept bool
	}{
		{name: "relation", frame: relation, accept: true},
		{name: "udp", frame: udp, accept: true},
		{name: "tcp", frame: tcp, accept: false},
		{name: "arp", frame: arp, accept: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := vm.Run(tt.frame)
			require.NoError(t, err)
			if tt.accept {
				assert.Equal(t, len(tt.frame), n)
			} else {
				assert.Zero(t, n)
			}
		})
	}
}

func TestAssembleCaptureFilter(t *testing.T) {
	raw, err := AssembleCaptureFilter(DefaultSnapLen)
	require.NoError(t, err)
	assert.Len(t, raw, len(CaptureFilter(DefaultSnapLen)))
}
