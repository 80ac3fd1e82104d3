package observer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlynxg/P4DB/core/device"
	"github.com/wlynxg/P4DB/core/generator"
	"github.com/wlynxg/P4DB/core/metrics"
	"github.com/wlynxg/P4DB/core/protocol"
)

var testEndpoints = protocol.Endpoints{
	SrcMAC: net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
	DstMAC: protocol.BroadcastMAC,
	Src:    netip.MustParseAddr("10.0.1.1"),
	Dst:    netip.MustParseAddr("10.0.2.2"),
}

// queueLink serves frames in order, then either reports io.EOF or blocks
// until closed.
type queueLink struct {
	frames [][]byte
	block  bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newQueueLink(block bool, frames ...[]byte) *queueLink {
	return &queueLink{frames: frames, block: block, closed: make(chan struct{})}
}

func (q *queueLink) Read(buff []byte) (int, error) {
	if len(q.frames) > 0 {
		n := copy(buff, q.frames[0])
		q.frames = q.frames[1:]
		return n, nil
	}
	if !q.block {
		return 0, io.EOF
	}
	<-q.closed
	return 0, net.ErrClosed
}

func (q *queueLink) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

func (q *queueLink) Name() string { return "queue" }

func (q *queueLink) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

type collectSink struct {
	mu     sync.Mutex
	frames []*protocol.Frame
	raws   [][]byte
	errs   []error
}

func (c *collectSink) Frame(_ time.Time, raw []byte, f *protocol.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	c.raws = append(c.raws, append([]byte(nil), raw...))
}

func (c *collectSink) Error(_ time.Time, _ []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func mustEncode(t *testing.T, ep protocol.Endpoints, hdr *protocol.RelationHeader, entry *protocol.EntryRecord, payload string) []byte {
	t.Helper()
	raw, err := protocol.EncodeFrame(ep, hdr, entry, []byte(payload))
	require.NoError(t, err)
	return raw
}

func TestRunReportsAndSurvivesBadFrames(t *testing.T) {
	relation := mustEncode(t, testEndpoints, &protocol.RelationHeader{RelationID: 65}, &protocol.EntryRecord{EntryID: 1, SecondAttr: 2, ThirdAttr: 3}, "P4 is cool")
	udp := mustEncode(t, testEndpoints, nil, nil, "plain")
	truncated := relation[:14+20+4]
	tcp := append([]byte(nil), udp...)
	tcp[14+9] = 6

	m := metrics.New(prometheus.NewRegistry())
	link := newQueueLink(false, relation, truncated, udp, tcp, relation)
	sink := &collectSink{}
	o, err := New(&Option{Metrics: m}, link, sink)
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))
	assert.True(t, link.isClosed())

	require.Len(t, sink.frames, 3)
	assert.True(t, sink.frames[0].Matched())
	assert.Equal(t, protocol.RelationHeader{RelationID: 65}, sink.frames[0].Relation)
	assert.Equal(t, protocol.EntryRecord{EntryID: 1, SecondAttr: 2, ThirdAttr: 3}, *sink.frames[0].Entry)
	assert.False(t, sink.frames[1].Matched())
	assert.Equal(t, []byte("plain"), sink.frames[1].Payload)
	assert.True(t, sink.frames[2].Matched())
	assert.Equal(t, relation, sink.raws[2])

	require.Len(t, sink.errs, 1)
	var malformed *protocol.MalformedFrameError
	assert.ErrorAs(t, sink.errs[0], &malformed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedCounter()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnsupportedCounter()))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ObservedCounter(protocol.KindRelation)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObservedCounter(protocol.KindUDP)))
}

// flakyLink fails its first read, then serves the queued frames.
type flakyLink struct {
	*queueLink
	failed bool
}

func (f *flakyLink) Read(buff []byte) (int, error) {
	if !f.failed {
		f.failed = true
		return 0, errors.New("network is down")
	}
	return f.queueLink.Read(buff)
}

func TestRunContinuesAfterReadError(t *testing.T) {
	relation := mustEncode(t, testEndpoints, &protocol.RelationHeader{RelationID: 1}, &protocol.EntryRecord{EntryID: 9}, "after")
	m := metrics.New(prometheus.NewRegistry())
	link := &flakyLink{queueLink: newQueueLink(false, relation)}
	sink := &collectSink{}
	o, err := New(&Option{Metrics: m}, link, sink)
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, int32(9), sink.frames[0].Entry.EntryID)
	assert.Empty(t, sink.errs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadErrorCounter()))
}

func TestRunStopsWhenLinkClosed(t *testing.T) {
	link := newQueueLink(true)
	require.NoError(t, link.Close())
	o, err := New(&Option{}, link, &collectSink{})
	require.NoError(t, err)

	err = o.Run(context.Background())
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	link := newQueueLink(true, mustEncode(t, testEndpoints, nil, nil, "x"))
	sink := &collectSink{}
	o, err := New(&Option{}, link, sink)
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() { errChan <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.frames) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("observer did not stop")
	}
	assert.True(t, link.isClosed())
}

func TestSourceFilter(t *testing.T) {
	other := testEndpoints
	other.Src = netip.MustParseAddr("192.168.1.1")

	link := newQueueLink(false,
		mustEncode(t, testEndpoints, &protocol.RelationHeader{RelationID: 1}, nil, "inside"),
		mustEncode(t, other, &protocol.RelationHeader{RelationID: 1}, nil, "outside"),
	)
	sink := &collectSink{}
	o, err := New(&Option{Sources: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}, link, sink)
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, []byte("inside"), sink.frames[0].Payload)
}

func TestGeneratorToObserverThroughPcap(t *testing.T) {
	var capture bytes.Buffer
	w, err := device.NewPcapWriter("mem", &capture)
	require.NoError(t, err)

	g, err := generator.New(&generator.Option{
		Endpoints:  testEndpoints,
		Pool:       []int32{5},
		RelationID: 1,
		Payload:    []byte("P4 is cool"),
		Rand:       rand.New(rand.NewSource(3)),
	}, w)
	require.NoError(t, err)
	require.NoError(t, g.GenerateTargeted(context.Background(), []int32{7, 42, 999}))

	r, err := device.NewPcapReader("mem", &capture)
	require.NoError(t, err)
	sink := &collectSink{}
	o, err := New(&Option{}, r, sink)
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	require.Len(t, sink.frames, 3)
	for i, want := range []int32{7, 42, 999} {
		assert.Equal(t, protocol.RelationHeader{RelationID: 1}, sink.frames[i].Relation)
		assert.Equal(t, want, sink.frames[i].Entry.EntryID)
	}
	assert.Empty(t, sink.errs)
}
