package observer

import (
	"fmt"
	"time"

	"github.com/wlynxg/P4DB/core/device"
	"github.com/wlynxg/P4DB/core/protocol"
	mlog "github.com/wlynxg/P4DB/pkgs/log"
)

// Sink receives the outcome of every frame that passed the filters.
// raw is only valid for the duration of the call.
type Sink interface {
	// Frame reports a decoded relation frame or a NotMatched udp frame
	Frame(ts time.Time, raw []byte, f *protocol.Frame)
	// Error reports a frame that failed to decode
	Error(ts time.Time, raw []byte, err error)
}

// LogSink prints every frame layer by layer.
type LogSink struct {
	log *mlog.Logger
}

func NewLogSink(log *mlog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Frame(ts time.Time, raw []byte, f *protocol.Frame) {
	fields := []interface{}{
		"ether", fmt.Sprintf("%s > %s", f.SrcMAC, f.DstMAC),
		"ip", fmt.Sprintf("%s > %s proto=%d ttl=%d len=%d", f.Src, f.Dst, f.Protocol, f.TTL, f.Length),
	}
	if f.Matched() {
		fields = append(fields, "relation", f.Relation.String())
		if f.Entry != nil {
			fields = append(fields, "entry", f.Entry.String())
		}
	}
	fields = append(fields,
		"udp", fmt.Sprintf("%d > %d", f.SrcPort, f.DstPort),
		"payload", fmt.Sprintf("%q", f.Payload),
	)

	if f.Matched() {
		s.log.Infow("got a relation packet", fields...)
	} else {
		s.log.Infow("got a udp packet", fields...)
	}
}

func (s *LogSink) Error(ts time.Time, raw []byte, err error) {
	s.log.Warnf("drop frame of %d bytes: %v", len(raw), err)
}

// PcapSink records decoded frames to a pcap writer.
type PcapSink struct {
	log *mlog.Logger
	w   device.Writer
}

func NewPcapSink(log *mlog.Logger, w device.Writer) *PcapSink {
	return &PcapSink{log: log, w: w}
}

func (s *PcapSink) Frame(ts time.Time, raw []byte, f *protocol.Frame) {
	if _, err := s.w.Write(raw); err != nil {
		s.log.Errorf("fail to record frame to %s: %v", s.w.Name(), err)
	}
}

func (s *PcapSink) Error(time.Time, []byte, error) {}

// MultiSink fans out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Frame(ts time.Time, raw []byte, f *protocol.Frame) {
	for _, s := range m {
		s.Frame(ts, raw, f)
	}
}

func (m MultiSink) Error(ts time.Time, raw []byte, err error) {
	for _, s := range m {
		s.Error(ts, raw, err)
	}
}
