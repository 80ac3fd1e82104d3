package observer

import (
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/libp2p/go-cidranger"
	"github.com/pkg/errors"

	"github.com/wlynxg/P4DB/core/device"
	"github.com/wlynxg/P4DB/core/protocol"
	mlog "github.com/wlynxg/P4DB/pkgs/log"
	"github.com/wlynxg/P4DB/pkgs/xpool"
)

// readRetryInterval paces the loop while the link keeps failing.
const readRetryInterval = 10 * time.Millisecond

// Observer reads frames from a link, decodes them and reports to a sink.
// A frame that fails to decode is reported and the loop carries on.
type Observer struct {
	log     *mlog.Logger
	opt     Option
	link    device.Reader
	sink    Sink
	sources cidranger.Ranger
	buffers *xpool.Buffers

	closeOnce sync.Once
}

func New(opt *Option, link device.Reader, sink Sink) (*Observer, error) {
	o := &Observer{
		log:  mlog.New("observer"),
		opt:  *opt,
		link: link,
		sink: sink,
	}

	if o.opt.SnapLen <= 0 {
		o.opt.SnapLen = device.DefaultSnapLen
	}
	o.buffers = xpool.NewBuffers(o.opt.SnapLen)

	if len(o.opt.Sources) > 0 {
		o.sources = cidranger.NewPCTrieRanger()
		for _, prefix := range o.opt.Sources {
			_, cidr, err := net.ParseCIDR(prefix.Masked().String())
			if err != nil {
				return nil, errors.Wrapf(err, "source %s", prefix)
			}
			if err := o.sources.Insert(cidranger.NewBasicRangerEntry(*cidr)); err != nil {
				return nil, errors.Wrapf(err, "source %s", prefix)
			}
		}
	}
	return o, nil
}

// Run captures until ctx is done, the link reaches end of input or the link
// is closed underneath it. Other read errors are logged and capture goes on.
// The link is closed when Run returns.
func (o *Observer) Run(ctx context.Context) error {
	o.log.Infof("sniffing on %s", o.link.Name())

	done := make(chan struct{})
	defer close(done)
	defer o.close()
	go func() {
		select {
		case <-ctx.Done():
			// unblocks the pending Read
			o.close()
		case <-done:
		}
	}()

	buff := o.buffers.Get()
	defer o.buffers.Put(buff)

	for {
		n, err := o.link.Read(*buff)
		if err != nil {
			if ctx.Err() != nil {
				o.log.Infof("stop sniffing on %s", o.link.Name())
				return nil
			}
			if errors.Is(err, io.EOF) {
				o.log.Infof("end of capture on %s", o.link.Name())
				return nil
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				return errors.Wrapf(err, "read %s", o.link.Name())
			}
			o.opt.Metrics.ReadError()
			o.log.Warnf("read %s: %v", o.link.Name(), err)
			select {
			case <-ctx.Done():
			case <-time.After(readRetryInterval):
			}
			continue
		}
		o.handle(time.Now(), (*buff)[:n])
	}
}

func (o *Observer) close() {
	o.closeOnce.Do(func() {
		if err := o.link.Close(); err != nil {
			o.log.Warnf("fail to close %s: %v", o.link.Name(), err)
		}
	})
}

func (o *Observer) handle(ts time.Time, raw []byte) {
	f, err := protocol.DecodeFrame(raw)
	switch {
	case errors.Is(err, protocol.ErrUnsupportedFrame):
		o.opt.Metrics.Unsupported()
		o.log.Debugf("skip frame: %v", err)
		return
	case err != nil:
		o.opt.Metrics.Malformed()
		o.sink.Error(ts, raw, err)
		return
	}

	if !o.accept(f.Src) {
		o.opt.Metrics.Filtered()
		o.log.Debugf("skip frame from %s", f.Src)
		return
	}

	o.opt.Metrics.Observed(f.Kind)
	o.sink.Frame(ts, raw, f)
}

func (o *Observer) accept(src netip.Addr) bool {
	if o.sources == nil {
		return true
	}
	ok, err := o.sources.Contains(src.AsSlice())
	if err != nil {
		o.log.Debugf("source lookup %s: %v", src, err)
		return false
	}
	return ok
}
