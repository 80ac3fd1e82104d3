package device

import (
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

var (
	_ Reader = new(PcapReader)
	_ Writer = new(PcapWriter)
)

// PcapReader replays the frames of a pcap stream.
type PcapReader struct {
	name   string
	r      *pcapgo.Reader
	closer io.Closer
}

func NewPcapReader(name string, r io.Reader) (*PcapReader, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read pcap header of %s", name)
	}
	if reader.LinkType() != layers.LinkTypeEthernet {
		return nil, errors.Errorf("%s: unsupported link type %s", name, reader.LinkType())
	}
	p := &PcapReader{name: name, r: reader}
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	return p, nil
}

// OpenPcap opens a pcap file for reading.
func OpenPcap(path string) (*PcapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	p, err := NewPcapReader(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// Read returns io.EOF once the stream is exhausted. A packet larger than
// buff is truncated and reported with io.ErrShortBuffer.
func (p *PcapReader) Read(buff []byte) (int, error) {
	data, _, err := p.r.ReadPacketData()
	if err != nil {
		return 0, err
	}
	n := copy(buff, data)
	if n < len(data) {
		return n, errors.Wrapf(io.ErrShortBuffer, "packet of %d bytes", len(data))
	}
	return n, nil
}

func (p *PcapReader) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *PcapReader) Name() string {
	return p.name
}

// PcapWriter records frames to a pcap stream.
type PcapWriter struct {
	name   string
	w      *pcapgo.Writer
	closer io.Closer
}

func NewPcapWriter(name string, w io.Writer) (*PcapWriter, error) {
	writer := pcapgo.NewWriter(w)
	if err := writer.WriteFileHeader(DefaultSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, errors.Wrapf(err, "write pcap header of %s", name)
	}
	p := &PcapWriter{name: name, w: writer}
	if c, ok := w.(io.Closer); ok {
		p.closer = c
	}
	return p, nil
}

// CreatePcap creates or truncates a pcap file for writing.
func CreatePcap(path string) (*PcapWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	p, err := NewPcapWriter(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func (p *PcapWriter) Write(buff []byte) (int, error) {
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buff),
		Length:        len(buff),
	}
	if err := p.w.WritePacket(ci, buff); err != nil {
		return 0, err
	}
	return len(buff), nil
}

func (p *PcapWriter) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

func (p *PcapWriter) Name() string {
	return p.name
}
