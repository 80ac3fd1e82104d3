package device

// Reader is a source of whole link-layer frames.
type Reader interface {
	// Read one frame into the buffer
	Read([]byte) (int, error)
	// Close releases the handle and unblocks a pending Read
	Close() error
	// Name of the link
	Name() string
}

// Writer is a sink of whole link-layer frames. Each Write emits exactly one
// frame or fails without emitting anything.
type Writer interface {
	// Write one frame
	Write([]byte) (int, error)
	// Close releases the handle
	Close() error
	// Name of the link
	Name() string
}

// Link reads and writes frames on a network interface.
type Link interface {
	Reader
	Writer
}

// Option controls how a link is opened.
type Option struct {
	// Capture enables receiving frames; a send-only link receives nothing.
	Capture bool
	// Promiscuous puts the interface in promiscuous mode while the link is open.
	Promiscuous bool
	// Filter is a classic BPF program attached to the socket, see CaptureFilter.
	Filter []RawInstruction
}
