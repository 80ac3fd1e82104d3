package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnsupportedFrame is returned for frames that are neither IPv4 relation
// frames nor IPv4 UDP frames.
var ErrUnsupportedFrame = errors.New("unsupported frame")

// RangeError reports a field value wider than its bit-field.
type RangeError struct {
	Field string
	Value uint
	Max   uint
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d out of range [0,%d]", e.Field, e.Value, e.Max)
}

// TruncatedInputError reports a record that is shorter than its fixed size.
type TruncatedInputError struct {
	Want int
	Have int
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("truncated input: want %d bytes, have %d", e.Want, e.Have)
}

// MalformedFrameError reports a frame whose lengths or headers are inconsistent.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return "malformed frame: " + e.Reason
}

func malformed(format string, args ...interface{}) error {
	return &MalformedFrameError{Reason: fmt.Sprintf(format, args...)}
}
