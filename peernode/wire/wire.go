// Package wire implements the length-prefixed frame codec spec.md §6
// describes: every payload is a sequence of frames, the first of which is
// always the command tag. Grounded on _examples/zeromq-gyre/msg/msg.go's
// Transit convention, reimplemented for a byte-stream carrier (libp2p
// streams and pubsub messages) instead of a ZeroMQ multipart socket.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrTruncated is returned when a frame sequence is cut short.
var ErrTruncated = errors.New("wire: truncated frame sequence")

// Frames is a decoded payload: one or more length-prefixed byte frames,
// the first of which is conventionally the command tag.
type Frames [][]byte

// Tag returns the first frame as a string, or "" if Frames is empty.
func (f Frames) Tag() string {
	if len(f) == 0 {
		return ""
	}
	return string(f[0])
}

// Strings returns frames[1:] decoded as strings, for handlers that only
// deal in text arguments.
func (f Frames) Strings() []string {
	if len(f) <= 1 {
		return nil
	}
	out := make([]string, len(f)-1)
	for i, b := range f[1:] {
		out[i] = string(b)
	}
	return out
}

// NewFrames builds a Frames value from a tag plus string arguments.
func NewFrames(tag string, args ...string) Frames {
	f := make(Frames, 0, len(args)+1)
	f = append(f, []byte(tag))
	for _, a := range args {
		f = append(f, []byte(a))
	}
	return f
}

// Marshal encodes frames as: uint32 frame count, then per frame a uint32
// length followed by its bytes. All integers are big-endian.
func Marshal(frames Frames) []byte {
	total := 4
	for _, f := range frames {
		total += 4 + len(f)
	}
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf, uint32(len(frames)))
	off := 4
	for _, f := range frames {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(f)))
		off += 4
		copy(buf[off:], f)
		off += len(f)
	}
	return buf
}

// Unmarshal decodes the byte format produced by Marshal.
func Unmarshal(data []byte) (Frames, error) {
	if len(data) < 4 {
		return nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(data)
	off := 4
	frames := make(Frames, 0, n)
	for i := uint32(0); i < n; i++ {
		if off+4 > len(data) {
			return nil, ErrTruncated
		}
		flen := binary.BigEndian.Uint32(data[off:])
		off += 4
		if off+int(flen) > len(data) {
			return nil, ErrTruncated
		}
		frame := make([]byte, flen)
		copy(frame, data[off:off+int(flen)])
		off += int(flen)
		frames = append(frames, frame)
	}
	return frames, nil
}

// WriteTo writes the Marshal encoding of frames to w, for stream carriers.
func WriteTo(w io.Writer, frames Frames) error {
	_, err := w.Write(Marshal(frames))
	return err
}
