package uart

import (
	"errors"
	"io"
)

// FrameOverhead is the number of bytes added around a message.
const FrameOverhead = 3

var (
	// ErrFrameSize indicates a message that cannot be framed.
	ErrFrameSize = errors.New("frame payload must be 1 to 251 bytes")
)

// AppendFrame appends msg wrapped in a frame to dst.
func AppendFrame(dst, msg []byte) ([]byte, error) {
	if len(msg) == 0 || len(msg) > MaxFrameSize {
		return dst, ErrFrameSize
	}
	dst = append(dst, StartByte0, StartByte1, byte(len(msg)))
	return append(dst, msg...), nil
}

// WriteFrame writes msg as a single frame.
func WriteFrame(w io.Writer, msg []byte) (int, error) {
	var buf [FrameOverhead + MaxFrameSize]byte
	frame, err := AppendFrame(buf[:0], msg)
	if err != nil {
		return 0, err
	}
	return w.Write(frame)
}
