package framer

import "errors"

var (
	// ErrFrameOverflow is returned by Feed when a byte arrives while the
	// frame buffer is already full.
	//
	// The frame in progress is discarded and the buffer reset; framing
	// continues with the next byte.
	ErrFrameOverflow = errors.New("frame exceeds buffer capacity")
)
