package at

import "bytes"

// ClassifyFrame decides how a completed console frame is handled in the
// given mode. It is a pure function of its inputs; the caller must read the
// mode fresh for every frame.
//
// In transparent mode only an exact "+++" frame is special, everything else
// is payload. In normal mode a frame must start with the case-sensitive
// "at+" prefix and carry a CR or LF somewhere to count as a command.
func ClassifyFrame(mode Mode, frame []byte) FrameClass {
	if mode == ModeTransparent {
		if string(frame) == EscapeSeq {
			return FrameEscape
		}
		return FramePassthrough
	}

	if !bytes.HasPrefix(frame, []byte(CommandPrefix)) {
		return FrameUnrecognized
	}
	if bytes.IndexAny(frame, CRLF) < 0 {
		return FrameMalformed
	}
	return FrameCommand
}

// CommandText returns the command carried by a frame with everything from
// the first CR or LF onwards removed.
func CommandText(frame []byte) string {
	if i := bytes.IndexAny(frame, CRLF); i >= 0 {
		return string(frame[:i])
	}
	return string(frame)
}
