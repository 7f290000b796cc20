package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing radio module responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings. The module never prompts for
// input, payloads travel hex encoded inside the command line itself.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the module output
func Classify(line string) ResponseType {
	// Final results may carry text after the code ("OK Join Success",
	// "ERROR: 99").
	switch {
	case line == OK, strings.HasPrefix(line, OK+" "):
		return TypeFinal
	case line == ERROR, strings.HasPrefix(line, ERROR+":"), strings.HasPrefix(line, ERROR+" "):
		return TypeFinal
	case strings.HasPrefix(line, UrcRecv):
		return TypeURC
	default:
		return TypeData
	}
}

// IsOK reports whether a final response line signals success.
func IsOK(line string) bool {
	return line == OK || strings.HasPrefix(line, OK+" ")
}
