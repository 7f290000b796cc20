//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Line is a GPIO line requested as an output through the character device.
type Line struct {
	line *gpiocdev.Line
}

// Open requests offset on chip (e.g. "gpiochip0") as an output, initially off.
func Open(chip string, offset int) (*Line, error) {
	if offset < 0 {
		return nil, fmt.Errorf("led: invalid gpio offset %d", offset)
	}
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("loranode-join"))
	if err != nil {
		return nil, fmt.Errorf("led: request %s:%d: %w", chip, offset, err)
	}
	return &Line{line: l}, nil
}

func (l *Line) Set(on bool) error {
	if l == nil || l.line == nil {
		return fmt.Errorf("led: line not initialized")
	}
	v := 0
	if on {
		v = 1
	}
	return l.line.SetValue(v)
}

// Close switches the LED off and releases the line.
func (l *Line) Close() error {
	if l == nil || l.line == nil {
		return nil
	}
	_ = l.line.SetValue(0)
	err := l.line.Close()
	l.line = nil
	return err
}
