//go:build !linux

package led

import "fmt"

type Line struct{}

func Open(chip string, offset int) (*Line, error) {
	return nil, fmt.Errorf("led: gpio unsupported on this platform")
}

func (l *Line) Set(bool) error { return fmt.Errorf("led: gpio unsupported on this platform") }
func (l *Line) Close() error   { return nil }
