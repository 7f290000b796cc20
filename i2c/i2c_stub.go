//go:build !linux

package i2c

import "fmt"

type Dev struct{}

func Open(path string, addr uint16) (*Dev, error) {
	return nil, fmt.Errorf("i2c: unsupported OS (need linux)")
}

func (d *Dev) Close() error                       { return nil }
func (d *Dev) ReadReg(reg byte, dst []byte) error { return fmt.Errorf("i2c: unsupported OS") }
func (d *Dev) ReadRegU8(reg byte) (byte, error)   { return 0, fmt.Errorf("i2c: unsupported OS") }
func (d *Dev) WriteReg(reg, value byte) error     { return fmt.Errorf("i2c: unsupported OS") }
