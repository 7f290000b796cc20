//go:build linux

// Package i2c talks to register based devices on a Linux /dev/i2c-* bus.
package i2c

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Register reads are one I2C_RDWR transfer: the register write and the data
// read are joined by a repeated start.
const (
	ioctlRdwr = 0x0707
	flagRead  = 0x0001
)

// i2c_msg and i2c_rdwr_ioctl_data from linux/i2c.h and linux/i2c-dev.h.
type message struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Dev is one 7-bit addressed device on a bus. It is safe for concurrent use.
type Dev struct {
	mu   sync.Mutex
	fd   int
	path string
	addr uint16
}

func Open(path string, addr uint16) (*Dev, error) {
	if addr == 0 || addr > 0x7F {
		return nil, fmt.Errorf("invalid i2c addr 0x%X", addr)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Dev{fd: fd, path: path, addr: addr}, nil
}

func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// ReadReg reads len(dst) bytes starting at reg.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	if err := d.transfer([]byte{reg}, dst); err != nil {
		return fmt.Errorf("i2c read 0x%02X: %w", reg, err)
	}
	return nil
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := d.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	if err := d.transfer([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("i2c write 0x%02X: %w", reg, err)
	}
	return nil
}

// transfer writes w and then reads into r in a single combined transaction.
func (d *Dev) transfer(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return fmt.Errorf("i2c %s: device closed", d.path)
	}

	msgs := make([]message, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, message{addr: d.addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, message{addr: d.addr, flags: flagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(msgs) == 0 {
		return errors.New("empty transfer")
	}

	data := rdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return errno
	}
	return nil
}
