package mpu9250

import (
	"errors"
	"math"
	"testing"
	"time"
)

type fakeI2C struct {
	regs   map[byte][]byte
	writes []writeOp

	readErrFor map[byte]error
	writeErr   error
}

type writeOp struct {
	reg byte
	val byte
}

func (f *fakeI2C) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := f.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (f *fakeI2C) ReadReg(reg byte, dst []byte) error {
	if err := f.readErrFor[reg]; err != nil {
		return err
	}
	b := f.regs[reg]
	if len(b) < len(dst) {
		return errors.New("short reg")
	}
	copy(dst, b[:len(dst)])
	return nil
}

func (f *fakeI2C) WriteReg(reg, value byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeOp{reg: reg, val: value})
	return nil
}

func TestNew_WhoAmIMismatch(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {0x73}}}
	_, err := New(f)
	if !errors.Is(err, ErrWrongDevice) {
		t.Fatalf("err=%v want ErrWrongDevice", err)
	}
	if len(f.writes) != 0 {
		t.Fatalf("wrote %d registers to an unknown device", len(f.writes))
	}
}

func TestNew_WritesInitSequence(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {whoAmIVal}}}
	if _, err := New(f); err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []writeOp{
		{regPwrMgmt1, 0x00},
		{regSignalPathReset, 0x07},
		{regSmplrtDiv, 0x07},
		{regConfig, 0x06},
		{regAccelConfig, 0x18},
		{regAccelConfig2, 0x00},
	}
	if len(f.writes) != len(want) {
		t.Fatalf("writes=%v want %v", f.writes, want)
	}
	for i := range want {
		if f.writes[i] != want[i] {
			t.Fatalf("write %d=%v want %v", i, f.writes[i], want[i])
		}
	}
}

func TestNew_WriteFailure(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {whoAmIVal}}, writeErr: errors.New("nack")}
	if _, err := New(f); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadGyro_DecodesBigEndian(t *testing.T) {
	f := &fakeI2C{regs: map[byte][]byte{
		regWhoAmI:    {whoAmIVal},
		regGyroXoutH: {0x00, 0x10, 0xFF, 0xF0, 0x80, 0x00},
	}}
	d, err := New(f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	g, err := d.ReadGyro()
	if err != nil {
		t.Fatalf("ReadGyro: %v", err)
	}
	if g.X != 16 || g.Y != -16 || g.Z != math.MinInt16 {
		t.Fatalf("gyro=%+v want {16 -16 -32768}", g)
	}
	if !g.Time.Equal(fixed) {
		t.Fatalf("time=%v want %v", g.Time, fixed)
	}

	_, _, z := g.DPS()
	if z != -250 {
		t.Fatalf("z=%v dps want -250", z)
	}
}

func TestReadGyro_Error(t *testing.T) {
	f := &fakeI2C{
		regs:       map[byte][]byte{regWhoAmI: {whoAmIVal}},
		readErrFor: map[byte]error{regGyroXoutH: errors.New("bus error")},
	}
	d, err := New(f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := d.ReadGyro(); err == nil {
		t.Fatal("expected error")
	}
}
