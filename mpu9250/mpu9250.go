// Package mpu9250 reads the gyroscope of an InvenSense MPU-9250.
package mpu9250

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultAddress is the 7-bit address with AD0 low.
	DefaultAddress = 0x68

	regSmplrtDiv       = 0x19
	regConfig          = 0x1A
	regAccelConfig     = 0x1C
	regAccelConfig2    = 0x1D
	regGyroXoutH       = 0x43
	regSignalPathReset = 0x68
	regPwrMgmt1        = 0x6B
	regWhoAmI          = 0x75

	whoAmIVal = 0x71

	// Power-on gyro full scale is ±250 dps.
	gyroScale = 250.0 / 32768.0
)

// ErrWrongDevice is returned when WHO_AM_I does not identify an MPU-9250.
var ErrWrongDevice = errors.New("mpu9250: unexpected WHO_AM_I")

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// Gyro is one raw gyroscope sample in sensor counts.
type Gyro struct {
	Time    time.Time
	X, Y, Z int16
}

// DPS converts the sample to degrees per second.
func (g Gyro) DPS() (x, y, z float64) {
	return float64(g.X) * gyroScale, float64(g.Y) * gyroScale, float64(g.Z) * gyroScale
}

type Device struct {
	dev regIO
	now func() time.Time
}

// New probes dev and applies the sampling configuration.
func New(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mpu9250: dev is nil")
	}
	d := &Device{dev: dev, now: time.Now}

	who, err := dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("%w: 0x%02X want 0x%02X", ErrWrongDevice, who, whoAmIVal)
	}

	seq := []struct{ reg, val byte }{
		{regPwrMgmt1, 0x00},        // wake, internal oscillator
		{regSignalPathReset, 0x07}, // reset gyro, accel and temp paths
		{regSmplrtDiv, 0x07},
		{regConfig, 0x06}, // 5 Hz DLPF
		{regAccelConfig, 0x18},
		{regAccelConfig2, 0x00},
	}
	for _, w := range seq {
		if err := dev.WriteReg(w.reg, w.val); err != nil {
			return nil, fmt.Errorf("mpu9250: write 0x%02X: %w", w.reg, err)
		}
	}
	return d, nil
}

func (d *Device) ReadGyro() (Gyro, error) {
	var buf [6]byte
	if err := d.dev.ReadReg(regGyroXoutH, buf[:]); err != nil {
		return Gyro{}, fmt.Errorf("mpu9250: read gyro failed: %w", err)
	}
	return Gyro{
		Time: d.now(),
		X:    int16(buf[0])<<8 | int16(buf[1]),
		Y:    int16(buf[2])<<8 | int16(buf[3]),
		Z:    int16(buf[4])<<8 | int16(buf[5]),
	}, nil
}
