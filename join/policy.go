package join

import (
	"context"
	"fmt"
)

// RetryPolicy picks the data rate for the next join attempt after a failure.
// attempt counts from 1 for the first retry.
//
// On error the returned rate is still usable; the error only reports that
// the radio could not be queried.
type RetryPolicy interface {
	NextDataRate(ctx context.Context, mib MIBReader, attempt int) (int, error)
}

// StepDown lowers the data rate by one step per retry while adaptive data
// rate is enabled, never going below zero. With ADR disabled it uses the
// configured Default.
//
// Every > 1 lowers the rate only on every Every-th attempt and keeps the
// current rate otherwise.
type StepDown struct {
	Default int
	Every   int
}

func (p StepDown) NextDataRate(ctx context.Context, mib MIBReader, attempt int) (int, error) {
	adr, err := mib.MIBGet(ctx, MIBAdrEnable)
	if err != nil {
		return p.Default, fmt.Errorf("read %s: %w", MIBAdrEnable, err)
	}
	if adr == 0 {
		return p.Default, nil
	}

	dr, err := mib.MIBGet(ctx, MIBChannelsDataRate)
	if err != nil {
		return p.Default, fmt.Errorf("read %s: %w", MIBChannelsDataRate, err)
	}
	if p.Every > 1 && attempt%p.Every != 0 {
		return max(dr, 0), nil
	}
	return max(dr-1, 0), nil
}

// Fixed retries every attempt at the same data rate.
type Fixed struct {
	DataRate int
}

func (p Fixed) NextDataRate(context.Context, MIBReader, int) (int, error) {
	return p.DataRate, nil
}
