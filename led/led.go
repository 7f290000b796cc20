// Package led drives the join status indicator.
package led

// Indicator is an on/off output.
type Indicator interface {
	Set(on bool) error
	Close() error
}

// Nop is used when no LED is configured.
type Nop struct{}

func (Nop) Set(bool) error { return nil }
func (Nop) Close() error   { return nil }
