package join

//go:generate go tool mockgen -source=radio.go -destination=mock_radio.go -package=join

import "context"

// MIBParam selects a value from the radio's MAC information base.
type MIBParam int

const (
	// MIBAdrEnable reads 1 when adaptive data rate is enabled, 0 otherwise.
	MIBAdrEnable MIBParam = iota
	// MIBChannelsDataRate reads the data rate currently used for uplinks.
	MIBChannelsDataRate
)

func (p MIBParam) String() string {
	switch p {
	case MIBAdrEnable:
		return "AdrEnable"
	case MIBChannelsDataRate:
		return "ChannelsDatarate"
	default:
		return "unknown"
	}
}

// MIBReader reads values from the radio's MAC information base.
type MIBReader interface {
	MIBGet(ctx context.Context, param MIBParam) (int, error)
}

// Radio is the part of the LoRaWAN stack the orchestrator drives.
type Radio interface {
	MIBReader

	// RequestJoin starts a join attempt at the given data rate; a negative
	// rate leaves the radio's configured rate untouched. For OTAA the
	// outcome arrives later and must be fed to Orchestrator.OnResult.
	RequestJoin(ctx context.Context, dataRate int) error
}
