package modem

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/loranode/at"
	"i4.energy/across/loranode/join"
)

// MaxPayload is the largest uplink the module accepts at the fastest EU868
// data rate.
const MaxPayload = 242

// Downlink is data received from the network, reported by the module as
//
//	at+recv=<port>,<rssi>,<snr>,<len>[:<hex payload>]
type Downlink struct {
	Port int
	RSSI int
	SNR  int
	Data []byte
}

// ParseDownlink parses an at+recv notification.
func ParseDownlink(line string) (Downlink, error) {
	rest, ok := strings.CutPrefix(line, at.UrcRecv)
	if !ok {
		return Downlink{}, fmt.Errorf("%w: %q", ErrMalformedDownlink, line)
	}

	header, payload, _ := strings.Cut(rest, ":")
	fields := strings.Split(header, ",")
	if len(fields) != 4 {
		return Downlink{}, fmt.Errorf("%w: %q", ErrMalformedDownlink, line)
	}

	var nums [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return Downlink{}, fmt.Errorf("%w: field %d: %w", ErrMalformedDownlink, i, err)
		}
		nums[i] = n
	}

	data, err := hex.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Downlink{}, fmt.Errorf("%w: payload: %w", ErrMalformedDownlink, err)
	}
	if len(data) != nums[3] {
		return Downlink{}, fmt.Errorf("%w: length %d, payload has %d bytes", ErrMalformedDownlink, nums[3], len(data))
	}

	return Downlink{Port: nums[0], RSSI: nums[1], SNR: nums[2], Data: data}, nil
}

// String renders the downlink the way it is printed on the console.
func (d Downlink) String() string {
	return fmt.Sprintf("%s%d,%d,%d,%d:%s", at.UrcRecv, d.Port, d.RSSI, d.SNR, len(d.Data), hex.EncodeToString(d.Data))
}

// JoinResult is the outcome of one at+join.
type JoinResult struct {
	Success  bool
	Response string
	Err      error
	Duration time.Duration
}

// Status is the subset of at+get_config=lora:status the node relies on.
type Status struct {
	ADR      bool
	DataRate int
	Joined   bool
	Fields   map[string]string
}

// Send transmits payload as an unconfirmed uplink on port.
func (m *Modem) Send(ctx context.Context, port int, payload []byte) error {
	if port < 1 || port > 223 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	start := time.Now()
	cmd := fmt.Sprintf(at.CmdSend, port, hex.EncodeToString(payload))
	if _, err := m.exec(ctx, cmd); err != nil {
		return fmt.Errorf("send uplink: %w", err)
	}
	m.logger.Info("Uplink sent", "port", port, "length", len(payload), "duration", time.Since(start))
	return nil
}

// RequestJoin asks the module to join the network. A non-negative dataRate
// is configured first; a negative one keeps the module's current rate.
//
// The join itself runs in the background and its outcome is delivered on
// JoinResults. Only one join may be outstanding.
func (m *Modem) RequestJoin(ctx context.Context, dataRate int) error {
	if m.closed.Load() {
		return ErrAlreadyClosed
	}
	if !m.joining.CompareAndSwap(false, true) {
		return ErrJoinInProgress
	}

	if dataRate >= 0 {
		if _, err := m.exec(ctx, fmt.Sprintf(at.CmdSetDataRate, dataRate)); err != nil {
			m.joining.Store(false)
			return fmt.Errorf("set data rate %d: %w", dataRate, err)
		}
	}

	m.logger.Debug("Join requested", "data_rate", dataRate)
	go m.joinAsync()
	return nil
}

// LoraStatus queries at+get_config=lora:status.
func (m *Modem) LoraStatus(ctx context.Context) (Status, error) {
	resp, err := m.exec(ctx, at.CmdLoraStatus)
	if err != nil {
		return Status{}, fmt.Errorf("query lora status: %w", err)
	}
	return parseStatus(resp)
}

// MIBGet reads one MAC parameter from the module status.
func (m *Modem) MIBGet(ctx context.Context, param join.MIBParam) (int, error) {
	st, err := m.LoraStatus(ctx)
	if err != nil {
		return 0, err
	}
	switch param {
	case join.MIBAdrEnable:
		if st.ADR {
			return 1, nil
		}
		return 0, nil
	case join.MIBChannelsDataRate:
		return st.DataRate, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrStatusField, param)
}

// parseStatus reads "Key: value" lines. Lines without a colon are skipped.
func parseStatus(resp string) (Status, error) {
	st := Status{Fields: make(map[string]string)}
	for _, line := range strings.Split(resp, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		st.Fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	adr, ok := st.Fields["AdrEnable"]
	if !ok {
		return st, fmt.Errorf("%w: AdrEnable", ErrStatusField)
	}
	st.ADR = parseFlag(adr)

	dr, ok := st.Fields["Current Datarate"]
	if !ok {
		return st, fmt.Errorf("%w: Current Datarate", ErrStatusField)
	}
	n, err := strconv.Atoi(dr)
	if err != nil {
		return st, fmt.Errorf("parse data rate %q: %w", dr, err)
	}
	st.DataRate = n

	st.Joined = parseFlag(st.Fields["Joined Network"])
	return st, nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}
