package modem_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"i4.energy/across/loranode/join"
	"i4.energy/across/loranode/modem"
)

func TestParseDownlink(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected modem.Downlink
		wantErr  bool
	}{
		{name: "Payload", line: "at+recv=2,-70,8,3:0a0b0c", expected: modem.Downlink{Port: 2, RSSI: -70, SNR: 8, Data: []byte{0x0a, 0x0b, 0x0c}}},
		{name: "Empty acknowledgement", line: "at+recv=0,-105,-3,0", expected: modem.Downlink{Port: 0, RSSI: -105, SNR: -3, Data: []byte{}}},
		{name: "Uppercase hex", line: "at+recv=10,-40,9,1:FF", expected: modem.Downlink{Port: 10, RSSI: -40, SNR: 9, Data: []byte{0xff}}},
		{name: "Missing field", line: "at+recv=2,-70,8", wantErr: true},
		{name: "Length mismatch", line: "at+recv=2,-70,8,2:ff", wantErr: true},
		{name: "Bad hex", line: "at+recv=2,-70,8,1:zz", wantErr: true},
		{name: "Not a downlink", line: "OK", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl, err := modem.ParseDownlink(tt.line)
			if tt.wantErr {
				if !errors.Is(err, modem.ErrMalformedDownlink) {
					t.Errorf("expected ErrMalformedDownlink, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dl.Port != tt.expected.Port || dl.RSSI != tt.expected.RSSI || dl.SNR != tt.expected.SNR || !bytes.Equal(dl.Data, tt.expected.Data) {
				t.Errorf("expected %+v, got %+v", tt.expected, dl)
			}
		})
	}
}

func TestDownlinkString(t *testing.T) {
	dl := modem.Downlink{Port: 2, RSSI: -70, SNR: 8, Data: []byte{0xbe, 0xef}}
	if s := dl.String(); s != "at+recv=2,-70,8,2:beef" {
		t.Errorf("unexpected rendering %q", s)
	}

	back, err := modem.ParseDownlink(dl.String())
	if err != nil || back.Port != 2 || !bytes.Equal(back.Data, dl.Data) {
		t.Errorf("rendering does not parse back: %+v, %v", back, err)
	}
}

const statusResponse = "Work Mode: LoRaWAN\r\n" +
	"Region: EU868\r\n" +
	"Join_mode: OTAA\r\n" +
	"Joined Network:true\r\n" +
	"AdrEnable: true\r\n" +
	"Current Datarate: 5\r\n" +
	"OK\r\n"

func TestModemStatus(t *testing.T) {
	t.Run("LoraStatus parses the reported fields", func(t *testing.T) {
		m, tt := newTestModem(t)

		type result struct {
			st  modem.Status
			err error
		}
		done := make(chan result, 1)
		go func() {
			st, err := m.LoraStatus(context.Background())
			done <- result{st, err}
		}()

		expectWrite(t, tt, "at+get_config=lora:status")
		tt.SendData(statusResponse)

		r := <-done
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if !r.st.ADR || r.st.DataRate != 5 || !r.st.Joined {
			t.Errorf("unexpected status %+v", r.st)
		}
		if r.st.Fields["Region"] != "EU868" {
			t.Errorf("expected region EU868, got %q", r.st.Fields["Region"])
		}
	})

	t.Run("MIBGet maps parameters onto status fields", func(t *testing.T) {
		m, tt := newTestModem(t)

		for _, tc := range []struct {
			param    join.MIBParam
			expected int
		}{
			{join.MIBAdrEnable, 1},
			{join.MIBChannelsDataRate, 5},
		} {
			done := make(chan int, 1)
			go func() {
				v, err := m.MIBGet(context.Background(), tc.param)
				if err != nil {
					t.Errorf("%s: unexpected error: %v", tc.param, err)
				}
				done <- v
			}()
			expectWrite(t, tt, "at+get_config=lora:status")
			tt.SendData(statusResponse)

			if v := <-done; v != tc.expected {
				t.Errorf("%s: expected %d, got %d", tc.param, tc.expected, v)
			}
		}
	})

	t.Run("Missing fields are reported", func(t *testing.T) {
		m, tt := newTestModem(t)

		done := make(chan error, 1)
		go func() {
			_, err := m.MIBGet(context.Background(), join.MIBAdrEnable)
			done <- err
		}()
		expectWrite(t, tt, "at+get_config=lora:status")
		tt.SendData("Work Mode: LoRaWAN\r\nOK\r\n")

		if err := <-done; !errors.Is(err, modem.ErrStatusField) {
			t.Errorf("expected ErrStatusField, got: %v", err)
		}
	})
}

func TestModemSatisfiesJoinRadio(t *testing.T) {
	var _ join.Radio = (*modem.Modem)(nil)
}

func TestModemDrivesABPJoin(t *testing.T) {
	nextResult := func(t *testing.T, m *modem.Modem) modem.JoinResult {
		t.Helper()
		select {
		case r := <-m.JoinResults():
			return r
		case <-time.After(time.Second):
			t.Fatal("no join result")
		}
		return modem.JoinResult{}
	}

	t.Run("ABP is not joined until the module answers", func(t *testing.T) {
		m, tt := newTestModem(t)
		o, _ := join.New(join.Config{Radio: m})
		ctx := context.Background()

		if err := o.RequestInitialJoin(ctx, join.ABP); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.State() != join.StateJoining {
			t.Fatalf("expected state %v before the answer, got %v", join.StateJoining, o.State())
		}

		expectWrite(t, tt, "at+join")
		tt.SendData("OK Join Success\r\n")
		r := nextResult(t, m)
		if err := o.OnResult(ctx, r.Success); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.State() != join.StateJoined {
			t.Errorf("expected state %v, got %v", join.StateJoined, o.State())
		}
	})

	t.Run("Refused ABP join is retried then fails", func(t *testing.T) {
		m, tt := newTestModem(t)
		o, _ := join.New(join.Config{Radio: m, Policy: join.Fixed{DataRate: 3}, MaxRetries: 1})
		ctx := context.Background()

		if err := o.RequestInitialJoin(ctx, join.ABP); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectWrite(t, tt, "at+join")
		tt.SendData("ERROR: 86\r\n")
		r := nextResult(t, m)
		if r.Success {
			t.Fatalf("expected failed join, got: %+v", r)
		}

		done := make(chan error, 1)
		go func() { done <- o.OnResult(ctx, r.Success) }()
		expectWrite(t, tt, "at+set_config=lora:dr:3")
		tt.SendData("OK\r\n")
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.State() != join.StateJoining || o.Attempts() != 1 {
			t.Fatalf("expected retry 1, got %v / %d", o.State(), o.Attempts())
		}

		expectWrite(t, tt, "at+join")
		tt.SendData("ERROR: 86\r\n")
		r = nextResult(t, m)
		if err := o.OnResult(ctx, r.Success); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.State() != join.StateFailed {
			t.Errorf("expected state %v, got %v", join.StateFailed, o.State())
		}
	})

	t.Run("Join requested while one is outstanding waits for it", func(t *testing.T) {
		m, tt := newTestModem(t)
		if err := m.RequestJoin(context.Background(), -1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expectWrite(t, tt, "at+join")

		o, _ := join.New(join.Config{Radio: m})
		ctx := context.Background()
		if err := o.RequestInitialJoin(ctx, join.OTAA); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.State() != join.StateJoining {
			t.Fatalf("expected state %v, got %v", join.StateJoining, o.State())
		}

		tt.SendData("OK Join Success\r\n")
		r := nextResult(t, m)
		_ = o.OnResult(ctx, r.Success)
		if o.State() != join.StateJoined {
			t.Errorf("expected state %v, got %v", join.StateJoined, o.State())
		}
	})
}
