package modem

import (
	"context"
	"io"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// This is needed because the Loop's scanner goroutine continuously reads from the transport,
// and we need reads to block until data is available (like a real serial port would).
//
// Every write is recorded and can be awaited through Writes, so a test can
// answer a command only after it was sent.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	writes   chan string
	closed   bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests of other packages.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 16),
		writes:   make(chan string, 32),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	select {
	case t.writes <- string(p):
	default:
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the module.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns the channel of recorded writes.
func (t *TestTransport) Writes() <-chan string {
	return t.writes
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
	Err       error
}

func (d TestDialer) Dial(context.Context) (Transport, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Transport, nil
}
