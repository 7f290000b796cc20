package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/loranode/modem"
)

type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Exchange expects cmd to be written and answers it with resp.
func (b *MockSequenceBuilder) Exchange(cmd, resp string) *MockSequenceBuilder {
	wire := []byte(cmd + "\r\n")
	b.calls = append(b.calls,
		b.transport.EXPECT().Write(wire).Return(len(wire), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Version() *MockSequenceBuilder {
	return b.Exchange("at+version", "OK V3.0.0.14.H\r\n")
}

func (b *MockSequenceBuilder) VersionError() *MockSequenceBuilder {
	return b.Exchange("at+version", "ERROR: 1\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

func initMockCalls(transport *modem.MockTransport) []any {
	return NewMockSequence(transport).Version().Build()
}
