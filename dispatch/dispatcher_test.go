package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/loranode/at"
	"i4.energy/across/loranode/dispatch"
)

type collaborators struct {
	modes     *dispatch.MockModeStore
	sender    *dispatch.MockSender
	persister *dispatch.MockPersister
	executor  *dispatch.MockExecutor
	fallback  *dispatch.MockFallback
	exits     int
}

func newTestDispatcher(t *testing.T, ctrl *gomock.Controller) (*dispatch.Dispatcher, *collaborators) {
	t.Helper()
	c := &collaborators{
		modes:     dispatch.NewMockModeStore(ctrl),
		sender:    dispatch.NewMockSender(ctrl),
		persister: dispatch.NewMockPersister(ctrl),
		executor:  dispatch.NewMockExecutor(ctrl),
		fallback:  dispatch.NewMockFallback(ctrl),
	}
	d, err := dispatch.New(dispatch.Config{
		Modes:      c.modes,
		Sender:     c.sender,
		Persister:  c.persister,
		Executor:   c.executor,
		Fallback:   c.fallback,
		OnModeExit: func() { c.exits++ },
	})
	if err != nil {
		t.Fatalf("unexpected error from New(): %v", err)
	}
	return d, c
}

func TestDispatchNormalMode(t *testing.T) {
	t.Run("Command with terminators reaches the executor stripped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		c.modes.EXPECT().Mode().Return(at.ModeNormal)
		c.executor.EXPECT().Run(gomock.Any(), "at+foo")

		class, err := d.Dispatch(context.Background(), []byte("at+foo\r\n"))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if class != at.FrameCommand {
			t.Errorf("expected %v, got %v", at.FrameCommand, class)
		}
	})

	t.Run("Scenario frame dispatches at+r", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		c.modes.EXPECT().Mode().Return(at.ModeNormal)
		c.executor.EXPECT().Run(gomock.Any(), "at+r")

		if _, err := d.Dispatch(context.Background(), []byte("at+r\r\n")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ErrMalformedCommand when the terminator is missing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		// No executor, sender or fallback call is expected.
		c.modes.EXPECT().Mode().Return(at.ModeNormal)

		class, err := d.Dispatch(context.Background(), []byte("at+foo"))
		if !errors.Is(err, dispatch.ErrMalformedCommand) {
			t.Errorf("expected ErrMalformedCommand, got: %v", err)
		}
		if class != at.FrameMalformed {
			t.Errorf("expected %v, got %v", at.FrameMalformed, class)
		}
	})

	t.Run("Non-command frame goes to the fallback", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		c.modes.EXPECT().Mode().Return(at.ModeNormal)
		c.fallback.EXPECT().Handle(gomock.Any(), []byte("hello\r\n"))

		class, err := d.Dispatch(context.Background(), []byte("hello\r\n"))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if class != at.FrameUnrecognized {
			t.Errorf("expected %v, got %v", at.FrameUnrecognized, class)
		}
	})

	t.Run("Escape sequence is not special in normal mode", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		c.modes.EXPECT().Mode().Return(at.ModeNormal)
		c.fallback.EXPECT().Handle(gomock.Any(), []byte("+++"))

		if _, err := d.Dispatch(context.Background(), []byte("+++")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if c.exits != 0 {
			t.Error("mode exit notified in normal mode")
		}
	})
}

func TestDispatchTransparentMode(t *testing.T) {
	t.Run("Escape switches to normal mode and persists", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		gomock.InOrder(
			c.modes.EXPECT().Mode().Return(at.ModeTransparent),
			c.modes.EXPECT().SetMode(at.ModeNormal).Return(nil),
			c.persister.EXPECT().Persist().Return(nil),
		)

		class, err := d.Dispatch(context.Background(), []byte(at.EscapeSeq))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if class != at.FrameEscape {
			t.Errorf("expected %v, got %v", at.FrameEscape, class)
		}
		if c.exits != 1 {
			t.Errorf("expected one mode exit notification, got %d", c.exits)
		}
	})

	t.Run("ErrPersist when the configuration cannot be saved", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		saveErr := errors.New("flash write failed")
		c.modes.EXPECT().Mode().Return(at.ModeTransparent)
		c.modes.EXPECT().SetMode(at.ModeNormal).Return(nil)
		c.persister.EXPECT().Persist().Return(saveErr)

		_, err := d.Dispatch(context.Background(), []byte(at.EscapeSeq))
		if !errors.Is(err, dispatch.ErrPersist) {
			t.Errorf("expected ErrPersist, got: %v", err)
		}
		if !errors.Is(err, saveErr) {
			t.Errorf("expected wrapped persist error, got: %v", err)
		}
	})

	t.Run("Rejected mode switch is not persisted", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		setErr := errors.New("invalid mode")
		c.modes.EXPECT().Mode().Return(at.ModeTransparent)
		c.modes.EXPECT().SetMode(at.ModeNormal).Return(setErr)

		_, err := d.Dispatch(context.Background(), []byte(at.EscapeSeq))
		if !errors.Is(err, setErr) {
			t.Errorf("expected wrapped mode error, got: %v", err)
		}
		if errors.Is(err, dispatch.ErrPersist) {
			t.Errorf("unexpected ErrPersist: %v", err)
		}
		if c.exits != 0 {
			t.Errorf("expected no mode exit notification, got %d", c.exits)
		}
	})

	t.Run("Other frames are forwarded byte for byte", func(t *testing.T) {
		payloads := []string{"hello", "at+join\r\n", "++", "++++", "+++\r\n", "\x00\x01\xfe"}
		for _, p := range payloads {
			t.Run(p, func(t *testing.T) {
				ctrl := gomock.NewController(t)
				d, c := newTestDispatcher(t, ctrl)

				c.modes.EXPECT().Mode().Return(at.ModeTransparent)
				c.sender.EXPECT().Send(gomock.Any(), at.PassthroughPort, []byte(p)).Return(nil)

				class, err := d.Dispatch(context.Background(), []byte(p))
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if class != at.FramePassthrough {
					t.Errorf("expected %v, got %v", at.FramePassthrough, class)
				}
				if c.exits != 0 {
					t.Error("payload frame changed the mode")
				}
			})
		}
	})

	t.Run("Send failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		d, c := newTestDispatcher(t, ctrl)

		sendErr := errors.New("radio busy")
		c.modes.EXPECT().Mode().Return(at.ModeTransparent)
		c.sender.EXPECT().Send(gomock.Any(), at.PassthroughPort, gomock.Any()).Return(sendErr)

		_, err := d.Dispatch(context.Background(), []byte("data"))
		if !errors.Is(err, sendErr) {
			t.Errorf("expected wrapped send error, got: %v", err)
		}
		if errors.Is(err, dispatch.ErrPersist) {
			t.Error("send failure must not be reported as a persist failure")
		}
	})
}

func TestDispatchReadsModeEveryFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	d, c := newTestDispatcher(t, ctrl)

	gomock.InOrder(
		c.modes.EXPECT().Mode().Return(at.ModeTransparent),
		c.sender.EXPECT().Send(gomock.Any(), at.PassthroughPort, []byte("at+join\r\n")).Return(nil),
		c.modes.EXPECT().Mode().Return(at.ModeNormal),
		c.executor.EXPECT().Run(gomock.Any(), "at+join"),
	)

	ctx := context.Background()
	if _, err := d.Dispatch(ctx, []byte("at+join\r\n")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := d.Dispatch(ctx, []byte("at+join\r\n")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Run("ErrMissingCollaborator when a dependency is nil", func(t *testing.T) {
		_, err := dispatch.New(dispatch.Config{})
		if !errors.Is(err, dispatch.ErrMissingCollaborator) {
			t.Errorf("expected ErrMissingCollaborator, got: %v", err)
		}
	})
}
