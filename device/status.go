package device

import (
	"fmt"

	"i4.energy/across/loranode/at"
	"i4.energy/across/loranode/settings"
)

// Status exposes the console mode kept in the settings store to the
// dispatcher, which reads it on every frame and persists it after "+++".
type Status struct {
	store *settings.Store
}

func NewStatus(store *settings.Store) *Status {
	return &Status{store: store}
}

func (s *Status) Mode() at.Mode {
	return s.store.Get().Mode()
}

func (s *Status) SetMode(m at.Mode) error {
	if err := s.store.Update(func(st *settings.Settings) { st.UART.Mode = m.String() }); err != nil {
		return fmt.Errorf("set console mode %s: %w", m, err)
	}
	return nil
}

func (s *Status) Persist() error {
	if err := s.store.Save(); err != nil {
		return fmt.Errorf("save settings %s: %w", s.store.Path(), err)
	}
	return nil
}
