// Package settings holds the node's persistent device configuration: the
// console UART mode, the work mode and the LoRaWAN join parameters.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"i4.energy/across/loranode/at"
	"i4.energy/across/loranode/join"
)

// Work modes of the radio module.
const (
	WorkLoRaWAN = "lorawan"
	WorkP2P     = "p2p"
	WorkTest    = "test"
)

type Settings struct {
	UART    UARTSettings    `yaml:"uart"`
	Work    string          `yaml:"work_mode"`
	LoRaWAN LoRaWANSettings `yaml:"lorawan"`
}

type UARTSettings struct {
	// Index is the console UART number used in uart_mode commands.
	Index int    `yaml:"index"`
	Mode  string `yaml:"mode"`
}

type LoRaWANSettings struct {
	JoinMode string `yaml:"join_mode"`
	Class    string `yaml:"class"`
	Region   string `yaml:"region"`
	// DataRate is the retry data rate used while ADR is off.
	DataRate        int `yaml:"data_rate"`
	PassthroughPort int `yaml:"passthrough_port"`
}

// Default returns the factory settings.
func Default() Settings {
	s := Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.UART.Index <= 0 {
		s.UART.Index = 1
	}
	if s.UART.Mode == "" {
		s.UART.Mode = at.ModeNormal.String()
	}
	if s.Work == "" {
		s.Work = WorkLoRaWAN
	}
	if s.LoRaWAN.JoinMode == "" {
		s.LoRaWAN.JoinMode = "otaa"
	}
	if s.LoRaWAN.Class == "" {
		s.LoRaWAN.Class = "A"
	}
	if s.LoRaWAN.Region == "" {
		s.LoRaWAN.Region = "EU868"
	}
	if s.LoRaWAN.PassthroughPort == 0 {
		s.LoRaWAN.PassthroughPort = at.PassthroughPort
	}
}

// Validate checks the settings after defaults have been applied.
func (s Settings) Validate() error {
	if _, ok := at.ParseMode(s.UART.Mode); !ok {
		return fmt.Errorf("uart.mode must be 'normal' or 'transparent', got %q", s.UART.Mode)
	}
	switch s.Work {
	case WorkLoRaWAN, WorkP2P, WorkTest:
	default:
		return fmt.Errorf("work_mode must be one of lorawan, p2p, test, got %q", s.Work)
	}
	if _, err := join.ParseMethod(s.LoRaWAN.JoinMode); err != nil {
		return fmt.Errorf("lorawan.join_mode: %w", err)
	}
	switch strings.ToUpper(s.LoRaWAN.Class) {
	case "A", "B", "C":
	default:
		return fmt.Errorf("lorawan.class must be A, B or C, got %q", s.LoRaWAN.Class)
	}
	if s.LoRaWAN.DataRate < 0 || s.LoRaWAN.DataRate > 15 {
		return fmt.Errorf("lorawan.data_rate must be within 0..15, got %d", s.LoRaWAN.DataRate)
	}
	if s.LoRaWAN.PassthroughPort < 1 || s.LoRaWAN.PassthroughPort > 223 {
		return fmt.Errorf("lorawan.passthrough_port must be within 1..223, got %d", s.LoRaWAN.PassthroughPort)
	}
	return nil
}

// Mode returns the console UART mode. Invalid values read as normal.
func (s Settings) Mode() at.Mode {
	m, _ := at.ParseMode(s.UART.Mode)
	return m
}

func (s Settings) JoinMethod() join.Method {
	m, _ := join.ParseMethod(s.LoRaWAN.JoinMode)
	return m
}

// Load reads settings from path. A missing file yields the defaults.
func Load(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Settings{}, err
	default:
		if err := yaml.Unmarshal(b, &s); err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Store guards the current settings and writes them back to disk.
type Store struct {
	mu      sync.Mutex
	path    string
	current Settings
}

// Open loads path into a new Store. An empty path keeps settings in memory.
func Open(path string) (*Store, error) {
	s := Default()
	if path != "" {
		var err error
		if s, err = Load(path); err != nil {
			return nil, err
		}
	}
	return &Store{path: path, current: s}, nil
}

func (st *Store) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Update applies fn to a copy of the settings and keeps the result if it
// validates. Nothing is written to disk; call Save for that.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.current
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	st.current = next
	return nil
}

// Save writes the settings atomically via a temp file and rename.
func (st *Store) Save() error {
	st.mu.Lock()
	s := st.current
	path := st.path
	st.mu.Unlock()

	if path == "" {
		return nil
	}

	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (st *Store) Path() string { return st.path }
