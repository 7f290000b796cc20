package at_test

import (
	"testing"

	"i4.energy/across/loranode/at"
)

func TestClassifyFrame(t *testing.T) {
	tests := []struct {
		name     string
		mode     at.Mode
		input    string
		expected at.FrameClass
	}{
		// Normal mode
		{name: "Command with CRLF", mode: at.ModeNormal, input: "at+foo\r\n", expected: at.FrameCommand},
		{name: "Command with CR only", mode: at.ModeNormal, input: "at+join\r", expected: at.FrameCommand},
		{name: "Command with LF only", mode: at.ModeNormal, input: "at+join\n", expected: at.FrameCommand},
		{name: "Terminator inside the frame", mode: at.ModeNormal, input: "at+a\rb", expected: at.FrameCommand},
		{name: "Command without terminator", mode: at.ModeNormal, input: "at+foo", expected: at.FrameMalformed},
		{name: "Prefix is case-sensitive", mode: at.ModeNormal, input: "AT+foo\r\n", expected: at.FrameUnrecognized},
		{name: "Short frame", mode: at.ModeNormal, input: "at", expected: at.FrameUnrecognized},
		{name: "Escape in normal mode", mode: at.ModeNormal, input: "+++", expected: at.FrameUnrecognized},
		{name: "Binary noise", mode: at.ModeNormal, input: "\x00\xff", expected: at.FrameUnrecognized},

		// Transparent mode
		{name: "Escape sequence", mode: at.ModeTransparent, input: "+++", expected: at.FrameEscape},
		{name: "Escape with trailing newline", mode: at.ModeTransparent, input: "+++\r\n", expected: at.FramePassthrough},
		{name: "Command is payload", mode: at.ModeTransparent, input: "at+join\r\n", expected: at.FramePassthrough},
		{name: "Plain payload", mode: at.ModeTransparent, input: "hello", expected: at.FramePassthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.ClassifyFrame(tt.mode, []byte(tt.input))
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}

func TestCommandText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "at+foo\r\n", expected: "at+foo"},
		{input: "at+r\r\n", expected: "at+r"},
		{input: "at+foo\n\r", expected: "at+foo"},
		{input: "at+a\rb\n", expected: "at+a"},
		{input: "at+send=lora:1:00", expected: "at+send=lora:1:00"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := at.CommandText([]byte(tt.input)); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestModeString(t *testing.T) {
	for _, m := range []at.Mode{at.ModeNormal, at.ModeTransparent} {
		parsed, ok := at.ParseMode(m.String())
		if !ok || parsed != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), parsed, ok)
		}
	}
	if _, ok := at.ParseMode("bogus"); ok {
		t.Error("expected bogus mode to be rejected")
	}
}
