package at_test

import (
	"bufio"
	"strings"
	"testing"

	"i4.energy/across/loranode/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Simple command response",
			input:    "OK V3.0.0.14.H\r\n",
			expected: []string{"OK V3.0.0.14.H"},
		},
		{
			name:     "Command with error",
			input:    "ERROR: 99\r\n",
			expected: []string{"ERROR: 99"},
		},
		{
			name:     "Status query",
			input:    "Work Mode: LoRaWAN\r\nAdrEnable: true\r\nCurrent Datarate: 5\r\nOK\r\n",
			expected: []string{"Work Mode: LoRaWAN", "AdrEnable: true", "Current Datarate: 5", "OK"},
		},
		{
			name:     "Downlink mixed with response",
			input:    "at+recv=2,-40,9,2:beef\r\nOK\r\n",
			expected: []string{"at+recv=2,-40,9,2:beef", "OK"},
		},
		{
			name:     "Empty lines handling",
			input:    "\r\n\r\nOK\r\n\r\n",
			expected: []string{"", "", "OK", ""},
		},
		// EOF scenarios - testing atEOF functionality
		{
			name:     "Incomplete response at EOF",
			input:    "Current Datarate: 5\r\nOK Join",
			expected: []string{"Current Datarate: 5", "OK Join"},
		},
		{
			name:     "Response without CRLF at EOF",
			input:    "OK",
			expected: []string{"OK"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %v\nGot: %v",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.ResponseType
	}{
		// Final responses
		{name: "OK response", input: "OK", expected: at.TypeFinal},
		{name: "OK with text", input: "OK Join Success", expected: at.TypeFinal},
		{name: "ERROR response", input: "ERROR", expected: at.TypeFinal},
		{name: "ERROR with code", input: "ERROR: 86", expected: at.TypeFinal},

		// URCs
		{name: "Downlink URC", input: "at+recv=1,-87,7,0", expected: at.TypeURC},

		// Data responses
		{name: "Status line", input: "AdrEnable: true", expected: at.TypeData},
		{name: "Word starting with OK", input: "OKAY", expected: at.TypeData},
		{name: "Device banner", input: "RAK811", expected: at.TypeData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.Classify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}
