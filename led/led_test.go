package led

import "testing"

func TestNop(t *testing.T) {
	var ind Indicator = Nop{}
	if err := ind.Set(true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := ind.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_InvalidOffset(t *testing.T) {
	if _, err := Open("gpiochip0", -1); err == nil {
		t.Fatal("expected error")
	}
}

func TestLine_NilIsSafeToClose(t *testing.T) {
	var l *Line
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
