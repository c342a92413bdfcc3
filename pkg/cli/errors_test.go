package cli

import (
	"errors"
	"testing"
)

func TestConfigError_Message(t *testing.T) {
	err := NewConfigError("server.listen_address", "missing required field")
	want := "config server.listen_address: missing required field"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	// Without a field the message stands alone.
	err = NewConfigError("", "file not found")
	if got := err.Error(); got != "config: file not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCommandError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewCommandError("run", cause)

	if got := err.Error(); got != "run: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}
