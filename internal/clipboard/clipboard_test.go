package clipboard

import "testing"

func TestCommandExists(t *testing.T) {
	if commandExists("definitely-not-a-real-command-xyz") {
		t.Error("expected nonexistent command to be reported missing")
	}
}

func TestAvailableDoesNotPanic(t *testing.T) {
	// Environment-dependent result; only the call itself is asserted.
	_ = Available()
}
