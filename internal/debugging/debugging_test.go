package debugging

import (
	"testing"
)

func TestSetEnabledTogglesLogf(t *testing.T) {
	// Logf writes to stderr; this test only guards that toggling the
	// gate and logging in both states doesn't panic, since stdout/stderr
	// capture isn't worth the ceremony here.
	SetEnabled(true)
	Logf("test message %d", 1)
	SetEnabled(false)
	Logf("should be suppressed")
}
