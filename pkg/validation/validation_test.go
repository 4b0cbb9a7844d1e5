package validation

import (
	"strings"
	"testing"
)

func TestValidateRoomName(t *testing.T) {
	valid := []string{"den", "room-1", "Team_Alpha", "x"}
	for _, name := range valid {
		if err := ValidateRoomName(name); err != nil {
			t.Errorf("expected %q to be valid, got: %v", name, err)
		}
	}

	invalid := []string{"", "   ", "room name", "room!", strings.Repeat("a", 65)}
	for _, name := range invalid {
		if err := ValidateRoomName(name); err == nil {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}

func TestValidateDisplayName(t *testing.T) {
	valid := []string{"alice", "Bob the Builder", "Zoë"}
	for _, name := range valid {
		if err := ValidateDisplayName(name); err != nil {
			t.Errorf("expected %q to be valid, got: %v", name, err)
		}
	}

	invalid := []string{"", "  ", strings.Repeat("n", 51), string([]byte{0xff, 0xfe})}
	for _, name := range invalid {
		if err := ValidateDisplayName(name); err == nil {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}
