package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RoomNameRegex validates room name format
var RoomNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateRoomName validates a room name
func ValidateRoomName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("room name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("room name is too long (max 64 characters)")
	}
	if !RoomNameRegex.MatchString(name) {
		return fmt.Errorf("room name contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateDisplayName validates a member display name
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if len(name) > 50 {
		return fmt.Errorf("display name is too long (max 50 characters)")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name contains invalid characters")
	}
	return nil
}
