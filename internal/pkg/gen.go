package pkg

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
)

const roomIDBytes = 12

// Room identifiers use the document store's native format:
// a 24-character hexadecimal string.
var roomIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// GenerateRoomID - generates a new unique room identifier.
func GenerateRoomID() string {
	b := make([]byte, roomIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-room-id"
	}

	return hex.EncodeToString(b)
}

// IsValidRoomID - reports whether id is a well-formed room identifier.
func IsValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}
