/*
Package randx provides functions for generating cryptographically secure random
identifiers and validating externally supplied names.

It is primarily used to mint UUID connection/message/room identifiers and
Base62 file keys for uploaded blobs.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// FileKeyLength is the length of the random Base62 portion of an upload file key.
	FileKeyLength = 12

	// MaxRoomNameLength bounds externally supplied room names.
	MaxRoomNameLength = 64

	// MaxUsernameLength bounds externally supplied display names.
	MaxUsernameLength = 32
)

// ConnectionID generates a UUID v4 string identifying one live client connection.
func ConnectionID() string {
	return uuid.New().String()
}

// MessageID generates a UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// RoomID generates a UUID v4 string to serve as a unique identifier for a room record.
func RoomID() string {
	return uuid.New().String()
}

// FileKey generates a random Base62 string used as the storage key suffix for an uploaded blob.
func FileKey() (string, error) {
	result := make([]byte, FileKeyLength)

	for i := range FileKeyLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for file key: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// IsValidRoomName reports whether the given string is acceptable as a room name.
// Room names double as broadcast routing keys, so they must be non-empty, bounded
// in length, and free of whitespace and path separators.
func IsValidRoomName(name string) bool {
	if name == "" || len(name) > MaxRoomNameLength {
		return false
	}

	return !strings.ContainsAny(name, " \t\n\r/\\")
}

// IsValidUsername reports whether the given string is acceptable as a display name.
func IsValidUsername(name string) bool {
	if name == "" || len(name) > MaxUsernameLength {
		return false
	}

	return !strings.ContainsAny(name, "\t\n\r")
}
