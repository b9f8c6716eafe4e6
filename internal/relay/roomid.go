package relay

import "github.com/google/uuid"

// NewRoomID mints an opaque room identifier: 128 random bits in canonical
// hyphenated form. Collisions are negligible at any realistic room count.
func NewRoomID() string {
	return uuid.NewString()
}
