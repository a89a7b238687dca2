package core

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for actions and events.
//
// This function creates a UUID-based unique identifier that can be used
// for event tracking and correlation throughout the framework.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// NewSessionID generates a session identifier in the wire format expected by
// streaming clients: "session_<unixMillis>_<base36-suffix>". The random
// suffix keeps ids unique even when two sessions are created within the same
// millisecond.
func NewSessionID() string {
	suffix := strconv.FormatInt(rand.Int63(), 36)
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
