package session

import (
	"crypto/rand"
	"fmt"

	"coview/internal/constants"
)

// newCode draws a session code from the unambiguous alphabet using the
// crypto random source. Uniqueness against live sessions is the Registry's
// job; entropy exhaustion is not recoverable.
func newCode() string {
	buf := make([]byte, constants.CodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("random source unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = constants.CodeAlphabet[int(b)%len(constants.CodeAlphabet)]
	}
	return string(buf)
}
