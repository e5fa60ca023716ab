package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID generates a unique turn ID with a timestamp prefix and a random
// suffix (e.g. "20240115-143052-a1b2c3"). Sorts chronologically and stays
// readable in the history listing.
func NewID() string {
	random := make([]byte, 3)
	rand.Read(random)
	return fmt.Sprintf("%s-%s",
		time.Now().Format("20060102-150405"),
		hex.EncodeToString(random),
	)
}
