// nodeid.go: process-stable node identity
package tiercache

import (
	"crypto/rand"
	"encoding/hex"
)

// NewNodeID generates a random, process-stable node identifier. Every write
// a node makes to the authoritative store is tagged with its NodeID so the
// change-feed consumer can recognize and suppress self-echoes.
//
// There is no coordination between nodes when generating an id; 16 random
// bytes give a collision probability low enough that two nodes sharing one
// is not a scenario worth guarding against explicitly.
func NewNodeID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read only fails if the system entropy source is
		// unusable, which is unrecoverable for this process anyway.
		panic(NewErrInternal("NewNodeID", err))
	}
	return hex.EncodeToString(buf)
}
