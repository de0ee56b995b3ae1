// Package pointid derives deterministic vector point identifiers.
//
// An ID is the name-based UUID (version 5, SHA-1) of "{source}:{index}" in the
// URL namespace. The same source and index always produce the same ID in any
// process, so re-ingesting a document overwrites its points instead of
// duplicating them.
package pointid

import (
	"fmt"

	"github.com/google/uuid"
)

// Derive returns the point ID of chunk index within sourceID.
func Derive(sourceID string, index int) string {
	name := fmt.Sprintf("%s:%d", sourceID, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// DeriveAll returns the IDs of chunks 0..n-1 of sourceID.
func DeriveAll(sourceID string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = Derive(sourceID, i)
	}
	return ids
}
