// Package workspace maps workspace roots to stable document-store collection names.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// CollectionPrefix is the fixed collection name every workspace index shares.
	CollectionPrefix = "code_agent_v2"

	// DefaultID is used when the root is blank.
	DefaultID = "default"

	idLength = 12
)

// Normalize trims the root, converts backslashes to slashes, strips trailing
// slashes and lowercases the result.
func Normalize(root string) string {
	s := strings.TrimSpace(root)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.TrimRight(s, "/")
	return strings.ToLower(s)
}

// ID returns the first 12 hex characters of the SHA-256 of the normalized root,
// or DefaultID for a blank root.
func ID(root string) string {
	normalized := Normalize(root)
	if normalized == "" {
		return DefaultID
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:idLength]
}

// IndexName returns the collection name for a workspace root.
// Identical normalized roots always map to the same name.
func IndexName(root string) string {
	return CollectionPrefix + "_" + ID(root)
}
