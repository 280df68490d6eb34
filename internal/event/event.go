// Package event defines the messages that flow from scanners and watchers
// to indexing workers.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Topics and consumer group used on the broker.
const (
	TopicFileChange = "code-agent-v2-file-change"
	TopicScan       = "code-agent-v2-scan"
	IndexerGroup    = "code-agent-v2-indexer"
)

// FileChange announces that a file under RepoRoot has content ContentHash.
type FileChange struct {
	TraceID      string `json:"traceId"`
	RepoRoot     string `json:"repoRoot"`
	RelativePath string `json:"relativePath"`
	ContentHash  string `json:"sha256"`
}

// ScanRequest asks a worker to scan RepoRoot and publish every file.
type ScanRequest struct {
	TraceID  string `json:"traceId"`
	RepoRoot string `json:"repoRoot"`
}

// NewTraceID returns a random trace id.
func NewTraceID() string {
	return uuid.NewString()
}

// Encode renders e as JSON.
func (e FileChange) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeFileChange parses a FileChange. The hash is read from "sha256",
// falling back to "contentHash".
func DecodeFileChange(data []byte) (FileChange, error) {
	var raw struct {
		FileChange
		LegacyHash string `json:"contentHash"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return FileChange{}, fmt.Errorf("decode file change: %w", err)
	}
	e := raw.FileChange
	if e.ContentHash == "" {
		e.ContentHash = raw.LegacyHash
	}
	if strings.TrimSpace(e.RelativePath) == "" {
		return FileChange{}, fmt.Errorf("decode file change: relativePath is empty")
	}
	return e, nil
}

// Encode renders r as JSON.
func (r ScanRequest) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeScanRequest parses a ScanRequest.
func DecodeScanRequest(data []byte) (ScanRequest, error) {
	var r ScanRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return ScanRequest{}, fmt.Errorf("decode scan request: %w", err)
	}
	if strings.TrimSpace(r.RepoRoot) == "" {
		return ScanRequest{}, fmt.Errorf("decode scan request: repoRoot is empty")
	}
	return r, nil
}

// HashBytes returns the hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
