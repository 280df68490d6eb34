package event

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileChange_WireFormat(t *testing.T) {
	data, err := FileChange{TraceID: "t1", RepoRoot: "/repo", RelativePath: "a.go", ContentHash: "abc"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"traceId":"t1","repoRoot":"/repo","relativePath":"a.go","sha256":"abc"}`, string(data))
}

func TestDecodeFileChange_AcceptsContentHash(t *testing.T) {
	e, err := DecodeFileChange([]byte(`{"traceId":"t","repoRoot":"/r","relativePath":"b.java","contentHash":"h"}`))
	require.NoError(t, err)
	assert.Equal(t, "h", e.ContentHash)

	e, err = DecodeFileChange([]byte(`{"repoRoot":"/r","relativePath":"b.java","sha256":"s","contentHash":"h"}`))
	require.NoError(t, err)
	assert.Equal(t, "s", e.ContentHash)
}

func TestDecodeFileChange_Rejects(t *testing.T) {
	_, err := DecodeFileChange([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeFileChange([]byte(`{"repoRoot":"/r"}`))
	assert.Error(t, err)
}

func TestDecodeScanRequest(t *testing.T) {
	r, err := DecodeScanRequest([]byte(`{"traceId":"x","repoRoot":"/repo"}`))
	require.NoError(t, err)
	assert.Equal(t, "/repo", r.RepoRoot)

	_, err = DecodeScanRequest([]byte(`{"traceId":"x"}`))
	assert.Error(t, err)
}

func TestHashFile_MatchesHashBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes([]byte("hello")), got)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)
}

func TestNewTraceID_Unique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
	assert.Len(t, NewTraceID(), 36)
}
