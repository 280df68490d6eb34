package docstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// recordedRequest is one request seen by the fake store.
type recordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Body        string
}

type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, body string)
}

func newFakeES(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body string)) (*fakeES, *Client) {
	t.Helper()
	f := &fakeES{handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(data),
		})
		f.mu.Unlock()
		f.handler(w, r, string(data))
	}))
	t.Cleanup(srv.Close)
	return f, New(Config{URL: srv.URL, Dimensions: 2048})
}

func (f *fakeES) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Method
	}
	return out
}

func (f *fakeES) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func sampleDocs(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{
			ID:            "src/A.java|method|run|" + string(rune('1'+i)),
			Repo:          "demo",
			Language:      "java",
			FilePath:      "src/A.java",
			SymbolKind:    "method",
			SymbolName:    "com.acme.A.run",
			StartLine:     i + 1,
			EndLine:       i + 2,
			Content:       "void run() {\n  \"quoted\" <tag>\n}",
			Generation:    "abc",
			ContentVector: []float32{0.1, 0.2},
		}
	}
	return docs
}

func TestEncodeBulk_ThreeDocsSixLines(t *testing.T) {
	body, err := EncodeBulk("code_agent_v2_x", sampleDocs(3))
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 6)
	assert.True(t, bytes.HasSuffix(body, []byte("\n")))

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "code_agent_v2_x", action["index"]["_index"])
	assert.Equal(t, "src/A.java|method|run|1", action["index"]["_id"])

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "src/A.java", doc["filePath"])
	assert.Equal(t, "abc", doc["generation"])
	assert.Contains(t, doc["content"], "<tag>")
	assert.NotContains(t, doc, "ID")
}

func TestBulkIndex_SendsNDJSON(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"took":3,"errors":false,"items":[]}`))
	})

	err := c.BulkIndex(context.Background(), "idx", sampleDocs(3))

	require.NoError(t, err)
	req := f.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/_bulk", req.Path)
	assert.Equal(t, "application/x-ndjson", req.ContentType)
	assert.Equal(t, 6, strings.Count(req.Body, "\n"))
}

func TestBulkIndex_ItemErrorsAreTolerated(t *testing.T) {
	_, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"took":3,"errors":true,"items":[{"index":{"status":400}}]}`))
	})

	assert.NoError(t, c.BulkIndex(context.Background(), "idx", sampleDocs(1)))
}

func TestBulkIndex_Non2xxIsFatal(t *testing.T) {
	_, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.BulkIndex(context.Background(), "idx", sampleDocs(1))

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexFailed, apperrors.GetCode(err))
}

func TestBulkIndex_EmptyIsNoop(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {})

	require.NoError(t, c.BulkIndex(context.Background(), "idx", nil))
	assert.Empty(t, f.methods())
}

func mappingResponse(index string, dims int) string {
	return fmt.Sprintf(`{%q:{"mappings":{"properties":{"contentVector":{"type":"dense_vector","dims":%d}}}}}`, index, dims)
}

func TestEnsureSchema_CreatesMissingIndex(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	})

	require.NoError(t, c.EnsureSchema(context.Background(), "idx"))

	assert.Equal(t, []string{http.MethodHead, http.MethodPut}, f.methods())
	put := f.last()
	assert.Equal(t, "/idx", put.Path)
	assert.Contains(t, put.Body, `"dims":2048`)
	assert.Contains(t, put.Body, `"dense_vector"`)
}

func TestEnsureSchema_DimensionMismatchRecreatesOnce(t *testing.T) {
	// Given an index created with 1536 dims and a client configured for 2048
	f, c := newFakeES(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/_mapping"):
			_, _ = w.Write([]byte(mappingResponse("idx", 1536)))
		default:
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	})

	// When the schema is ensured
	require.NoError(t, c.EnsureSchema(context.Background(), "idx"))

	// Then exactly one DELETE is followed by exactly one PUT with the new dims
	assert.Equal(t, []string{http.MethodHead, http.MethodGet, http.MethodDelete, http.MethodPut}, f.methods())
	assert.Contains(t, f.last().Body, `"dims":2048`)
}

func TestEnsureSchema_MatchingDimsIsNoop(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			_, _ = w.Write([]byte(mappingResponse("idx", 2048)))
		default:
			t.Errorf("unexpected %s", r.Method)
		}
	})

	require.NoError(t, c.EnsureSchema(context.Background(), "idx"))
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, f.methods())
}

func TestIndexExists_UnexpectedStatus(t *testing.T) {
	_, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.IndexExists(context.Background(), "idx")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStoreRequest, apperrors.GetCode(err))
}

func TestDeleteIndex_MissingIsOK(t *testing.T) {
	_, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, c.DeleteIndex(context.Background(), "idx"))
}

func TestDeleteStale_FiltersByFileAndGeneration(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"deleted":2}`))
	})

	n, err := c.DeleteStale(context.Background(), "idx", "src/A.java", "gen2")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	req := f.last()
	assert.Equal(t, "/idx/_delete_by_query", req.Path)
	assert.Contains(t, req.Body, `"filePath":"src/A.java"`)
	assert.Contains(t, req.Body, `"must_not":[{"term":{"generation":"gen2"}}]`)
}

func TestDeleteByFile_NoGenerationClause(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`{"deleted":5}`))
	})

	n, err := c.DeleteByFile(context.Background(), "idx", "src/A.java")

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NotContains(t, f.last().Body, "must_not")
}

const searchResponseBody = `{"hits":{"hits":[
 {"_score":1.9,"_source":{"filePath":"src/UserService.java","symbolKind":"class","symbolName":"com.acme.UserService","startLine":3,"endLine":40,"content":"public class UserService { void a() {} }"}},
 {"_score":1.5,"_source":{"filePath":"src/Other.java","symbolKind":"file","symbolName":"Other.java","startLine":1,"endLine":5,"content":"x"}}
]}}`

func TestVectorSearch_ParsesHitsAndTruncates(t *testing.T) {
	f, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(searchResponseBody))
	})
	s := NewVectorSearcher(c, embed.NewHashEmbedder(8))

	hits, errMsg := s.Search(context.Background(), "idx", "user service", 5, 12)

	assert.Empty(t, errMsg)
	require.Len(t, hits, 2)
	assert.Equal(t, "src/UserService.java", hits[0].FilePath)
	assert.Equal(t, "public class", hits[0].Snippet)
	assert.True(t, hits[0].Truncated)
	assert.False(t, hits[1].Truncated)
	assert.InDelta(t, 1.9, hits[0].Score, 1e-9)

	req := f.last()
	assert.Equal(t, "/idx/_search", req.Path)
	assert.Contains(t, req.Body, SimilarityScript)
	assert.Contains(t, req.Body, `"size":5`)
	assert.Contains(t, req.Body, `"match_all":{}`)
}

func TestVectorSearch_RetriesOnceThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	_, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(searchResponseBody))
	})
	s := NewVectorSearcher(c, embed.NewHashEmbedder(8))

	hits, errMsg := s.Search(context.Background(), "idx", "q", 5, 0)

	assert.Empty(t, errMsg)
	assert.Len(t, hits, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestVectorSearch_FailureReturnsErrorString(t *testing.T) {
	var calls atomic.Int32
	_, c := newFakeES(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	})
	s := NewVectorSearcher(c, embed.NewHashEmbedder(8))

	hits, errMsg := s.Search(context.Background(), "idx", "q", 5, 0)

	assert.Empty(t, hits)
	assert.Contains(t, errMsg, "status=500")
	assert.Equal(t, int32(2), calls.Load())
}

func TestIndexBody_SetsDims(t *testing.T) {
	body, err := IndexBody(1536)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"dims":1536`)
	assert.Contains(t, string(body), `"generation"`)
}
