package s3kit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/sigv4"
	"github.com/tidemark-io/s3kit/s3types"
)

// captureServer records the single request a test issues and serves a
// canned response.
type captureServer struct {
	mu      sync.Mutex
	last    *recordedRequest
	status  int
	headers map[string]string
	body    string
}

func newCaptureServer(t *testing.T, status int, headers map[string]string, body string) (*captureServer, *Client) {
	t.Helper()
	c := &captureServer{status: status, headers: headers, body: body}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return c, newTestClient(t, srv.URL)
}

func (c *captureServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.last = &recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.Query(),
		header: r.Header.Clone(),
		body:   body,
	}
	c.mu.Unlock()

	for k, v := range c.headers {
		w.Header().Set(k, v)
	}
	if c.status != 0 {
		w.WriteHeader(c.status)
	}
	if c.body != "" {
		_, _ = fmt.Fprint(w, c.body)
	}
}

func (c *captureServer) request(t *testing.T) recordedRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotNil(t, c.last, "server never saw a request")
	return *c.last
}

func TestPutObject(t *testing.T) {
	srv, client := newCaptureServer(t, 200, map[string]string{
		"ETag":             `"abc123"`,
		"x-amz-version-id": "v1",
	}, "")

	result, err := client.PutObject(context.Background(), "bucket", "docs/readme.md",
		[]byte("# hi"),
		WithContentType("text/markdown"),
		WithMetadata(map[string]string{"owner": "alice"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "abc123", result.ETag)
	assert.Equal(t, "v1", result.VersionID)

	got := srv.request(t)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/bucket/docs/readme.md", got.path)
	assert.Equal(t, "text/markdown", got.header.Get("Content-Type"))
	assert.Equal(t, "alice", got.header.Get("x-amz-meta-owner"))
	assert.Equal(t, []byte("# hi"), got.body)
	assert.Equal(t, sigv4.SHA256Hex([]byte("# hi")), got.header.Get("X-Amz-Content-Sha256"))
}

func TestGetObject(t *testing.T) {
	srv, client := newCaptureServer(t, 200, map[string]string{
		"Content-Type":     "text/plain",
		"ETag":             `"etag-1"`,
		"Last-Modified":    "Fri, 24 May 2013 00:00:00 GMT",
		"x-amz-meta-owner": "alice",
	}, "payload")

	result, err := client.GetObject(context.Background(), "bucket", "file.txt")
	require.NoError(t, err)

	assert.Equal(t, []byte("payload"), result.Body)
	assert.Equal(t, "text/plain", result.ContentType)
	assert.Equal(t, "etag-1", result.ETag)
	assert.Equal(t, int64(7), result.ContentLength)
	assert.Equal(t, time.Date(2013, time.May, 24, 0, 0, 0, 0, time.UTC), result.LastModified.UTC())
	assert.Equal(t, map[string]string{"owner": "alice"}, result.Metadata)

	got := srv.request(t)
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/bucket/file.txt", got.path)
}

func TestGetObject_NotFound(t *testing.T) {
	_, client := newCaptureServer(t, 404, nil,
		`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)

	_, err := client.GetObject(context.Background(), "bucket", "missing.txt")
	require.Error(t, err)
	assert.True(t, s3errors.IsNotFound(err))

	var e *s3errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "NoSuchKey", e.Code)
	assert.Equal(t, "bucket", e.Bucket)
	assert.Equal(t, "missing.txt", e.Key)
}

func TestHeadObject(t *testing.T) {
	srv, client := newCaptureServer(t, 200, map[string]string{
		"Content-Type":   "application/pdf",
		"Content-Length": "42",
		"ETag":           `"h-etag"`,
	}, "")

	meta, err := client.HeadObject(context.Background(), "bucket", "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", meta.ContentType)
	assert.Equal(t, int64(42), meta.ContentLength)
	assert.Equal(t, "h-etag", meta.ETag)
	assert.Equal(t, http.MethodHead, srv.request(t).method)
}

func TestDeleteObject(t *testing.T) {
	srv, client := newCaptureServer(t, 204, map[string]string{
		"x-amz-delete-marker": "true",
		"x-amz-version-id":    "v2",
	}, "")

	result, err := client.DeleteObject(context.Background(), "bucket", "old.txt")
	require.NoError(t, err)

	assert.True(t, result.DeleteMarker)
	assert.Equal(t, "v2", result.VersionID)
	assert.Equal(t, http.MethodDelete, srv.request(t).method)
}

func TestListObjects(t *testing.T) {
	srv, client := newCaptureServer(t, 200, nil, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>bucket</Name>
  <Prefix>photos/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>100</MaxKeys>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>token-abc</NextContinuationToken>
  <Contents>
    <Key>photos/a.png</Key>
    <LastModified>2013-05-24T00:00:00.000Z</LastModified>
    <ETag>"etag-a"</ETag>
    <Size>1024</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>photos/b.png</Key>
    <LastModified>2013-05-24T01:00:00.000Z</LastModified>
    <ETag>"etag-b"</ETag>
    <Size>2048</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`)

	page, err := client.ListObjects(context.Background(), "bucket", s3types.ListQuery{
		Prefix:            "photos/",
		MaxKeys:           100,
		ContinuationToken: "prev-token",
	})
	require.NoError(t, err)

	require.Len(t, page.Objects, 2)
	assert.Equal(t, "photos/a.png", page.Objects[0].Key)
	assert.Equal(t, int64(1024), page.Objects[0].Size)
	assert.Equal(t, "etag-a", page.Objects[0].ETag)
	assert.True(t, page.IsTruncated)
	assert.Equal(t, "token-abc", page.NextContinuationToken)

	got := srv.request(t)
	assert.Equal(t, "2", got.query.Get("list-type"))
	assert.Equal(t, "photos/", got.query.Get("prefix"))
	assert.Equal(t, "100", got.query.Get("max-keys"))
	assert.Equal(t, "prev-token", got.query.Get("continuation-token"))
}

func TestCopyObject(t *testing.T) {
	srv, client := newCaptureServer(t, 200, nil,
		`<CopyObjectResult><ETag>"copied-etag"</ETag><LastModified>2013-05-24T00:00:00.000Z</LastModified></CopyObjectResult>`)

	result, err := client.CopyObject(context.Background(), "src-bucket", "dir/a b.txt", "bucket", "copy.txt")
	require.NoError(t, err)

	assert.Equal(t, "copied-etag", result.ETag)

	got := srv.request(t)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/bucket/copy.txt", got.path)
	assert.Equal(t, "/src-bucket/dir/a%20b.txt", got.header.Get("x-amz-copy-source"))
}

func TestCopyObject_ErrorInsideOKResponse(t *testing.T) {
	_, client := newCaptureServer(t, 200, nil,
		`<Error><Code>InternalError</Code><Message>please retry</Message></Error>`)

	_, err := client.CopyObject(context.Background(), "src-bucket", "a.txt", "bucket", "b.txt")
	require.Error(t, err)
	assert.True(t, s3errors.IsServer(err))

	var e *s3errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "InternalError", e.Code)
}

func TestObjectOps_ValidateBeforeNetwork(t *testing.T) {
	srv, client := newCaptureServer(t, 200, nil, "")
	ctx := context.Background()

	_, err := client.PutObject(ctx, "", "key", nil)
	assert.True(t, s3errors.IsInvalidRequest(err))

	_, err = client.GetObject(ctx, "bucket", "")
	assert.True(t, s3errors.IsInvalidRequest(err))

	_, err = client.PutObject(ctx, "bucket", "key", nil,
		WithMetadata(map[string]string{"aws:reserved": "v"}))
	assert.True(t, s3errors.IsInvalidRequest(err))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Nil(t, srv.last, "validation failures must not reach the network")
}

func TestQueryEncoding_RoundTripsThroughURL(t *testing.T) {
	srv, client := newCaptureServer(t, 200, nil, `<ListBucketResult><Name>b</Name></ListBucketResult>`)

	_, err := client.ListObjects(context.Background(), "bucket", s3types.ListQuery{
		Prefix: "summer photos/röd",
	})
	require.NoError(t, err)

	got := srv.request(t)
	assert.Equal(t, "summer photos/röd", got.query.Get("prefix"))
}
