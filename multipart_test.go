package s3kit

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/wire"
)

func TestMultipart_LifecycleOutOfOrderParts(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)
	assert.Equal(t, "upload-123", session.UploadID())

	// Part 2 goes up before part 1; the completion body must still list
	// them in ascending part-number order. Part 1 needs the 5 MiB minimum,
	// part 2 is the highest-numbered part and may be smaller.
	part2, err := session.UploadPart(ctx, 2, []byte("tail"))
	require.NoError(t, err)
	assert.Equal(t, `"etag-2"`, part2.ETag)

	part1, err := session.UploadPart(ctx, 1, bytes.Repeat([]byte("a"), int(MinPartSize)))
	require.NoError(t, err)
	assert.Equal(t, `"etag-1"`, part1.ETag)

	result, err := session.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "final-etag", result.ETag)
	assert.Equal(t, 2, result.PartsCount)

	var completion wire.CompleteMultipartUpload
	require.NoError(t, xml.Unmarshal(fake.snapshot().completeBody, &completion))
	require.Len(t, completion.Parts, 2)
	assert.Equal(t, int32(1), completion.Parts[0].PartNumber)
	assert.Equal(t, `"etag-1"`, completion.Parts[0].ETag)
	assert.Equal(t, int32(2), completion.Parts[1].PartNumber)
	assert.Equal(t, `"etag-2"`, completion.Parts[1].ETag)
}

func TestUploadPart_InvalidPartNumber(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)

	for _, n := range []int32{0, -1, 10001} {
		_, err := session.UploadPart(ctx, n, []byte("data"))
		require.Error(t, err, "part %d", n)
		assert.True(t, s3errors.IsSigning(err), "part %d", n)

		var e *s3errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "InvalidPartNumber", e.Code)
	}

	// Bounds are checked before any network call.
	assert.Equal(t, 0, fake.snapshot().partCalls)
}

func TestUploadPart_Concurrent(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)

	const parts = 10
	var wg sync.WaitGroup
	errs := make([]error, parts)
	for i := 0; i < parts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = session.UploadPart(ctx, int32(i+1), []byte(fmt.Sprintf("part-%d", i+1)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "part %d", i+1)
	}
	assert.Equal(t, parts, session.partCount())
	assert.Equal(t, parts, fake.snapshot().partCalls)
}

func TestUploadPart_ReuploadOverwrites(t *testing.T) {
	_, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)

	_, err = session.UploadPart(ctx, 1, []byte("first attempt"))
	require.NoError(t, err)
	_, err = session.UploadPart(ctx, 1, []byte("second attempt"))
	require.NoError(t, err)

	assert.Equal(t, 1, session.partCount())
}

func TestComplete_NoParts(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)

	_, err = session.Complete(ctx)
	require.Error(t, err)
	assert.True(t, s3errors.IsSigning(err))

	var e *s3errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "IncompleteUpload", e.Code)
	assert.Nil(t, fake.snapshot().completeBody)
}

func TestComplete_AdvisoryMinimumPartSize(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)

	// Both parts are tiny; part 1 is below the minimum and is not the
	// highest-numbered part, so the client fails fast.
	_, err = session.UploadPart(ctx, 1, []byte("small"))
	require.NoError(t, err)
	_, err = session.UploadPart(ctx, 2, []byte("small"))
	require.NoError(t, err)

	_, err = session.Complete(ctx)
	require.Error(t, err)
	assert.True(t, s3errors.IsSigning(err))
	assert.Nil(t, fake.snapshot().completeBody)
}

func TestComplete_FailureLeavesSessionRetryable(t *testing.T) {
	fake, client := newFakeS3(t)
	fake.failComplete = 1
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)
	_, err = session.UploadPart(ctx, 1, []byte("only part"))
	require.NoError(t, err)

	_, err = session.Complete(ctx)
	require.Error(t, err)
	assert.True(t, s3errors.IsServer(err))

	// The server rejection propagated; the session is still completable.
	result, err := session.Complete(ctx)
	require.NoError(t, err)
	assert.Equal(t, "final-etag", result.ETag)
}

func TestAbort_Idempotent(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)
	_, err = session.UploadPart(ctx, 1, []byte("part"))
	require.NoError(t, err)

	require.NoError(t, session.Abort(ctx))
	require.NoError(t, session.Abort(ctx))

	// Only the first abort reached the server.
	assert.Equal(t, 1, fake.snapshot().abortCalls)
}

func TestAbort_AfterCompleteIsNoOp(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)
	_, err = session.UploadPart(ctx, 1, []byte("only part"))
	require.NoError(t, err)
	_, err = session.Complete(ctx)
	require.NoError(t, err)

	require.NoError(t, session.Abort(ctx))
	assert.Equal(t, 0, fake.snapshot().abortCalls)
}

func TestUploadPart_AfterAbortRejected(t *testing.T) {
	_, client := newFakeS3(t)
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)
	require.NoError(t, session.Abort(ctx))

	_, err = session.UploadPart(ctx, 1, []byte("late"))
	require.Error(t, err)
	assert.True(t, s3errors.IsSigning(err))

	_, err = session.Complete(ctx)
	require.Error(t, err)
	assert.True(t, s3errors.IsSigning(err))
}

func TestUploadPart_FailureLeavesStateUntouched(t *testing.T) {
	fake, client := newFakeS3(t)
	fake.failParts = 1
	ctx := context.Background()

	session, err := client.CreateMultipartUpload(ctx, "bucket", "key")
	require.NoError(t, err)

	_, err = session.UploadPart(ctx, 1, []byte("doomed"))
	require.Error(t, err)
	assert.True(t, s3errors.IsInvalidRequest(err))
	assert.Equal(t, 0, session.partCount())

	// The same part number can simply be retried.
	_, err = session.UploadPart(ctx, 1, []byte("retried"))
	require.NoError(t, err)
	assert.Equal(t, 1, session.partCount())
}

func TestCreateMultipartUpload_SendsContentTypeAndMetadata(t *testing.T) {
	fake, client := newFakeS3(t)
	ctx := context.Background()

	_, err := client.CreateMultipartUpload(ctx, "bucket", "key",
		WithContentType("application/zstd"),
		WithMetadata(map[string]string{"origin": "backup"}),
	)
	require.NoError(t, err)

	fake.mu.Lock()
	created := fake.requests[0]
	fake.mu.Unlock()

	assert.True(t, created.query.Has("uploads"))
	assert.Equal(t, "application/zstd", created.header.Get("Content-Type"))
	assert.Equal(t, "backup", created.header.Get("x-amz-meta-origin"))
}
