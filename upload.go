package s3kit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/pool"
	"github.com/tidemark-io/s3kit/internal/validation"
	"github.com/tidemark-io/s3kit/s3types"
)

// Transfer defaults, matching the values popularized by s3transfer.
const (
	// DefaultMultipartThreshold is the object size above which Upload
	// switches from a single PUT to a multipart upload.
	DefaultMultipartThreshold int64 = 8 * 1024 * 1024

	// DefaultPartSize is the multipart part size before limit adjustment.
	DefaultPartSize int64 = 8 * 1024 * 1024

	// DefaultConcurrency bounds parallel part uploads.
	DefaultConcurrency = 10
)

const (
	sniffLen           = 512
	defaultContentType = "application/octet-stream"
)

// Upload stores the contents of reader under bucket/key. Objects at or below
// the multipart threshold go up as a single PUT; larger objects are split
// into parts and uploaded through a multipart session with bounded
// concurrency. Parts are read from the reader on demand, so memory use is
// bounded by concurrency × part size, not by the object size.
//
// size is the total number of bytes the reader will deliver; it drives the
// single-PUT/multipart decision and the part-size adjustment. When the
// content type is not set explicitly it is sniffed from the leading bytes,
// with the key's extension as a fallback.
//
// If any part fails, the server-side upload is aborted before the original
// error is returned, so abandoned parts do not accumulate storage charges.
func (c *Client) Upload(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts ...s3types.UploadOption) (*s3types.UploadResult, error) {
	const op = "upload"
	cfg := applyUploadOptions(opts)
	if cfg.MultipartThreshold <= 0 {
		cfg.MultipartThreshold = DefaultMultipartThreshold
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}
	if err := validation.Metadata(cfg.Metadata); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, s3errors.New(op, s3errors.KindSigning, "upload size must be known and non-negative").
			WithBucket(bucket).WithKey(key)
	}

	if size <= cfg.MultipartThreshold {
		return c.uploadSingle(ctx, bucket, key, reader, size, cfg)
	}
	return c.uploadMultipart(ctx, bucket, key, reader, size, cfg)
}

func (c *Client) uploadSingle(ctx context.Context, bucket, key string, reader io.Reader, size int64, cfg s3types.UploadConfig) (*s3types.UploadResult, error) {
	const op = "upload"

	data, err := io.ReadAll(io.LimitReader(reader, size))
	if err != nil {
		return nil, s3errors.Wrap(op, s3errors.KindTransport, err).
			WithBucket(bucket).WithKey(key)
	}
	if int64(len(data)) != size {
		return nil, s3errors.New(op, s3errors.KindTransport,
			fmt.Sprintf("reader ended after %d of %d bytes", len(data), size)).
			WithBucket(bucket).WithKey(key)
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = detectContentType(key, data)
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPut,
		bucket: bucket,
		key:    key,
		header: objectHeaders(contentType, cfg.Metadata),
		body:   data,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Progress != nil {
		cfg.Progress(int64(len(data)))
	}

	return &s3types.UploadResult{
		Bucket: bucket,
		Key:    key,
		ETag:   trimETag(resp.header.Get("ETag")),
		Size:   int64(len(data)),
		Parts:  1,
	}, nil
}

func (c *Client) uploadMultipart(ctx context.Context, bucket, key string, reader io.Reader, size int64, cfg s3types.UploadConfig) (*s3types.UploadResult, error) {
	const op = "upload"
	partSize := adjustPartSize(cfg.PartSize, size)

	br := bufio.NewReaderSize(io.LimitReader(reader, size), sniffLen)
	contentType := cfg.ContentType
	if contentType == "" {
		head, _ := br.Peek(sniffLen)
		contentType = detectContentType(key, head)
	}

	mpOpts := []s3types.UploadOption{WithContentType(contentType)}
	if len(cfg.Metadata) > 0 {
		mpOpts = append(mpOpts, WithMetadata(cfg.Metadata))
	}
	session, err := c.CreateMultipartUpload(ctx, bucket, key, mpOpts...)
	if err != nil {
		return nil, err
	}

	buffers := pool.NewPartBuffers(partSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	var total atomic.Int64
	var readErr error
	var read int64
	partNumber := int32(0)

	// Reads are sequential; uploads run concurrently behind the group's
	// limit. g.Go blocks while the group is full, so at most
	// concurrency+1 part buffers are live at once.
	for gctx.Err() == nil {
		buf := buffers.Get()
		n, rerr := io.ReadFull(br, buf)
		read += int64(n)
		if n > 0 {
			partNumber++
			num, data := partNumber, buf[:n]
			g.Go(func() error {
				defer buffers.Put(buf)
				part, perr := session.UploadPart(gctx, num, data)
				if perr != nil {
					return perr
				}
				total.Add(part.Size)
				if cfg.Progress != nil {
					cfg.Progress(part.Size)
				}
				return nil
			})
		} else {
			buffers.Put(buf)
		}
		if rerr != nil {
			if rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
				readErr = s3errors.Wrap(op, s3errors.KindTransport, rerr).
					WithBucket(bucket).WithKey(key)
			}
			break
		}
	}

	waitErr := g.Wait()
	if readErr == nil && waitErr == nil && read != size {
		readErr = s3errors.New(op, s3errors.KindTransport,
			fmt.Sprintf("reader ended after %d of %d bytes", read, size)).
			WithBucket(bucket).WithKey(key)
	}
	if waitErr != nil || readErr != nil {
		if readErr == nil {
			readErr = waitErr
		}
		c.cleanupAbort(ctx, session)
		return nil, readErr
	}

	done, err := session.Complete(ctx)
	if err != nil {
		c.cleanupAbort(ctx, session)
		return nil, err
	}

	return &s3types.UploadResult{
		Bucket:    bucket,
		Key:       key,
		ETag:      done.ETag,
		Location:  done.Location,
		Size:      total.Load(),
		Parts:     done.PartsCount,
		Multipart: true,
	}, nil
}

// cleanupAbort abandons a multipart upload after a failure. The abort's own
// error is logged and dropped so the original failure propagates unmasked.
// The abort runs even when the surrounding context is already cancelled.
func (c *Client) cleanupAbort(ctx context.Context, u *MultipartUpload) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := u.Abort(ctx); err != nil {
		c.log.Warn("abort of failed multipart upload did not complete",
			"bucket", u.bucket, "key", u.key, "uploadID", u.uploadID, "error", err)
	}
}

// adjustPartSize grows the part size until the part count fits the 10000
// part cap, then clamps the result to S3's per-part size limits.
func adjustPartSize(partSize, totalSize int64) int64 {
	for partSize < MaxPartSize && (totalSize+partSize-1)/partSize > MaxParts {
		partSize *= 2
	}
	switch {
	case partSize > MaxPartSize:
		return MaxPartSize
	case partSize < MinPartSize:
		return MinPartSize
	default:
		return partSize
	}
}

// detectContentType sniffs the MIME type from the leading content bytes,
// falling back to the key's extension when sniffing is inconclusive.
func detectContentType(key string, head []byte) string {
	if len(head) > 0 {
		if mt := mimetype.Detect(head); !mt.Is(defaultContentType) {
			return mt.String()
		}
	}
	if byExt := mime.TypeByExtension(path.Ext(key)); byExt != "" {
		return byExt
	}
	return defaultContentType
}
