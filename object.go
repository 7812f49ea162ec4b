package s3kit

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/sigv4"
	"github.com/tidemark-io/s3kit/internal/validation"
	"github.com/tidemark-io/s3kit/internal/wire"
	"github.com/tidemark-io/s3kit/s3types"
)

const metadataHeaderPrefix = "x-amz-meta-"

// PutObject uploads data as a single object.
func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte, opts ...s3types.UploadOption) (*s3types.PutResult, error) {
	const op = "putObject"
	cfg := applyUploadOptions(opts)

	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}
	if err := validation.Metadata(cfg.Metadata); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPut,
		bucket: bucket,
		key:    key,
		header: objectHeaders(cfg.ContentType, cfg.Metadata),
		body:   data,
	})
	if err != nil {
		return nil, err
	}

	return &s3types.PutResult{
		ETag:      trimETag(resp.header.Get("ETag")),
		VersionID: resp.header.Get("x-amz-version-id"),
	}, nil
}

// GetObject downloads an object and its metadata.
func (c *Client) GetObject(ctx context.Context, bucket, key string) (*s3types.GetResult, error) {
	const op = "getObject"
	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, request{method: http.MethodGet, bucket: bucket, key: key})
	if err != nil {
		return nil, err
	}

	return &s3types.GetResult{
		Body:       resp.body,
		ObjectMeta: metaFromHeaders(resp.header, int64(len(resp.body))),
	}, nil
}

// HeadObject fetches object metadata without downloading the body.
func (c *Client) HeadObject(ctx context.Context, bucket, key string) (*s3types.ObjectMeta, error) {
	const op = "headObject"
	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, request{method: http.MethodHead, bucket: bucket, key: key})
	if err != nil {
		return nil, err
	}

	meta := metaFromHeaders(resp.header, 0)
	return &meta, nil
}

// DeleteObject deletes an object. Deleting a nonexistent key succeeds, per
// S3 semantics.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) (*s3types.DeleteResult, error) {
	const op = "deleteObject"
	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, request{method: http.MethodDelete, bucket: bucket, key: key})
	if err != nil {
		return nil, err
	}

	return &s3types.DeleteResult{
		DeleteMarker: resp.header.Get("x-amz-delete-marker") == "true",
		VersionID:    resp.header.Get("x-amz-version-id"),
	}, nil
}

// CopyObject copies srcBucket/srcKey to bucket/key server-side; the object
// bytes never pass through the client.
func (c *Client) CopyObject(ctx context.Context, srcBucket, srcKey, bucket, key string) (*s3types.CopyResult, error) {
	const op = "copyObject"
	if err := validateObject(srcBucket, srcKey); err != nil {
		return nil, err
	}
	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("x-amz-copy-source", "/"+srcBucket+sigv4.EncodePath("/"+srcKey))

	resp, err := c.do(ctx, op, request{
		method: http.MethodPut,
		bucket: bucket,
		key:    key,
		header: header,
	})
	if err != nil {
		return nil, err
	}

	var copied wire.CopyObjectResult
	if err := xml.Unmarshal(resp.body, &copied); err != nil || copied.ETag == "" {
		// S3 reports some copy failures inside a 200 response; the body is
		// then an Error envelope rather than a CopyObjectResult.
		return nil, wire.Classify(op, bucket, key, http.StatusInternalServerError, resp.body)
	}

	return &s3types.CopyResult{
		ETag:         trimETag(copied.ETag),
		LastModified: copied.LastModified,
	}, nil
}

// ListObjects lists one page of a bucket using ListObjectsV2. Pass the
// returned NextContinuationToken back in the query to fetch further pages.
func (c *Client) ListObjects(ctx context.Context, bucket string, q s3types.ListQuery) (*s3types.ListObjectsPage, error) {
	const op = "listObjects"
	if err := validation.BucketName(bucket); err != nil {
		return nil, err
	}

	query := url.Values{"list-type": []string{"2"}}
	if q.Prefix != "" {
		query.Set("prefix", q.Prefix)
	}
	if q.MaxKeys > 0 {
		query.Set("max-keys", strconv.Itoa(q.MaxKeys))
	}
	if q.ContinuationToken != "" {
		query.Set("continuation-token", q.ContinuationToken)
	}

	resp, err := c.do(ctx, op, request{method: http.MethodGet, bucket: bucket, query: query})
	if err != nil {
		return nil, err
	}

	var listing wire.ListBucketResult
	if err := xml.Unmarshal(resp.body, &listing); err != nil {
		return nil, s3errors.Wrap(op, s3errors.KindTransport, err).
			WithBucket(bucket).WithRawBody(resp.body)
	}

	page := &s3types.ListObjectsPage{
		Objects:               make([]s3types.Object, 0, len(listing.Contents)),
		Prefix:                listing.Prefix,
		IsTruncated:           listing.IsTruncated,
		NextContinuationToken: listing.NextContinuationToken,
	}
	for _, entry := range listing.Contents {
		page.Objects = append(page.Objects, s3types.Object{
			Key:          entry.Key,
			Size:         entry.Size,
			LastModified: entry.LastModified,
			ETag:         trimETag(entry.ETag),
			StorageClass: entry.StorageClass,
		})
	}
	return page, nil
}

func validateObject(bucket, key string) error {
	if err := validation.BucketName(bucket); err != nil {
		return err
	}
	return validation.ObjectKey(key)
}

func applyUploadOptions(opts []s3types.UploadOption) s3types.UploadConfig {
	var cfg s3types.UploadConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func objectHeaders(contentType string, metadata map[string]string) http.Header {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	for k, v := range metadata {
		header.Set(metadataHeaderPrefix+k, v)
	}
	return header
}

func metaFromHeaders(header http.Header, bodyLength int64) s3types.ObjectMeta {
	meta := s3types.ObjectMeta{
		ContentType:   header.Get("Content-Type"),
		ContentLength: bodyLength,
		ETag:          trimETag(header.Get("ETag")),
		VersionID:     header.Get("x-amz-version-id"),
	}
	if v := header.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.ContentLength = n
		}
	}
	if v := header.Get("Last-Modified"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			meta.LastModified = t
		}
	}
	for name, values := range header {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, metadataHeaderPrefix) && len(values) > 0 {
			if meta.Metadata == nil {
				meta.Metadata = make(map[string]string)
			}
			meta.Metadata[lower[len(metadataHeaderPrefix):]] = values[0]
		}
	}
	return meta
}

// trimETag strips the surrounding quotes S3 puts on ETag header values.
func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
