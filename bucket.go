package s3kit

import (
	"context"
	"encoding/xml"
	"net/http"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/validation"
	"github.com/tidemark-io/s3kit/internal/wire"
	"github.com/tidemark-io/s3kit/s3types"
)

const s3XMLNamespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// CreateBucket creates a bucket in the client's region. Regions other than
// us-east-1 require a LocationConstraint body, which is added automatically.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	const op = "createBucket"
	if err := validation.BucketName(bucket); err != nil {
		return err
	}

	var body []byte
	if c.cfg.Region != "us-east-1" {
		var err error
		body, err = xml.Marshal(wire.CreateBucketConfiguration{
			Xmlns:              s3XMLNamespace,
			LocationConstraint: c.cfg.Region,
		})
		if err != nil {
			return s3errors.Wrap(op, s3errors.KindSigning, err).WithBucket(bucket)
		}
	}

	_, err := c.do(ctx, op, request{method: http.MethodPut, bucket: bucket, body: body})
	return err
}

// DeleteBucket deletes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	const op = "deleteBucket"
	if err := validation.BucketName(bucket); err != nil {
		return err
	}

	_, err := c.do(ctx, op, request{method: http.MethodDelete, bucket: bucket})
	return err
}

// ListBuckets lists all buckets owned by the credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]s3types.Bucket, error) {
	const op = "listBuckets"

	resp, err := c.do(ctx, op, request{method: http.MethodGet})
	if err != nil {
		return nil, err
	}

	var listing wire.ListAllMyBucketsResult
	if err := xml.Unmarshal(resp.body, &listing); err != nil {
		return nil, s3errors.Wrap(op, s3errors.KindTransport, err).WithRawBody(resp.body)
	}

	buckets := make([]s3types.Bucket, 0, len(listing.Buckets))
	for _, entry := range listing.Buckets {
		buckets = append(buckets, s3types.Bucket{
			Name:         entry.Name,
			CreationDate: entry.CreationDate,
		})
	}
	return buckets, nil
}
