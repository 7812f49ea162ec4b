package s3kit

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/validation"
	"github.com/tidemark-io/s3kit/internal/wire"
	"github.com/tidemark-io/s3kit/s3types"
)

// S3 multipart limits, checked client-side to fail fast. The server remains
// authoritative; its rejections propagate as server errors.
const (
	// MinPartSize is the minimum size of every part except the last.
	MinPartSize int64 = 5 * 1024 * 1024

	// MaxPartSize is the maximum size of any single part.
	MaxPartSize int64 = 5 * 1024 * 1024 * 1024

	// MaxParts is the maximum number of parts in one upload.
	MaxParts = 10000
)

// sessionState tracks the lifecycle of a multipart upload. Terminal states
// admit no further transitions.
type sessionState int

const (
	stateOpen sessionState = iota
	statePartsInFlight
	stateCompleted
	stateAborted
)

func (s sessionState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case statePartsInFlight:
		return "parts-in-flight"
	case stateCompleted:
		return "completed"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// MultipartUpload is one in-progress server-side multipart upload. Parts
// may be uploaded in any order and concurrently from multiple goroutines;
// the part map is synchronized internally. Complete must not run
// concurrently with in-flight UploadPart calls: the caller waits for all
// parts before completing, because completion needs every part's ETag.
//
// The session never aborts itself on error. Callers abort explicitly in
// their cleanup path to avoid leaking server-side storage.
type MultipartUpload struct {
	client   *Client
	bucket   string
	key      string
	uploadID string

	mu    sync.Mutex
	parts map[int32]s3types.Part
	state sessionState
}

// CreateMultipartUpload opens a multipart upload session and returns its
// handle. Content type and metadata set here apply to the assembled object.
func (c *Client) CreateMultipartUpload(ctx context.Context, bucket, key string, opts ...s3types.UploadOption) (*MultipartUpload, error) {
	const op = "createMultipartUpload"
	cfg := applyUploadOptions(opts)

	if err := validateObject(bucket, key); err != nil {
		return nil, err
	}
	if err := validation.Metadata(cfg.Metadata); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		bucket: bucket,
		key:    key,
		query:  url.Values{"uploads": []string{""}},
		header: objectHeaders(cfg.ContentType, cfg.Metadata),
	})
	if err != nil {
		return nil, err
	}

	var initiated wire.InitiateMultipartUploadResult
	if err := xml.Unmarshal(resp.body, &initiated); err != nil || initiated.UploadID == "" {
		return nil, s3errors.New(op, s3errors.KindServer, "response carried no UploadId").
			WithBucket(bucket).WithKey(key).WithStatus(resp.status).WithRawBody(resp.body)
	}

	return &MultipartUpload{
		client:   c,
		bucket:   bucket,
		key:      key,
		uploadID: initiated.UploadID,
		parts:    make(map[int32]s3types.Part),
		state:    stateOpen,
	}, nil
}

// UploadID returns the server-assigned upload identifier.
func (u *MultipartUpload) UploadID() string { return u.uploadID }

// Bucket returns the destination bucket.
func (u *MultipartUpload) Bucket() string { return u.bucket }

// Key returns the destination object key.
func (u *MultipartUpload) Key() string { return u.key }

// UploadPart uploads one part. partNumber must be in [1, 10000]; that is
// checked before any network call. A successful upload records the part's
// ETag and size, overwriting any earlier record for the same number —
// re-uploading a part is permitted. A failed upload leaves the session
// state untouched, so the same part number can simply be retried.
func (u *MultipartUpload) UploadPart(ctx context.Context, partNumber int32, data []byte) (s3types.Part, error) {
	const op = "uploadPart"

	if partNumber < 1 || partNumber > MaxParts {
		return s3types.Part{}, s3errors.New(op, s3errors.KindSigning,
			fmt.Sprintf("part number must be between 1 and %d, got %d", MaxParts, partNumber)).
			WithBucket(u.bucket).WithKey(u.key).WithCode("InvalidPartNumber")
	}
	if err := u.checkActive(op); err != nil {
		return s3types.Part{}, err
	}

	resp, err := u.client.do(ctx, op, request{
		method: http.MethodPut,
		bucket: u.bucket,
		key:    u.key,
		query: url.Values{
			"partNumber": []string{fmt.Sprintf("%d", partNumber)},
			"uploadId":   []string{u.uploadID},
		},
		body: data,
	})
	if err != nil {
		return s3types.Part{}, err
	}

	part := s3types.Part{
		PartNumber: partNumber,
		// Kept verbatim, quotes included: the completion body must echo it.
		ETag: resp.header.Get("ETag"),
		Size: int64(len(data)),
	}

	u.mu.Lock()
	if u.state == stateOpen || u.state == statePartsInFlight {
		u.parts[partNumber] = part
		u.state = statePartsInFlight
	}
	u.mu.Unlock()

	return part, nil
}

// Complete assembles the object from the recorded parts. Parts are listed
// in ascending part-number order regardless of upload order. At least one
// part must have been recorded, and every part except the highest-numbered
// one must meet the 5 MiB minimum — an advisory client-side check; the
// server's verdict remains authoritative and propagates unchanged.
//
// On failure the session stays in its current state: Complete may be
// retried, or the caller may Abort.
func (u *MultipartUpload) Complete(ctx context.Context) (*s3types.CompleteResult, error) {
	const op = "completeMultipartUpload"

	u.mu.Lock()
	state := u.state
	recorded := make([]s3types.Part, 0, len(u.parts))
	for _, part := range u.parts {
		recorded = append(recorded, part)
	}
	u.mu.Unlock()

	if state == stateCompleted || state == stateAborted {
		return nil, s3errors.New(op, s3errors.KindSigning,
			"session is already "+state.String()).
			WithBucket(u.bucket).WithKey(u.key)
	}
	if len(recorded) == 0 {
		return nil, s3errors.New(op, s3errors.KindSigning, "no parts to complete").
			WithBucket(u.bucket).WithKey(u.key).WithCode("IncompleteUpload")
	}

	sort.Slice(recorded, func(i, j int) bool {
		return recorded[i].PartNumber < recorded[j].PartNumber
	})
	for _, part := range recorded[:len(recorded)-1] {
		if part.Size < MinPartSize {
			return nil, s3errors.New(op, s3errors.KindSigning,
				fmt.Sprintf("part %d is %d bytes, below the %d byte minimum",
					part.PartNumber, part.Size, MinPartSize)).
				WithBucket(u.bucket).WithKey(u.key).WithCode("IncompleteUpload")
		}
	}

	completion := wire.CompleteMultipartUpload{
		Parts: make([]wire.CompletedPart, len(recorded)),
	}
	for i, part := range recorded {
		completion.Parts[i] = wire.CompletedPart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		}
	}
	body, err := xml.Marshal(completion)
	if err != nil {
		return nil, s3errors.Wrap(op, s3errors.KindSigning, err).
			WithBucket(u.bucket).WithKey(u.key)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/xml")

	resp, err := u.client.do(ctx, op, request{
		method: http.MethodPost,
		bucket: u.bucket,
		key:    u.key,
		query:  url.Values{"uploadId": []string{u.uploadID}},
		header: header,
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	var completed wire.CompleteMultipartUploadResult
	if err := xml.Unmarshal(resp.body, &completed); err != nil {
		return nil, s3errors.Wrap(op, s3errors.KindTransport, err).
			WithBucket(u.bucket).WithKey(u.key).WithRawBody(resp.body)
	}

	u.mu.Lock()
	u.state = stateCompleted
	u.mu.Unlock()

	return &s3types.CompleteResult{
		Location:   completed.Location,
		ETag:       trimETag(completed.ETag),
		Bucket:     u.bucket,
		Key:        u.key,
		PartsCount: len(recorded),
	}, nil
}

// Abort abandons the upload and releases server-side storage for the parts
// uploaded so far. Abort is idempotent: on a session that is already
// completed or aborted it is a no-op success, which makes it always safe to
// call from a failure-handling path.
func (u *MultipartUpload) Abort(ctx context.Context) error {
	const op = "abortMultipartUpload"

	u.mu.Lock()
	if u.state == stateCompleted || u.state == stateAborted {
		u.mu.Unlock()
		return nil
	}
	u.mu.Unlock()

	_, err := u.client.do(ctx, op, request{
		method: http.MethodDelete,
		bucket: u.bucket,
		key:    u.key,
		query:  url.Values{"uploadId": []string{u.uploadID}},
	})
	// A vanished upload is already aborted as far as the caller cares.
	if err != nil && !s3errors.IsNotFound(err) {
		return err
	}

	u.mu.Lock()
	u.state = stateAborted
	u.mu.Unlock()
	return nil
}

// checkActive rejects operations on a session that has reached a terminal
// state.
func (u *MultipartUpload) checkActive(op string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state == stateCompleted || u.state == stateAborted {
		return s3errors.New(op, s3errors.KindSigning,
			"session is already "+u.state.String()).
			WithBucket(u.bucket).WithKey(u.key)
	}
	return nil
}

// partCount returns the number of recorded parts.
func (u *MultipartUpload) partCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.parts)
}
