// Package s3types provides shared type definitions for the s3kit module.
package s3types

import (
	"log/slog"
	"net/http"
	"time"
)

// Credentials holds a set of AWS-style access credentials. The secret key
// is never logged by the library. Credentials are immutable once constructed
// and may be shared freely across concurrent signing calls.
type Credentials struct {
	// AccessKeyID is the public access key identifier.
	AccessKeyID string

	// SecretAccessKey is the signing secret.
	SecretAccessKey string

	// SessionToken is the optional STS session token.
	SessionToken string
}

// Valid reports whether both the access key and the secret are present.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ClientConfig holds the resolved configuration for a Client.
// It is populated through functional options.
type ClientConfig struct {
	// Region is the AWS region used in the credential scope.
	Region string

	// Endpoint is the base endpoint URL. Defaults to the AWS endpoint
	// for the configured region.
	Endpoint string

	// Credentials are the signing credentials.
	Credentials Credentials

	// ForcePathStyle forces path-style URLs instead of virtual-hosted style.
	ForcePathStyle bool

	// UnsignedPayload disables payload hashing; requests are signed with
	// the UNSIGNED-PAYLOAD sentinel instead.
	UnsignedPayload bool

	// MaxRetries bounds retry attempts for transport failures and 5xx
	// responses. Zero disables retries.
	MaxRetries int

	// Timeout applies to each individual HTTP request. Zero means no timeout.
	Timeout time.Duration

	// RateLimit caps outgoing requests per second. Zero means unlimited.
	RateLimit float64

	// HTTPClient overrides the client-owned HTTP connection pool.
	HTTPClient *http.Client

	// Logger receives retry and cleanup diagnostics. Defaults to a
	// discarding logger.
	Logger *slog.Logger

	// Clock supplies the signing timestamp. Injectable for deterministic
	// tests; defaults to time.Now.
	Clock func() time.Time
}

// Option configures a Client.
type Option func(*ClientConfig)

// UploadConfig holds per-upload settings.
type UploadConfig struct {
	// PartSize is the multipart part size in bytes.
	PartSize int64

	// Concurrency bounds the number of parts uploaded in parallel.
	Concurrency int

	// MultipartThreshold is the size above which Upload switches from a
	// single PUT to a multipart upload.
	MultipartThreshold int64

	// ContentType is the MIME type for the object. When empty it is
	// detected from the content.
	ContentType string

	// Metadata holds user metadata, stored as x-amz-meta-* headers.
	Metadata map[string]string

	// Progress, when set, is invoked with the byte count of each
	// completed transfer step.
	Progress ProgressFunc
}

// UploadOption configures a single upload operation.
type UploadOption func(*UploadConfig)

// ProgressFunc receives the number of bytes transferred by a completed
// step. During multipart uploads it may be invoked concurrently from
// several part-upload goroutines.
type ProgressFunc func(bytes int64)

// ListQuery holds the parameters for a ListObjects call.
type ListQuery struct {
	// Prefix limits results to keys beginning with the prefix.
	Prefix string

	// MaxKeys caps the number of keys returned per page. Zero uses the
	// server default of 1000.
	MaxKeys int

	// ContinuationToken resumes a truncated listing.
	ContinuationToken string
}

// Object describes one entry of a bucket listing.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	StorageClass string
}

// ListObjectsPage is one page of a ListObjectsV2 result.
type ListObjectsPage struct {
	Objects               []Object
	Prefix                string
	IsTruncated           bool
	NextContinuationToken string
}

// Bucket describes one entry of a ListBuckets result.
type Bucket struct {
	Name         string
	CreationDate time.Time
}

// PutResult describes a completed single PUT upload.
type PutResult struct {
	ETag      string
	VersionID string
}

// ObjectMeta holds the metadata of an object as reported by GET/HEAD.
type ObjectMeta struct {
	ContentType   string
	ContentLength int64
	ETag          string
	LastModified  time.Time
	VersionID     string

	// Metadata holds user metadata with the x-amz-meta- prefix stripped.
	Metadata map[string]string
}

// GetResult is the outcome of a GetObject call.
type GetResult struct {
	Body []byte
	ObjectMeta
}

// CopyResult is the outcome of a server-side CopyObject call.
type CopyResult struct {
	ETag         string
	LastModified time.Time
}

// DeleteResult is the outcome of a DeleteObject call.
type DeleteResult struct {
	DeleteMarker bool
	VersionID    string
}

// Part records one successfully uploaded multipart part. The ETag is kept
// exactly as returned by the server, quoting included, because the
// completion body must echo it verbatim.
type Part struct {
	PartNumber int32
	ETag       string
	Size       int64
}

// CompleteResult describes a completed multipart upload.
type CompleteResult struct {
	Location   string
	ETag       string
	Bucket     string
	Key        string
	PartsCount int
}

// UploadResult describes a finished high-level Upload, whether it went
// through a single PUT or a multipart session.
type UploadResult struct {
	Bucket    string
	Key       string
	ETag      string
	Location  string
	Size      int64
	Parts     int
	Multipart bool
}
