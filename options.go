package s3kit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tidemark-io/s3kit/s3types"
)

// WithCredentials sets the access key and signing secret.
func WithCredentials(accessKeyID, secretAccessKey string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Credentials.AccessKeyID = accessKeyID
		c.Credentials.SecretAccessKey = secretAccessKey
	}
}

// WithSessionToken sets the STS session token, signed as
// x-amz-security-token on every request.
func WithSessionToken(token string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Credentials.SessionToken = token
	}
}

// WithRegion sets the region used in the credential scope.
// Defaults to us-east-1.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom endpoint URL for S3-compatible services
// (MinIO, R2, and the like) or local testing.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithPathStyle forces path-style URLs instead of virtual-hosted style.
// Required for services that do not support bucket subdomains.
func WithPathStyle(force bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = force
	}
}

// WithUnsignedPayload disables payload hashing; request bodies are signed
// with the UNSIGNED-PAYLOAD sentinel. Useful for large streaming bodies
// where a second pass over the data is too expensive.
func WithUnsignedPayload(unsigned bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.UnsignedPayload = unsigned
	}
}

// WithMaxRetries bounds retry attempts for transport failures and 5xx
// responses. Default is 3; zero disables retries.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if maxRetries >= 0 {
			c.MaxRetries = maxRetries
		}
	}
}

// WithTimeout sets the per-request timeout on the client-owned HTTP pool.
// Default is no timeout.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithRateLimit caps outgoing requests per second across the whole client.
// Zero (the default) means unlimited.
func WithRateLimit(requestsPerSecond float64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.RateLimit = requestsPerSecond
	}
}

// WithHTTPClient supplies a caller-owned HTTP client. The library will not
// close it; connection lifecycle stays with the caller.
func WithHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.HTTPClient = client
	}
}

// WithLogger sets the structured logger for retry and cleanup diagnostics.
// The default logger discards everything. Credentials are never logged.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithClock injects the timestamp source used for signing. Tests use this
// to produce byte-identical signatures.
func WithClock(clock func() time.Time) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Clock = clock
	}
}

// WithContentType sets the MIME type for an upload.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets user metadata for an upload, stored as x-amz-meta-*
// headers.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithPartSize sets the multipart part size for an upload. Values are
// adjusted to S3's limits before use.
func WithPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithUploadConcurrency bounds the number of parts uploaded in parallel.
func WithUploadConcurrency(concurrency int) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithMultipartThreshold sets the size above which Upload switches from a
// single PUT to a multipart upload.
func WithMultipartThreshold(threshold int64) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if threshold > 0 {
			c.MultipartThreshold = threshold
		}
	}
}

// WithProgress registers a callback invoked with the byte count of each
// completed transfer step.
func WithProgress(fn s3types.ProgressFunc) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		c.Progress = fn
	}
}
