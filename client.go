// Package s3kit is a client library for Amazon S3 and S3-compatible object
// stores. It implements AWS Signature Version 4 request signing and
// multipart upload orchestration directly, without the AWS SDK.
package s3kit

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/sigv4"
	"github.com/tidemark-io/s3kit/internal/wire"
	"github.com/tidemark-io/s3kit/s3types"
)

// Client is an S3 client handle. It owns an HTTP connection pool whose
// lifecycle is bound to the client's own: Close releases pooled
// connections. A Client is safe for concurrent use.
type Client struct {
	cfg         s3types.ClientConfig
	endpoint    *url.URL
	virtualHost bool

	httpClient *http.Client
	ownsHTTP   bool

	signer  *sigv4.Signer
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Client with the provided options. Credentials and a region
// are required; everything else has working defaults.
//
// Example:
//
//	client, err := s3kit.New(
//	    s3kit.WithCredentials("AKIA...", "secret"),
//	    s3kit.WithRegion("eu-west-1"),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	cfg := s3types.ClientConfig{
		Region:     "us-east-1",
		MaxRetries: 3,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.Credentials.Valid() {
		return nil, s3errors.New("new", s3errors.KindSigning, "access key and secret key are required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://s3." + cfg.Region + ".amazonaws.com"
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, s3errors.New("new", s3errors.KindSigning, "endpoint must be a valid http(s) URL")
	}

	c := &Client{
		cfg:      cfg,
		endpoint: u,
		// Virtual-hosted addressing only works when the endpoint is a
		// bare service host like s3.<region>.amazonaws.com.
		virtualHost: strings.HasPrefix(u.Host, "s3."),
		signer:      sigv4.New(cfg.Region),
		log:         cfg.Logger,
		now:         cfg.Clock,
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.now == nil {
		c.now = time.Now
	}
	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
	} else {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
		c.ownsHTTP = true
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// Region returns the region the client signs for.
func (c *Client) Region() string {
	return c.cfg.Region
}

// Close releases the client's pooled connections. Clients constructed with
// a caller-supplied HTTP client leave that client untouched.
func (c *Client) Close() error {
	if c.ownsHTTP {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// request describes one S3 REST call before signing. Values are raw and
// unencoded; all percent-encoding happens exactly once during signing and
// URL construction.
type request struct {
	method string
	bucket string
	key    string
	query  url.Values
	header http.Header
	body   []byte
}

// response is the raw outcome of an executed request after the status has
// been classified as success.
type response struct {
	status int
	header http.Header
	body   []byte
}

// buildURL constructs the endpoint URL for a bucket/key pair, choosing
// virtual-hosted style for DNS-compatible buckets on service endpoints and
// path style otherwise. The encoded form is pinned via RawPath so the bytes
// signed are the bytes sent.
func (c *Client) buildURL(bucket, key string) *url.URL {
	u := *c.endpoint
	if bucket == "" {
		u.Path, u.RawPath = "/", ""
		return &u
	}

	var p string
	if !c.cfg.ForcePathStyle && c.virtualHost && dnsCompatibleBucket(bucket) {
		u.Host = bucket + "." + u.Host
		p = "/" + key
	} else {
		p = "/" + bucket
		if key != "" {
			p += "/" + key
		}
	}
	u.Path = p
	if enc := sigv4.EncodePath(p); enc != p {
		u.RawPath = enc
	} else {
		u.RawPath = ""
	}
	return &u
}

// dnsCompatibleBucket reports whether a bucket name can be used as a
// subdomain label under a TLS wildcard certificate: dots are excluded even
// though S3 allows them in bucket names.
func dnsCompatibleBucket(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}
	for i := 0; i < len(bucket); i++ {
		c := bucket[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return bucket[0] != '-' && bucket[len(bucket)-1] != '-'
}

// payloadHash returns the value for x-amz-content-sha256: the hex SHA-256
// of the body, or the unsigned-payload sentinel when payload signing is
// disabled.
func (c *Client) payloadHash(body []byte) string {
	if c.cfg.UnsignedPayload {
		return sigv4.UnsignedPayload
	}
	return sigv4.SHA256Hex(body)
}

// do executes one signed S3 request: build URL, sign, send, classify.
// Transport failures and 5xx responses are retried with exponential backoff
// up to MaxRetries; other failures are permanent. Each attempt is signed
// fresh so the timestamp matches the moment of sending.
func (c *Client) do(ctx context.Context, op string, r request) (*response, error) {
	u := c.buildURL(r.bucket, r.key)
	if len(r.query) > 0 {
		u.RawQuery = sigv4.EncodeQuery(r.query)
	}
	hash := c.payloadHash(r.body)

	var result *response
	attempt := 0

	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(s3errors.Wrap(op, s3errors.KindTransport, err).
					WithBucket(r.bucket).WithKey(r.key))
			}
		}

		req, err := http.NewRequestWithContext(ctx, r.method, u.String(), bytes.NewReader(r.body))
		if err != nil {
			return backoff.Permanent(s3errors.Wrap(op, s3errors.KindSigning, err).
				WithBucket(r.bucket).WithKey(r.key))
		}
		for name, values := range r.header {
			req.Header[name] = values
		}

		if err := c.signer.SignHTTP(req, c.cfg.Credentials, hash, c.now()); err != nil {
			return backoff.Permanent(s3errors.Wrap(op, s3errors.KindSigning, err).
				WithBucket(r.bucket).WithKey(r.key))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return s3errors.Wrap(op, s3errors.KindTransport, err).
				WithBucket(r.bucket).WithKey(r.key)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return s3errors.Wrap(op, s3errors.KindTransport, err).
				WithBucket(r.bucket).WithKey(r.key)
		}

		if cerr := wire.Classify(op, r.bucket, r.key, resp.StatusCode, body); cerr != nil {
			if resp.StatusCode >= 500 {
				return cerr
			}
			return backoff.Permanent(cerr)
		}

		result = &response{status: resp.StatusCode, header: resp.Header, body: body}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.cfg.MaxRetries)), ctx,
	))
	if err != nil {
		// Cancellation surfaces from the retry loop as a bare context
		// error; fold it into the taxonomy like any transport failure.
		if _, ok := s3errors.KindOf(err); !ok {
			err = s3errors.Wrap(op, s3errors.KindTransport, err).
				WithBucket(r.bucket).WithKey(r.key)
		}
		if attempt > 1 {
			c.log.Debug("request failed after retries",
				"op", op, "bucket", r.bucket, "key", r.key, "attempts", attempt)
		}
		return nil, err
	}
	return result, nil
}
