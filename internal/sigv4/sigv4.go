// Package sigv4 implements AWS Signature Version 4 request signing for S3
// and S3-compatible services.
//
// The package is pure computation: signing reads the injected timestamp and
// never touches the wall clock or the network, so identical inputs always
// produce identical output. Both header-based signing (Authorization header)
// and query-based signing (presigned URLs) are supported.
package sigv4

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidemark-io/s3kit/s3types"
)

// Signing-time validation failures. Callers map these to their own error
// taxonomy before surfacing them.
var (
	// ErrMissingCredentials is returned when the access key or secret is absent.
	ErrMissingCredentials = errors.New("sigv4: missing credentials")

	// ErrInvalidExpires is returned when a presign expiry is non-positive or
	// exceeds the 7-day ceiling.
	ErrInvalidExpires = errors.New("sigv4: expiry must be greater than 0s and at most 604800s")
)

// Signer produces SigV4 authentication material for HTTP requests.
// A Signer is safe for concurrent use.
type Signer struct {
	region  string
	service string
	cache   keyCache
}

// New creates a Signer for the given region, signing for the "s3" service.
func New(region string) *Signer {
	return &Signer{region: region, service: ServiceS3}
}

// Scope returns the credential scope (date/region/service/aws4_request)
// binding a signature to a time window and service.
func (s *Signer) Scope(t time.Time) string {
	return strings.Join([]string{
		t.UTC().Format(ShortTimeFormat),
		s.region,
		s.service,
		scopeTerminal,
	}, "/")
}

// SignHTTP signs req in place for header-based authentication. It sets
// x-amz-date, x-amz-content-sha256, x-amz-security-token (when a session
// token is present), and the Authorization header, and normalizes the URL's
// raw query to the canonical encoding so the wire form matches the signed
// form. payloadHash is the hex SHA-256 of the body, or UnsignedPayload;
// empty defaults to the hash of an empty body.
func (s *Signer) SignHTTP(req *http.Request, creds s3types.Credentials, payloadHash string, now time.Time) error {
	if !creds.Valid() {
		return ErrMissingCredentials
	}
	if payloadHash == "" {
		payloadHash = EmptyStringSHA256
	}

	t := now.UTC()
	amzDate := t.Format(TimeFormat)
	date := t.Format(ShortTimeFormat)

	req.Header.Set(AmzDateKey, amzDate)
	req.Header.Set(AmzContentSHAKey, payloadHash)
	if creds.SessionToken != "" {
		req.Header.Set(AmzSecurityTokenKey, creds.SessionToken)
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	canonicalHeaders, signedHeaders := CanonicalHeaders(req.Header, host)
	canonicalQuery := EncodeQuery(req.URL.Query())
	canonicalURI := req.URL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonical := BuildCanonicalRequest(
		req.Method, canonicalURI, canonicalQuery,
		canonicalHeaders, signedHeaders, payloadHash,
	)

	scope := s.Scope(t)
	stringToSign := BuildStringToSign(amzDate, scope, canonical)
	key := s.cache.signingKey(creds.AccessKeyID, creds.SecretAccessKey, date, s.region, s.service)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	req.Header.Set(AuthorizationHeader, buildAuthorizationHeader(
		creds.AccessKeyID+"/"+scope, signedHeaders, signature,
	))
	req.URL.RawQuery = canonicalQuery
	return nil
}

// PresignHTTP produces a presigned URL for req. The signing material goes
// into query parameters, the payload hash is always UNSIGNED-PAYLOAD, and
// only the host header is signed. The request itself is not modified.
func (s *Signer) PresignHTTP(req *http.Request, creds s3types.Credentials, expires time.Duration, now time.Time) (string, error) {
	if !creds.Valid() {
		return "", ErrMissingCredentials
	}
	if expires <= 0 || expires > MaxPresignExpiry {
		return "", ErrInvalidExpires
	}

	t := now.UTC()
	scope := s.Scope(t)

	query := req.URL.Query()
	query.Set(AmzAlgorithmKey, Algorithm)
	query.Set(AmzCredentialKey, creds.AccessKeyID+"/"+scope)
	query.Set(AmzDateKey, t.Format(TimeFormat))
	query.Set(AmzExpiresKey, strconv.FormatInt(int64(expires/time.Second), 10))
	query.Set(AmzSignedHeadersKey, "host")
	if creds.SessionToken != "" {
		query.Set(AmzSecurityTokenKey, creds.SessionToken)
	}

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	canonicalQuery := EncodeQuery(query)
	canonicalURI := req.URL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	canonical := BuildCanonicalRequest(
		req.Method, canonicalURI, canonicalQuery,
		"host:"+stripExcessSpaces(host)+"\n", "host", UnsignedPayload,
	)

	stringToSign := BuildStringToSign(t.Format(TimeFormat), scope, canonical)
	key := s.cache.signingKey(
		creds.AccessKeyID, creds.SecretAccessKey,
		t.Format(ShortTimeFormat), s.region, s.service,
	)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	signed := *req.URL
	signed.RawQuery = canonicalQuery + "&" + AmzSignatureKey + "=" + signature
	return signed.String(), nil
}

func buildAuthorizationHeader(credential, signedHeaders, signature string) string {
	var b strings.Builder
	b.Grow(len(Algorithm) + len(credential) + len(signedHeaders) + len(signature) + 48)
	b.WriteString(Algorithm)
	b.WriteString(" Credential=")
	b.WriteString(credential)
	b.WriteString(", SignedHeaders=")
	b.WriteString(signedHeaders)
	b.WriteString(", Signature=")
	b.WriteString(signature)
	return b.String()
}
