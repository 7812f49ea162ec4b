package sigv4

import "time"

// Signature Version 4 constants.
const (
	// Algorithm is the SigV4 signing algorithm identifier.
	Algorithm = "AWS4-HMAC-SHA256"

	// ServiceS3 is the service name used in the credential scope.
	ServiceS3 = "s3"

	// scopeTerminal is the fixed terminal component of the credential scope.
	scopeTerminal = "aws4_request"

	// TimeFormat is the X-Amz-Date timestamp layout (YYYYMMDDTHHMMSSZ).
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat is the credential-scope date layout (YYYYMMDD).
	ShortTimeFormat = "20060102"

	// UnsignedPayload is the sentinel payload hash used when payload
	// signing is disabled and for all presigned URLs.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// EmptyStringSHA256 is the hex SHA-256 of an empty payload.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// MaxPresignExpiry is the AWS-documented ceiling for presigned URL
	// lifetimes (7 days).
	MaxPresignExpiry = 7 * 24 * time.Hour
)

// Header and query parameter names carrying signing material.
const (
	AuthorizationHeader = "Authorization"

	AmzDateKey          = "X-Amz-Date"
	AmzContentSHAKey    = "X-Amz-Content-Sha256"
	AmzSecurityTokenKey = "X-Amz-Security-Token"

	AmzAlgorithmKey     = "X-Amz-Algorithm"
	AmzCredentialKey    = "X-Amz-Credential"
	AmzExpiresKey       = "X-Amz-Expires"
	AmzSignedHeadersKey = "X-Amz-SignedHeaders"
	AmzSignatureKey     = "X-Amz-Signature"
)
