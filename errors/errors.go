// Package errors provides the typed error taxonomy for s3kit operations.
//
// Every failure surfaced by the library is an *Error carrying a closed Kind,
// the HTTP status code when a response was received, and the S3 error code
// and message when the server supplied them. Callers switch on Kind (or use
// the Is* helpers) instead of matching error strings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the library's closed set of
// failure categories. The numeric HTTP status is authoritative for
// server-reported kinds; the textual S3 code is kept as detail only.
type Kind int

const (
	// KindSigning is a local validation failure raised before any network
	// call: invalid expiry, invalid part number, missing credentials.
	KindSigning Kind = iota

	// KindInvalidRequest covers 400 responses and malformed request inputs
	// such as an empty bucket name or an invalid object key.
	KindInvalidRequest

	// KindAccessDenied covers 403 responses.
	KindAccessDenied

	// KindNotFound covers 404 responses.
	KindNotFound

	// KindClient covers any other 4xx response.
	KindClient

	// KindServer covers 5xx responses, including transient throttling.
	KindServer

	// KindTransport covers connection-level failures (DNS, TLS, timeout)
	// surfaced unchanged from the HTTP transport.
	KindTransport
)

// String returns a stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindSigning:
		return "SigningError"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindAccessDenied:
		return "AccessDenied"
	case KindNotFound:
		return "NotFound"
	case KindClient:
		return "ClientError"
	case KindServer:
		return "ServerError"
	case KindTransport:
		return "TransportError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the error type returned by all s3kit operations.
type Error struct {
	// Op is the operation that failed (e.g. "putObject", "completeMultipartUpload").
	Op string

	// Bucket is the S3 bucket name, if applicable.
	Bucket string

	// Key is the S3 object key, if applicable.
	Key string

	// Kind is the failure category.
	Kind Kind

	// StatusCode is the HTTP status of the response, or 0 when the error
	// was raised before a response was received.
	StatusCode int

	// Code is the S3 error code string (e.g. "NoSuchKey"). May be empty
	// when the server omitted it or the body could not be parsed.
	Code string

	// Message is the human-readable description.
	Message string

	// RawBody holds the unparsed response body for diagnostics when the
	// error envelope could not be decoded.
	RawBody []byte

	// Err is the wrapped underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var where string
	switch {
	case e.Bucket != "" && e.Key != "":
		where = fmt.Sprintf(" %s/%s", e.Bucket, e.Key)
	case e.Bucket != "":
		where = " " + e.Bucket
	}

	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}

	switch {
	case e.Code != "" && e.StatusCode != 0:
		return fmt.Sprintf("s3.%s%s: %s (%d): %s", e.Op, where, e.Code, e.StatusCode, detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("s3.%s%s: HTTP %d: %s", e.Op, where, e.StatusCode, detail)
	default:
		return fmt.Sprintf("s3.%s%s: %s: %s", e.Op, where, e.Kind, detail)
	}
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to the error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to the error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithStatus records the HTTP status code of the failed response.
func (e *Error) WithStatus(status int) *Error {
	e.StatusCode = status
	return e
}

// WithCode records the S3 error code string.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithRawBody attaches the unparsed response body for diagnostics.
func (e *Error) WithRawBody(body []byte) *Error {
	e.RawBody = body
	return e
}

// New creates an Error with the given operation, kind, and message.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap creates an Error wrapping an underlying error.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind from an error. The second return is false when
// the error is not an *Error produced by this library.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsSigning reports whether the error is a local signing-time validation failure.
func IsSigning(err error) bool { return isKind(err, KindSigning) }

// IsInvalidRequest reports whether the error classifies as an invalid request.
func IsInvalidRequest(err error) bool { return isKind(err, KindInvalidRequest) }

// IsAccessDenied reports whether the error classifies as access denied.
func IsAccessDenied(err error) bool { return isKind(err, KindAccessDenied) }

// IsNotFound reports whether the error classifies as not found.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsServer reports whether the error classifies as a server-side failure.
func IsServer(err error) bool { return isKind(err, KindServer) }

// IsTransport reports whether the error is a connection-level failure.
func IsTransport(err error) bool { return isKind(err, KindTransport) }
