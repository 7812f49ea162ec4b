package wire

import (
	"encoding/xml"
	"net/http"

	s3errors "github.com/tidemark-io/s3kit/errors"
)

// Classify maps an HTTP response to a typed outcome. Status codes below 300
// classify as success (nil). Anything else yields an *errors.Error whose
// kind is driven by the status code; the S3 <Error> body, when parsable,
// contributes the code and message as supplementary detail. A body that is
// not valid XML (empty, truncated, an HTML page from a proxy) degrades to a
// status-only classification with the raw body attached for diagnostics.
func Classify(op, bucket, key string, statusCode int, body []byte) error {
	if statusCode < 300 {
		return nil
	}

	var env ErrorResponse
	parsed := xml.Unmarshal(body, &env) == nil && (env.Code != "" || env.Message != "")

	message := env.Message
	if message == "" {
		message = http.StatusText(statusCode)
	}

	e := s3errors.New(op, kindForStatus(statusCode), message).
		WithBucket(bucket).
		WithKey(key).
		WithStatus(statusCode)
	if parsed {
		e = e.WithCode(env.Code)
	} else if len(body) > 0 {
		e = e.WithRawBody(body)
	}
	return e
}

// kindForStatus implements the status-code precedence rule: the numeric
// status is authoritative over the textual S3 code for classification.
func kindForStatus(status int) s3errors.Kind {
	switch {
	case status == http.StatusNotFound:
		return s3errors.KindNotFound
	case status == http.StatusForbidden:
		return s3errors.KindAccessDenied
	case status == http.StatusBadRequest:
		return s3errors.KindInvalidRequest
	case status >= 500:
		return s3errors.KindServer
	default:
		return s3errors.KindClient
	}
}
