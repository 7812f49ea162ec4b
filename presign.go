package s3kit

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	s3errors "github.com/tidemark-io/s3kit/errors"
	"github.com/tidemark-io/s3kit/internal/sigv4"
)

// PresignURL produces a presigned URL granting time-limited access to a
// single operation on an object, without further authentication. The
// signing material is embedded in query parameters; no secret appears in
// the URL. expires must be greater than zero and at most 7 days.
//
// extra carries caller-supplied query parameters (for example
// response-content-disposition); they are folded into the signature.
func (c *Client) PresignURL(method, bucket, key string, expires time.Duration, extra url.Values) (string, error) {
	const op = "presignURL"
	if err := validateObject(bucket, key); err != nil {
		return "", err
	}

	u := c.buildURL(bucket, key)
	if len(extra) > 0 {
		u.RawQuery = sigv4.EncodeQuery(extra)
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return "", s3errors.Wrap(op, s3errors.KindSigning, err).
			WithBucket(bucket).WithKey(key)
	}

	signed, err := c.signer.PresignHTTP(req, c.cfg.Credentials, expires, c.now())
	if err != nil {
		e := s3errors.Wrap(op, s3errors.KindSigning, err).
			WithBucket(bucket).WithKey(key)
		if errors.Is(err, sigv4.ErrInvalidExpires) {
			e = e.WithCode("InvalidExpiration")
		}
		return "", e
	}
	return signed, nil
}
