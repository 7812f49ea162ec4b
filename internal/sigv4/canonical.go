package sigv4

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// ignoredHeaders lists headers excluded from signing. Everything else that
// is present on the request gets signed.
var ignoredHeaders = map[string]struct{}{
	"authorization":     {},
	"user-agent":        {},
	"x-amzn-trace-id":   {},
	"expect":            {},
	"transfer-encoding": {},
}

// uriEncode percent-encodes s using the strict AWS rule: only unreserved
// characters (letters, digits, '-', '.', '_', '~') pass through, everything
// else becomes %XX with uppercase hex. The input is raw UTF-8; encoding
// happens exactly once, so callers must not pre-encode.
func uriEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

// EncodePath percent-encodes a URL path for S3, encoding each segment
// independently and preserving the '/' separators.
func EncodePath(path string) string {
	if path == "" {
		return "/"
	}
	return uriEncode(path, false)
}

// EncodeQuery renders url.Values as a canonical query string: parameters
// sorted by byte value of key then value, both strictly percent-encoded,
// joined with '&'. A key with an empty value renders as "key=".
func EncodeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		ek := uriEncode(k, true)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(uriEncode(v, true))
		}
	}
	return b.String()
}

// CanonicalHeaders lower-cases, trims, and sorts the signable headers and
// returns the canonical header block ("name:value\n" per header) together
// with the ';'-joined signed-headers list. The host header is always
// included with the supplied value.
func CanonicalHeaders(header http.Header, host string) (canonical, signedList string) {
	signed := map[string]string{"host": stripExcessSpaces(host)}

	for name, values := range header {
		lower := strings.ToLower(name)
		if _, skip := ignoredHeaders[lower]; skip || lower == "host" {
			continue
		}
		cleaned := make([]string, len(values))
		for i, v := range values {
			cleaned[i] = stripExcessSpaces(strings.TrimSpace(v))
		}
		signed[lower] = strings.Join(cleaned, ",")
	}

	names := make([]string, 0, len(signed))
	for name := range signed {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(signed[name])
		b.WriteByte('\n')
	}
	return b.String(), strings.Join(names, ";")
}

// BuildCanonicalRequest assembles the canonical request string:
// METHOD\nURI\nQUERY\nHEADERS\nSIGNED_HEADERS\nPAYLOAD_HASH.
// Identical inputs always yield an identical string.
func BuildCanonicalRequest(method, uri, query, canonicalHeaders, signedHeaders, payloadHash string) string {
	return strings.Join([]string{
		method,
		uri,
		query,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
}

// BuildStringToSign assembles the string to sign:
// ALGORITHM\nTIMESTAMP\nSCOPE\nHEX(SHA256(CANONICAL_REQUEST)).
func BuildStringToSign(amzDate, scope, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{
		Algorithm,
		amzDate,
		scope,
		hex.EncodeToString(sum[:]),
	}, "\n")
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// stripExcessSpaces collapses runs of spaces to a single space and trims
// leading and trailing spaces.
func stripExcessSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return strings.TrimSpace(s)
	}
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
