package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"sync"
)

// hmacSHA256 computes HMAC-SHA256 of data with the given key.
func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// DeriveKey derives the SigV4 signing key via the 4-step HMAC-SHA256 chain:
//
//	kDate    = HMAC("AWS4" + secret, date)
//	kRegion  = HMAC(kDate, region)
//	kService = HMAC(kRegion, service)
//	kSigning = HMAC(kService, "aws4_request")
//
// The result is a transient value; it is never persisted.
func DeriveKey(secret, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(scopeTerminal))
}

// keyCache memoizes derived signing keys per (access key, date, region,
// service) tuple. Keys rotate naturally with the scope date, so entries for
// other dates are discarded on write.
type keyCache struct {
	mu      sync.Mutex
	date    string
	entries map[string][]byte
}

func cacheKey(accessKeyID, date, region, service string) string {
	return strings.Join([]string{accessKeyID, date, region, service}, "/")
}

func (c *keyCache) signingKey(accessKeyID, secret, date, region, service string) []byte {
	ck := cacheKey(accessKeyID, date, region, service)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.date == date {
		if key, ok := c.entries[ck]; ok {
			return key
		}
	} else {
		c.entries = nil
	}

	key := DeriveKey(secret, date, region, service)
	if c.entries == nil {
		c.entries = make(map[string][]byte)
		c.date = date
	}
	c.entries[ck] = key
	return key
}
