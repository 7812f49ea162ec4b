// Package validation provides client-side input validation for bucket
// names, object keys, and user metadata. Failures here are raised before
// any network call is attempted.
package validation

import (
	"strings"
	"unicode"

	s3errors "github.com/tidemark-io/s3kit/errors"
)

const (
	maxKeyLength           = 1024
	maxMetadataKeyLength   = 128
	maxMetadataValueLength = 2048
)

// BucketName validates that a bucket name is DNS-compliant per the S3 rules:
// 3-63 characters of lowercase letters, digits, dots and hyphens, not
// shaped like an IP address, no adjacent dots or hyphens, and not starting
// or ending with a dot or hyphen.
func BucketName(bucket string) error {
	fail := func(msg string) error {
		return s3errors.New("validateBucketName", s3errors.KindInvalidRequest, msg).
			WithBucket(bucket)
	}

	if bucket == "" {
		return fail("bucket name cannot be empty")
	}
	if len(bucket) < 3 || len(bucket) > 63 {
		return fail("bucket name must be between 3 and 63 characters long")
	}
	for i := 0; i < len(bucket); i++ {
		c := bucket[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '.' && c != '-' {
			return fail("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	if first := bucket[0]; first == '-' || first == '.' {
		return fail("bucket name cannot start with a hyphen or dot")
	}
	if last := bucket[len(bucket)-1]; last == '-' || last == '.' {
		return fail("bucket name cannot end with a hyphen or dot")
	}
	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") ||
		strings.Contains(bucket, ".-") || strings.Contains(bucket, "-.") {
		return fail("bucket name cannot contain adjacent dots or hyphens")
	}
	if looksLikeIPAddress(bucket) {
		return fail("bucket name cannot be formatted as an IP address")
	}
	return nil
}

// ObjectKey validates an object key: non-empty, at most 1024 bytes, and
// free of control characters. S3 keys may otherwise contain any UTF-8.
func ObjectKey(key string) error {
	fail := func(msg string) error {
		return s3errors.New("validateObjectKey", s3errors.KindInvalidRequest, msg).
			WithKey(key)
	}

	if key == "" {
		return fail("object key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fail("object key cannot exceed 1024 bytes")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fail("object key cannot contain control characters")
		}
	}
	return nil
}

// Metadata validates user metadata keys and values. Keys become
// x-amz-meta-* header suffixes and must be printable ASCII without
// reserved prefixes; values must be printable and at most 2 KiB.
func Metadata(metadata map[string]string) error {
	fail := func(msg string) error {
		return s3errors.New("validateMetadata", s3errors.KindInvalidRequest, msg)
	}

	for key, value := range metadata {
		if key == "" {
			return fail("metadata key cannot be empty")
		}
		if len(key) > maxMetadataKeyLength {
			return fail("metadata key cannot exceed 128 characters")
		}
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "aws:") || strings.HasPrefix(lower, "x-amz-") {
			return fail("metadata key cannot use a reserved prefix")
		}
		for i := 0; i < len(key); i++ {
			if key[i] <= 32 || key[i] > 126 {
				return fail("metadata key can only contain printable ASCII characters")
			}
		}
		if len(value) > maxMetadataValueLength {
			return fail("metadata value cannot exceed 2048 characters")
		}
		for _, r := range value {
			if unicode.IsControl(r) && r != '\t' {
				return fail("metadata value cannot contain control characters")
			}
		}
	}
	return nil
}

func looksLikeIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		n := 0
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return false
			}
			n = n*10 + int(part[i]-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}
