package s3

import (
	"strings"
)

// normalizeKey strips a leading slash; S3 keys must not start with one.
func normalizeKey(key string) string {
	return strings.TrimPrefix(key, "/")
}

// isMultipartETag reports whether an ETag came from a multipart upload.
// Multipart ETags have the form "<md5>-<parts>".
func isMultipartETag(etag string) bool {
	etag = strings.Trim(etag, "\"")
	parts := strings.Split(etag, "-")
	return len(parts) == 2
}

// isValidBucketName applies the basic S3 bucket naming rules.
func isValidBucketName(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}

	if !isAlphanumeric(bucket[0]) || !isAlphanumeric(bucket[len(bucket)-1]) {
		return false
	}

	for _, ch := range bucket {
		if !isAlphanumeric(byte(ch)) && ch != '-' && ch != '.' {
			return false
		}
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return false
	}

	return !isIPAddress(bucket)
}

func isAlphanumeric(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if len(part) == 0 || len(part) > 3 {
			return false
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return false
			}
		}
	}

	return true
}
