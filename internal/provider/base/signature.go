package base

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// HMACHex returns the lowercase hex HMAC of msg under key.
func HMACHex(h func() hash.Hash, key string, msg ...[]byte) string {
	mac := hmac.New(h, []byte(key))
	for _, m := range msg {
		mac.Write(m)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// SHA256Hex returns the lowercase hex SHA-256 of the concatenated parts.
func SHA256Hex(parts ...[]byte) string {
	s := sha256.New()
	for _, p := range parts {
		s.Write(p)
	}
	return hex.EncodeToString(s.Sum(nil))
}

// EqualHex compares two hex digests in constant time, ignoring case and
// surrounding whitespace. An empty candidate never matches.
func EqualHex(expected, got string) bool {
	got = strings.ToLower(strings.TrimSpace(got))
	if got == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(got))
}
