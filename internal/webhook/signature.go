package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
)

// SignatureHeader carries the provider's HMAC over the callback URL and
// form parameters.
const SignatureHeader = "X-Provider-Signature"

// ComputeSignature builds the provider's canonical string (the full
// callback URL followed by every form parameter in sorted key order, key
// then value, no separators) and returns the base64 HMAC-SHA1 over it.
func ComputeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(url))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(params[k]))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks that an inbound callback was signed with the
// shared auth token. Fails closed: a missing token or header never
// verifies. The comparison is constant time.
func VerifySignature(authToken, url string, params map[string]string, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, url, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
