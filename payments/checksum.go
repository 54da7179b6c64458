package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// EventChecksum recomputes an event checksum: the values named by
// signature.properties (paths relative to "data"), then the timestamp, then the
// events secret, concatenated and SHA-256 hashed. ok is false when the payload
// does not carry everything the checksum needs.
func EventChecksum(payload []byte, secret string) (checksum string, ok bool) {
	props := gjson.GetBytes(payload, "signature.properties")
	if !props.IsArray() || len(props.Array()) == 0 {
		return "", false
	}

	var b strings.Builder
	for _, prop := range props.Array() {
		value := gjson.GetBytes(payload, "data."+prop.String())
		if !value.Exists() {
			return "", false
		}
		b.WriteString(value.String())
	}

	timestamp := gjson.GetBytes(payload, "timestamp")
	if !timestamp.Exists() {
		return "", false
	}
	b.WriteString(timestamp.String())
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), true
}

func VerifyEventChecksum(payload []byte, secret string) bool {
	if secret == "" {
		return false
	}
	expected, ok := EventChecksum(payload, secret)
	if !ok {
		return false
	}
	received := strings.ToLower(gjson.GetBytes(payload, "signature.checksum").String())
	return hmac.Equal([]byte(expected), []byte(received))
}

// IntegritySignature signs a checkout so the hosted widget cannot be replayed
// with a different amount or currency.
func IntegritySignature(reference string, amountInCents int64, currency, secret string) string {
	sum := sha256.Sum256([]byte(reference + strconv.FormatInt(amountInCents, 10) + currency + secret))
	return hex.EncodeToString(sum[:])
}
