package utils

import (
	"math/rand"
	"strings"
	"time"
)

const referenceCodeLength = 8
const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns n characters drawn from upper-case letters and digits.
func RandomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

// NewReference builds a payment reference such as SUB-20250101120000-7K2QX9AB.
// Uniqueness is finally enforced by the unique index on the stored reference.
func NewReference(prefix string) string {
	parts := []string{
		strings.ToUpper(prefix),
		time.Now().UTC().Format("20060102150405"),
		RandomCode(referenceCodeLength),
	}
	return strings.Join(parts, "-")
}
