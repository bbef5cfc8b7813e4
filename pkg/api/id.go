package api

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	callIDPrefix = "call_"
)

var callIDPattern = regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)

// NewRequestID generates a fresh UUIDv4 string for CallRequest
// correlation. Request IDs are never reused; the remote side keys
// in-flight work on them.
func NewRequestID() string {
	return uuid.NewString()
}

// ValidateRequestID checks whether the given string is a well-formed
// UUID (any variant accepted by uuid.Parse).
func ValidateRequestID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewCallID generates a new call ledger record ID with the "call_"
// prefix followed by 24 cryptographically random alphanumeric characters.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(idLength)
}

// ValidateCallID checks whether the given string is a valid ledger
// record ID (matches "call_" + 24 alphanumeric characters).
func ValidateCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
