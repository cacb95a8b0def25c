package core

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const provisionalPrefix = "pending:"

// NewCorrelationToken returns the client message id threaded through a send
// request so the confirmed message can be matched to its optimistic copy.
func NewCorrelationToken() string {
	return uuid.NewString()
}

// ProvisionalID derives the local id of an optimistic message from its token.
func ProvisionalID(token string) string {
	return provisionalPrefix + token
}

// IsProvisionalID reports whether id was produced by ProvisionalID.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

// TokenFromProvisionalID extracts the correlation token from a provisional id.
func TokenFromProvisionalID(id string) (string, bool) {
	if !IsProvisionalID(id) {
		return "", false
	}
	return strings.TrimPrefix(id, provisionalPrefix), true
}

// NewRequestID creates a time-sortable id used to tag outgoing requests in logs.
func NewRequestID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	return strings.ToLower(id.String()), nil
}

// ShortID returns the display prefix of a message id.
func ShortID(id string, length int) string {
	base := strings.TrimPrefix(id, provisionalPrefix)
	if length <= 0 {
		return ""
	}
	if length > len(base) {
		length = len(base)
	}
	return base[:length]
}
