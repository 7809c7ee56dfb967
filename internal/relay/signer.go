package relay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReplayWindowExceeded is returned when the timestamp is too old or too far ahead
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails
	ErrInvalidSignature = errors.New("invalid signature")
)

const (
	HeaderSignature = "X-Relay-Signature"
	HeaderTimestamp = "X-Relay-Timestamp"
	HeaderRequestID = "X-Relay-Request-Id"

	// DefaultReplayWindow is how far a receiver should tolerate clock skew
	DefaultReplayWindow = 5 * time.Minute
)

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{payload}"
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", timestamp)))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign, rejecting stale timestamps
func Verify(secret, signature string, timestamp int64, payload []byte, window time.Duration) error {
	skew := time.Since(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > window {
		return ErrReplayWindowExceeded
	}

	expected := Sign(secret, timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}

	return nil
}
