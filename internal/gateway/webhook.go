package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Domenick1991/medbooking/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-Gateway-Signature"

// Callback event types sent by the gateway.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventSessionExpired   = "session.expired"
)

type Callback struct {
	Event         string `json:"event"`
	SessionRef    string `json:"session_ref"`
	TransactionID string `json:"transaction_id"`
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature accepts the bare hex digest or a "sha256=" prefixed one.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" || signature == "" {
		return domain.ErrBadSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return domain.ErrBadSignature
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(got, want) {
		return domain.ErrBadSignature
	}
	return nil
}
