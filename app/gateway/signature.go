package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSecret    = errors.New("signature secret is not configured")
	ErrMissingSignature = errors.New("signature is empty")
)

// VerifySignature compares the claimed signature against an HMAC-SHA256 of
// message keyed by secret. The comparison is constant time. A mismatch is a
// plain false; errors are reserved for structurally invalid input.
func VerifySignature(message []byte, signature, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	if signature == "" {
		return false, ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	expected := mac.Sum(nil)

	claimed, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}

	return hmac.Equal(claimed, expected), nil
}

// PaymentCorrelation builds the canonical string the gateway signs for
// client-side payment verification.
func PaymentCorrelation(gatewayOrderID, gatewayPaymentID string) []byte {
	return []byte(gatewayOrderID + "|" + gatewayPaymentID)
}

// SignMessage produces the hex HMAC-SHA256 the gateway would attach; used by
// tests and the webhook mock tooling.
func SignMessage(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
