package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidSignature is returned when a proof was not signed by the processor.
var ErrInvalidSignature = errors.New("payment signature is invalid")

// Signer computes and checks checkout signatures: hex(HMAC-SHA256(orderId|paymentId)).
type Signer struct {
	secret []byte
}

// NewSigner builds a signer for the shared webhook secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the signature the processor attaches to a successful checkout.
func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time.
func (s *Signer) Verify(orderID, paymentID, signature string) error {
	expected, err := hex.DecodeString(s.Sign(orderID, paymentID))
	if err != nil {
		return err
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || !hmac.Equal(expected, given) {
		return ErrInvalidSignature
	}
	return nil
}
