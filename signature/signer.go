// Package signature provides HMAC-SHA256 webhook signing and verification.
//
// The signature covers the exact bytes sent as the delivery body (the JSON
// serialization of the event). Receivers recompute the digest over the raw
// request body and compare it against the X-Webhook-Signature header.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/heraldhq/herald/event"
)

// Signer computes HMAC-SHA256 signatures for webhook payloads.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign generates the HMAC-SHA256 signature for the given payload,
// hex-encoded.
func (s *Signer) Sign(payload []byte, secret string) string {
	return Sign(payload, secret)
}

// Sign generates the HMAC-SHA256 signature for the given payload using
// secret as the key. Returns the hex-encoded digest.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignEvent marshals the event to its canonical JSON body and signs those
// bytes. The result matches the X-Webhook-Signature header a delivery of
// evt would carry.
func SignEvent(evt *event.Event, secret string) (string, error) {
	body, err := evt.Body()
	if err != nil {
		return "", err
	}
	return Sign(body, secret), nil
}
