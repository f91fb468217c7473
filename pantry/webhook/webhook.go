// Package webhook verifies signed incoming webhooks and delivers outgoing
// ones with retries.
//
// Incoming:
//
//	body, err := webhook.ReadBody(r, webhook.MaxBodySize)
//	...
//	if !webhook.VerifySignature(body, r.Header.Get(webhook.SanitySignatureHeader), secret) {
//	    httputil.JSONErrorSimple(w, http.StatusUnauthorized, "Invalid signature")
//	    return
//	}
//
// Outgoing:
//
//	sender := webhook.NewSender(webhook.SenderConfig{Timeout: 10 * time.Second})
//	result, err := sender.Send(ctx, hookURL, payload)
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// SanitySignatureHeader carries the hex HMAC-SHA256 of the request body.
const SanitySignatureHeader = "sanity-webhook-signature"

// MaxBodySize is the default limit for incoming webhook bodies (1 MiB).
const MaxBodySize = 1 << 20

var (
	ErrMissingSignature    = errors.New("webhook: missing signature header")
	ErrInvalidSignature    = errors.New("webhook: invalid signature")
	ErrRequestBodyTooLarge = errors.New("webhook: request body too large")
	ErrDeliveryFailed      = errors.New("webhook: delivery failed")
)

// ComputeHMAC returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func ComputeHMAC(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether claimedSignatureHex is the lowercase hex
// HMAC-SHA256 of payload under sharedSecret. For claims of the right length
// the comparison takes the same time wherever the first mismatch falls.
// A claim of any other length is rejected at once; the digest length is
// public, so this reveals nothing about the secret.
func VerifySignature(payload []byte, claimedSignatureHex, sharedSecret string) bool {
	expected := ComputeHMAC(payload, sharedSecret)
	if len(claimedSignatureHex) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(claimedSignatureHex), []byte(expected)) == 1
}

// ReadBody reads the whole request body, failing with ErrRequestBodyTooLarge
// past maxSize bytes. maxSize <= 0 means MaxBodySize.
func ReadBody(r *http.Request, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxBodySize
	}
	if r.ContentLength > maxSize {
		return nil, ErrRequestBodyTooLarge
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, ErrRequestBodyTooLarge
		}
		return nil, fmt.Errorf("webhook: failed to read body: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, ErrRequestBodyTooLarge
	}
	return body, nil
}
