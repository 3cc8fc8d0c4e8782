// Package esign integrates the external e-signature providers: creating
// hosted signing sessions and ingesting their completion webhooks.
package esign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrBadSignature rejects a webhook whose HMAC does not match; checked
	// before any lookup and producing no side effects.
	ErrBadSignature = errors.New("webhook signature mismatch")
)

// Completion is a provider's parsed completion event.
type Completion struct {
	RequestID   string
	Status      string
	DocumentRef string
}

// SessionRequest carries what a provider needs to host a signing session.
type SessionRequest struct {
	ClaimID      string
	SignerName   string
	SignerEmail  string
	AirlineName  string
	FlightNumber string
}

// Session is the provider's handle for a hosted signing flow.
type Session struct {
	RequestID string
	SignURL   string
}

// Provider adapts one external e-signature vendor to the shared webhook
// pipeline. The two implementations differ only in wire details: header
// names, payload shapes and endpoints.
type Provider interface {
	Name() string
	// VerifySignature authenticates the exact raw request body against the
	// signature header using the shared webhook secret.
	VerifySignature(rawBody []byte, signatureHeader string) bool
	// ParseCompletion extracts the request id, reported status and document
	// reference from a webhook body.
	ParseCompletion(rawBody []byte) (*Completion, error)
	// FetchDocument downloads the finished, signed document.
	FetchDocument(ctx context.Context, documentRef string) ([]byte, error)
	// CreateSigningSession registers a hosted signing flow with the vendor.
	CreateSigningSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// verifyHMAC computes HMAC-SHA256 over the raw body and compares it to the
// hex-encoded header in constant time.
func verifyHMAC(secret, rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" || len(secret) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
