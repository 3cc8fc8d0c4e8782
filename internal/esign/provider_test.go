package esign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/Nikita3549/SkyHelp-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"event":"document_completed"}`)

	tests := []struct {
		name   string
		secret []byte
		header string
		want   bool
	}{
		{name: "valid", secret: []byte("s3cret"), header: sign("s3cret", body), want: true},
		{name: "wrong secret", secret: []byte("s3cret"), header: sign("other", body), want: false},
		{name: "tampered header", secret: []byte("s3cret"), header: sign("s3cret", body)[:10] + "deadbeef", want: false},
		{name: "empty header", secret: []byte("s3cret"), header: "", want: false},
		{name: "empty secret", secret: nil, header: sign("s3cret", body), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifyHMAC(tt.secret, body, tt.header))
		})
	}
}

func TestSignWellVerifyCoversExactRawBody(t *testing.T) {
	sw := NewSignWell(config.ProviderConfig{WebhookSecret: "wh-secret"})

	body := []byte(`{"event":"document_completed","data":{"id":"abc"}}`)
	assert.True(t, sw.VerifySignature(body, sign("wh-secret", body)))

	// Any re-serialization of the payload invalidates the signature; the
	// check runs over the exact bytes received.
	altered := []byte(`{"event":"document_completed","data":{"id":"abc"} }`)
	assert.False(t, sw.VerifySignature(altered, sign("wh-secret", body)))
}

func TestSignWellParseCompletion(t *testing.T) {
	sw := NewSignWell(config.ProviderConfig{})

	body := []byte(`{"event":"document_completed","data":{"id":"dw_123","status":"completed","document_url":"https://signwell.example/d/dw_123.pdf"}}`)
	c, err := sw.ParseCompletion(body)
	require.NoError(t, err)
	assert.Equal(t, "dw_123", c.RequestID)
	assert.Equal(t, "completed", c.Status)
	assert.Equal(t, "https://signwell.example/d/dw_123.pdf", c.DocumentRef)

	_, err = sw.ParseCompletion([]byte("not json"))
	assert.Error(t, err)
}

func TestDocuSealParseCompletion(t *testing.T) {
	ds := NewDocuSeal(config.ProviderConfig{})

	body := []byte(`{"event_type":"form.completed","data":{"submission_id":991,"documents":[{"url":"https://docuseal.example/d/991.pdf"}]}}`)
	c, err := ds.ParseCompletion(body)
	require.NoError(t, err)
	assert.Equal(t, "991", c.RequestID)
	assert.Equal(t, "completed", c.Status, "form.completed event type normalizes to the completed status")
	assert.Equal(t, "https://docuseal.example/d/991.pdf", c.DocumentRef)
}

func TestDocuSealParsePendingEvent(t *testing.T) {
	ds := NewDocuSeal(config.ProviderConfig{})

	body := []byte(`{"event_type":"form.viewed","data":{"submission_id":991,"status":"opened"}}`)
	c, err := ds.ParseCompletion(body)
	require.NoError(t, err)
	assert.Equal(t, "991", c.RequestID)
	assert.Equal(t, "opened", c.Status)
	assert.Empty(t, c.DocumentRef)
}

func TestProviderHeadersDiffer(t *testing.T) {
	assert.NotEqual(t, SignWellHeader, DocuSealHeader)
}
