package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/config"
)

const signwellTimeout = 20 * time.Second

// SignWellHeader carries the webhook HMAC.
const SignWellHeader = "X-SignWell-Signature"

type SignWell struct {
	cfg  config.ProviderConfig
	http *http.Client
}

func NewSignWell(cfg config.ProviderConfig) *SignWell {
	return &SignWell{cfg: cfg, http: &http.Client{Timeout: signwellTimeout}}
}

func (s *SignWell) Name() string { return "signwell" }

func (s *SignWell) VerifySignature(rawBody []byte, signatureHeader string) bool {
	return verifyHMAC([]byte(s.cfg.WebhookSecret), rawBody, signatureHeader)
}

type signwellEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		DocumentURL string `json:"document_url"`
	} `json:"data"`
}

func (s *SignWell) ParseCompletion(rawBody []byte) (*Completion, error) {
	var evt signwellEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, fmt.Errorf("parse signwell webhook: %w", err)
	}
	return &Completion{
		RequestID:   evt.Data.ID,
		Status:      evt.Data.Status,
		DocumentRef: evt.Data.DocumentURL,
	}, nil
}

func (s *SignWell) FetchDocument(ctx context.Context, documentRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentRef, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signwell fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signwell fetch document: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *SignWell) CreateSigningSession(ctx context.Context, sreq SessionRequest) (*Session, error) {
	payload, err := json.Marshal(map[string]any{
		"test_mode": false,
		"name":      fmt.Sprintf("Assignment %s", sreq.ClaimID),
		"fields": map[string]string{
			"claim_id":      sreq.ClaimID,
			"airline":       sreq.AirlineName,
			"flight_number": sreq.FlightNumber,
		},
		"recipients": []map[string]string{
			{"name": sreq.SignerName, "email": sreq.SignerEmail},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/documents", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signwell create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("signwell create session: status %d: %s", resp.StatusCode, raw)
	}

	var out struct {
		ID      string `json:"id"`
		SignURL string `json:"embedded_signing_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &Session{RequestID: out.ID, SignURL: out.SignURL}, nil
}
