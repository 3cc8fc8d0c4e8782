package esign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Nikita3549/SkyHelp-sub000/internal/config"
)

const docusealTimeout = 20 * time.Second

// DocuSealHeader carries the webhook HMAC.
const DocuSealHeader = "X-DocuSeal-Signature"

type DocuSeal struct {
	cfg  config.ProviderConfig
	http *http.Client
}

func NewDocuSeal(cfg config.ProviderConfig) *DocuSeal {
	return &DocuSeal{cfg: cfg, http: &http.Client{Timeout: docusealTimeout}}
}

func (d *DocuSeal) Name() string { return "docuseal" }

func (d *DocuSeal) VerifySignature(rawBody []byte, signatureHeader string) bool {
	return verifyHMAC([]byte(d.cfg.WebhookSecret), rawBody, signatureHeader)
}

type docusealEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		SubmissionID int    `json:"submission_id"`
		Status       string `json:"status"`
		Documents    []struct {
			URL string `json:"url"`
		} `json:"documents"`
	} `json:"data"`
}

func (d *DocuSeal) ParseCompletion(rawBody []byte) (*Completion, error) {
	var evt docusealEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, fmt.Errorf("parse docuseal webhook: %w", err)
	}

	c := &Completion{
		RequestID: strconv.Itoa(evt.Data.SubmissionID),
		Status:    evt.Data.Status,
	}
	// DocuSeal reports completion as an event type rather than a status
	// field on some plans; normalize both spellings.
	if evt.EventType == "form.completed" || evt.Data.Status == "completed" {
		c.Status = "completed"
	}
	if len(evt.Data.Documents) > 0 {
		c.DocumentRef = evt.Data.Documents[0].URL
	}
	return c, nil
}

func (d *DocuSeal) FetchDocument(ctx context.Context, documentRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentRef, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", d.cfg.APIKey)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docuseal fetch document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docuseal fetch document: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (d *DocuSeal) CreateSigningSession(ctx context.Context, sreq SessionRequest) (*Session, error) {
	payload, err := json.Marshal(map[string]any{
		"template_id": "assignment",
		"send_email":  false,
		"submitters": []map[string]any{
			{
				"name":  sreq.SignerName,
				"email": sreq.SignerEmail,
				"values": map[string]string{
					"claim_id":      sreq.ClaimID,
					"airline":       sreq.AirlineName,
					"flight_number": sreq.FlightNumber,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+"/submissions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", d.cfg.APIKey)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docuseal create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("docuseal create session: status %d: %s", resp.StatusCode, raw)
	}

	var out []struct {
		SubmissionID int    `json:"submission_id"`
		EmbedSrc     string `json:"embed_src"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("docuseal create session: empty response")
	}
	return &Session{RequestID: strconv.Itoa(out[0].SubmissionID), SignURL: out[0].EmbedSrc}, nil
}
