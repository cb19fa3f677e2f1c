package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
)

const DefaultResendBaseURL = "https://api.resend.com"

// Resend sends through the Resend HTTP API.
type Resend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewResend(apiKey, baseURL string, timeout time.Duration) *Resend {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resend{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *Resend) Name() string {
	return "resend"
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo []string `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (r *Resend) Send(ctx context.Context, msg *email.Email) error {
	body, err := json.Marshal(resendEmail{
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Text:    string(msg.Text),
		HTML:    string(msg.HTML),
	})
	if err != nil {
		return fmt.Errorf("resend: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var re resendError
	if err := json.Unmarshal(raw, &re); err != nil || re.Message == "" {
		re.Message = http.StatusText(resp.StatusCode)
	}
	return &ProviderError{
		Provider:   r.Name(),
		StatusCode: resp.StatusCode,
		Message:    shortMessage(re.Message),
	}
}
