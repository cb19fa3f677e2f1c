// Package relay implements the contact endpoint that validates a submission
// and hands it to the email provider.
package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/nazarhussain/contact-gate/internal/contact"
	"github.com/nazarhussain/contact-gate/internal/logging"
	"github.com/nazarhussain/contact-gate/internal/mailer"
)

// Outcome is the terminal state of one relay request.
type Outcome string

const (
	MethodRejected     Outcome = "method_rejected"
	ParseRejected      Outcome = "parse_rejected"
	HoneypotAccepted   Outcome = "honeypot_accepted"
	ValidationRejected Outcome = "validation_rejected"
	Dispatched         Outcome = "dispatched"
	ProviderRejected   Outcome = "provider_rejected"
	Failed             Outcome = "failed"
)

const (
	errBadPayload    = "bad payload"
	errMissingFields = "Missing required fields"
	errSendFailed    = "Failed to send"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Config struct {
	From          string
	To            string
	SubjectPrefix string
	MaxBodyBytes  int64
	Location      *time.Location // for the receipt timestamp; UTC when nil
}

// Observer is told about every finished request.
type Observer interface {
	ObserveOutcome(outcome string)
	ObserveProvider(provider string, ok bool, d time.Duration)
}

type Handler struct {
	cfg      Config
	sender   mailer.Sender
	observer Observer
	now      func() time.Time
}

func New(cfg Config, sender mailer.Sender, observer Observer) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Handler{
		cfg:      cfg,
		sender:   sender,
		observer: observer,
		now:      time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outcome := h.handle(w, r)
	if h.observer != nil {
		h.observer.ObserveOutcome(string(outcome))
	}
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) (outcome Outcome) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("relay failed unexpectedly", "err", rec)
			writeJSON(w, http.StatusInternalServerError, contact.RelayResponse{Error: errSendFailed})
			outcome = Failed
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return MethodRejected
	}

	req, err := h.decode(r)
	if err != nil {
		log.Warn("rejecting payload", "err", err)
		writeJSON(w, http.StatusBadRequest, contact.RelayResponse{Error: errBadPayload})
		return ParseRejected
	}

	// Bots get the same answer as a real delivery.
	if req.IsBot() {
		log.Info("honeypot triggered, dropping submission")
		writeJSON(w, http.StatusOK, contact.RelayResponse{OK: true})
		return HoneypotAccepted
	}

	if missing := req.Missing(); len(missing) > 0 {
		log.Info("missing required fields", "fields", missing)
		writeJSON(w, http.StatusBadRequest, contact.RelayResponse{Error: errMissingFields})
		return ValidationRejected
	}

	msg := h.compose(req)

	start := time.Now()
	err = h.sender.Send(ctx, msg)
	if h.observer != nil {
		h.observer.ObserveProvider(h.sender.Name(), err == nil, time.Since(start))
	}
	if err != nil {
		reason := errSendFailed
		var pe *mailer.ProviderError
		if errors.As(err, &pe) {
			reason = pe.Message
		}
		log.Error("send failed", "provider", h.sender.Name(), "err", err)
		writeJSON(w, http.StatusInternalServerError, contact.RelayResponse{Error: reason})
		return ProviderRejected
	}

	log.Info("contact message dispatched", "provider", h.sender.Name())
	writeJSON(w, http.StatusOK, contact.RelayResponse{OK: true})
	return Dispatched
}

// decode reads at most MaxBodyBytes. An empty body decodes to an empty
// request so it fails field validation rather than parsing.
func (h *Handler) decode(r *http.Request) (*contact.RelayRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", h.cfg.MaxBodyBytes)
	}

	var req contact.RelayRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &req, nil
}

func (h *Handler) compose(req *contact.RelayRequest) *email.Email {
	meta := []byte("{}")
	if req.Meta != nil {
		if b, err := json.MarshalIndent(req.Meta, "", "  "); err == nil {
			meta = b
		}
	}

	text := strings.Join([]string{
		"Name: " + req.Name,
		"Email: " + req.Email,
		"Subject: " + req.Subject,
		"",
		"Message:",
		req.Message,
		"",
		"---",
		"Meta: " + string(meta),
		"Received at: " + h.now().In(h.cfg.Location).Format(time.RFC1123),
	}, "\n")

	subject := strings.TrimSpace(h.cfg.SubjectPrefix + " " + singleLine(req.Subject))

	replyTo := ""
	if emailRegex.MatchString(req.Email) {
		replyTo = req.Email
	}

	return mailer.NewMessage(h.cfg.From, h.cfg.To, replyTo, subject, text)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeJSON(w http.ResponseWriter, status int, body contact.RelayResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
