// Package contact holds the contact-form types shared by the submission gate
// and the mail relay.
package contact

import "strings"

// Form is the in-memory state of one contact form render.
type Form struct {
	Name     string
	Email    string
	Subject  string
	Message  string
	Honeypot string // hidden from humans; must stay empty
}

// IsBot reports whether the honeypot was filled in.
func (f *Form) IsBot() bool {
	return f.Honeypot != ""
}

// Missing returns the names of required fields that are empty.
func (f *Form) Missing() []string {
	return missingFields(f.Name, f.Email, f.Subject, f.Message)
}

// Clear resets every field, honeypot included.
func (f *Form) Clear() {
	*f = Form{}
}

// Meta is informational context forwarded into the email body.
type Meta struct {
	SentAt    string `json:"sentAt"`
	UserAgent string `json:"userAgent"`
	Page      string `json:"page"`
}

// RelayRequest is the JSON payload accepted by the relay endpoint.
type RelayRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Honeypot string `json:"honeypot,omitempty"`
	HP       string `json:"hp,omitempty"` // older clients
	Meta     *Meta  `json:"meta,omitempty"`
}

// NewRelayRequest builds the wire payload for a form.
func NewRelayRequest(f *Form, meta Meta) RelayRequest {
	return RelayRequest{
		Name:     f.Name,
		Email:    f.Email,
		Subject:  f.Subject,
		Message:  f.Message,
		Honeypot: f.Honeypot,
		Meta:     &meta,
	}
}

// IsBot reports whether either honeypot spelling was filled in.
func (r *RelayRequest) IsBot() bool {
	return r.Honeypot != "" || r.HP != ""
}

func (r *RelayRequest) Missing() []string {
	return missingFields(r.Name, r.Email, r.Subject, r.Message)
}

// RelayResponse is the JSON body the relay answers with.
type RelayResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func missingFields(name, email, subject, message string) []string {
	var out []string
	for _, f := range []struct{ key, val string }{
		{"name", name},
		{"email", email},
		{"subject", subject},
		{"message", message},
	} {
		if strings.TrimSpace(f.val) == "" {
			out = append(out, f.key)
		}
	}
	return out
}
