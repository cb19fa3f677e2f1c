package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nazarhussain/contact-gate/internal/contact"
)

// ErrTransport marks failures to reach the relay at all.
var ErrTransport = errors.New("relay unreachable")

// Result is the relay's verdict on one request.
type Result struct {
	OK     bool
	Reason string
}

func Success() Result {
	return Result{OK: true}
}

func Failure(reason string) Result {
	return Result{Reason: reason}
}

// Relay delivers a request to the mail relay. A non-nil error means the
// relay could not be reached; a reachable relay that refuses returns Failure.
type Relay interface {
	Send(ctx context.Context, req contact.RelayRequest) (Result, error)
}

const maxRelayResponse = 64 << 10

// HTTPRelay posts requests to the relay endpoint as JSON.
type HTTPRelay struct {
	URL    string
	Client *http.Client
}

func NewHTTPRelay(url string, client *http.Client) *HTTPRelay {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRelay{URL: url, Client: client}
}

func (r *HTTPRelay) Send(ctx context.Context, req contact.RelayRequest) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode relay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	// A body that is not JSON is treated like an empty one.
	var data contact.RelayResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxRelayResponse))
	_ = json.Unmarshal(raw, &data)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && data.OK {
		return Success(), nil
	}
	if data.Error != "" {
		return Failure(data.Error), nil
	}
	return Failure(fmt.Sprintf("relay responded %d", resp.StatusCode)), nil
}
