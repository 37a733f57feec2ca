package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Caller issues one bounded chat-completion call against a single provider.
type Caller interface {
	Call(ctx context.Context, p Provider, req Request, timeout time.Duration) (string, error)
}

// HTTPCaller talks the OpenAI-compatible chat completions wire format.
type HTTPCaller struct {
	httpClient *http.Client
}

// NewHTTPCaller constructs an HTTPCaller. Per-attempt timeouts come from the
// attempt plan, so the underlying client carries no timeout of its own.
func NewHTTPCaller() *HTTPCaller {
	return &HTTPCaller{httpClient: &http.Client{}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Call performs a single attempt bounded by timeout.
func (c *HTTPCaller) Call(ctx context.Context, p Provider, req Request, timeout time.Duration) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []chatMessage{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.User},
	}
	body := chatRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &AttemptError{Provider: p.Name, Kind: FailureTransport, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &AttemptError{Provider: p.Name, Kind: FailureTransport, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(p.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransport(p.Name, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &AttemptError{Provider: p.Name, Kind: FailureAuth, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &AttemptError{Provider: p.Name, Kind: FailureRateLimited, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	case resp.StatusCode != http.StatusOK:
		return "", &AttemptError{Provider: p.Name, Kind: FailureBadResponse, Status: resp.StatusCode, Err: fmt.Errorf("http status %d: %s", resp.StatusCode, truncateBody(raw))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &AttemptError{Provider: p.Name, Kind: FailureBadResponse, Err: fmt.Errorf("response parse: %w", err)}
	}
	if parsed.Error != nil {
		return "", &AttemptError{Provider: p.Name, Kind: FailureBadResponse, Err: fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}
	if len(parsed.Choices) == 0 {
		return "", &AttemptError{Provider: p.Name, Kind: FailureBadResponse, Err: errors.New("response missing choices")}
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", &AttemptError{Provider: p.Name, Kind: FailureBadResponse, Err: errors.New("response empty content")}
	}
	return content, nil
}

func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &AttemptError{Provider: provider, Kind: FailureTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AttemptError{Provider: provider, Kind: FailureTimeout, Err: err}
	}
	if strings.Contains(err.Error(), "Client.Timeout") {
		return &AttemptError{Provider: provider, Kind: FailureTimeout, Err: err}
	}
	return &AttemptError{Provider: provider, Kind: FailureTransport, Err: err}
}

func truncateBody(raw []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

var _ Caller = (*HTTPCaller)(nil)
