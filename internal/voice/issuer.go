package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Bill1907/prepup/internal/llm"
)

const sessionPath = "/api/v1/voice/session"

// HTTPTokenSource requests credentials from the prepup API.
type HTTPTokenSource struct {
	BaseURL    string
	HTTPClient *http.Client
	// Authorize decorates each request with the caller identity.
	Authorize func(req *http.Request)
}

func NewHTTPTokenSource(baseURL string, authorize func(*http.Request)) *HTTPTokenSource {
	return &HTTPTokenSource{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Authorize:  authorize,
	}
}

// BearerToken authorizes requests with a signed-in user's token.
func BearerToken(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// GuestID authorizes requests as an anonymous guest.
func GuestID(id string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("X-Guest-Id", id)
	}
}

func (s *HTTPTokenSource) Token(ctx context.Context, questionID, resumeID string) (Credential, error) {
	payload, err := json.Marshal(map[string]string{"questionId": questionID, "resumeId": resumeID})
	if err != nil {
		return Credential{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+sessionPath, bytes.NewReader(payload))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Authorize != nil {
		s.Authorize(req)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("request voice session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, fmt.Errorf("read voice session: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, &llm.HTTPError{Provider: "prepup", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var cred Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return Credential{}, fmt.Errorf("decode voice session: %w", err)
	}
	if cred.ClientSecret == "" {
		return Credential{}, fmt.Errorf("voice session missing client secret")
	}
	return cred, nil
}
