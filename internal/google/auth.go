package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// AuthClient talks to the backend half of the redirect-based authorization
// handshake. The backend owns the OAuth client secret; this side only
// requests an authorization URL and exchanges the redirect code.
type AuthClient struct {
	backendURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAuthClient(logger *slog.Logger, backendURL string) *AuthClient {
	return &AuthClient{
		backendURL: strings.TrimSuffix(backendURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// RequestAccess asks the backend for an authorization URL to redirect the
// user to. Fire-and-forget from the sync engine's point of view: the token
// the handshake eventually produces arrives through the credential store,
// not through a return value here.
func (a *AuthClient) RequestAccess(ctx context.Context, userEmail string) (string, error) {
	var out struct {
		AuthURL string `json:"auth_url"`
	}
	body := map[string]string{"user_email": userEmail}
	if err := a.postJSON(ctx, "/api/auth/google/calendar-access", body, &out); err != nil {
		return "", fmt.Errorf("failed to request calendar access: %w", err)
	}
	if out.AuthURL == "" {
		return "", errors.New("backend returned no auth_url")
	}
	a.logger.Info("Obtained authorization URL")
	return out.AuthURL, nil
}

// CompleteCallback exchanges the redirect code and state for an access
// token. The caller hands the token to the credential tracker.
func (a *AuthClient) CompleteCallback(ctx context.Context, code, state string) (string, error) {
	var out struct {
		AccessToken string `json:"google_access_token"`
	}
	body := map[string]string{"code": code, "state": state}
	if err := a.postJSON(ctx, "/api/auth/google/calendar-callback", body, &out); err != nil {
		return "", fmt.Errorf("failed to complete authorization callback: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("backend returned no access token")
	}
	a.logger.Info("Authorization callback completed")
	return out.AccessToken, nil
}

func (a *AuthClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.backendURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
