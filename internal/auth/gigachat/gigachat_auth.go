// Package gigachat manages authentication against the GigaChat OAuth endpoint.
// It owns the access token for the backend: fetching it with the configured
// authorization key, refreshing it before expiry, and serializing concurrent
// refresh attempts so that at most one token request is in flight.
package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/gpt2giga/gpt2giga/internal/util"
)

// Credential represents a GigaChat access token together with its expiry.
// Credentials are immutable; a refresh produces a new value.
type Credential struct {
	// AccessToken is the bearer token for GigaChat API requests.
	AccessToken string

	// ExpiresAt is the instant the token stops being valid.
	ExpiresAt time.Time
}

// tokenResponse represents the OAuth endpoint's reply. The production
// endpoint reports expires_at in Unix milliseconds; expires_in (seconds)
// is accepted as a fallback for compatible deployments.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// AuthError indicates that a credential could not be acquired or refreshed.
type AuthError struct {
	// StatusCode is the HTTP status returned by the OAuth endpoint,
	// or 0 for transport failures.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gigachat auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// GigaChatAuth performs token requests against the OAuth endpoint.
type GigaChatAuth struct {
	httpClient *http.Client
	authURL    string
	authKey    string
	scope      string
}

// NewGigaChatAuth creates a new GigaChatAuth from the configuration.
func NewGigaChatAuth(cfg *config.Config) *GigaChatAuth {
	return &GigaChatAuth{
		httpClient: util.SetProxy(cfg, &http.Client{}),
		authURL:    cfg.GigaChat.AuthURL,
		authKey:    cfg.GigaChat.AuthKey,
		scope:      cfg.GigaChat.Scope,
	}
}

// FetchToken requests a fresh access token from the OAuth endpoint.
// One network call per invocation; serialization is the TokenManager's job.
func (ga *GigaChatAuth) FetchToken(ctx context.Context) (*Credential, error) {
	data := url.Values{}
	data.Set("scope", ga.scope)

	req, err := http.NewRequestWithContext(ctx, "POST", ga.authURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", ga.authKey))
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := ga.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("token request failed: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var errorData map[string]interface{}
		if err = json.Unmarshal(body, &errorData); err == nil {
			return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token request failed: %v - %v", errorData["code"], errorData["message"])}
		}
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token request failed: %s", string(body))}
	}

	var tokenData tokenResponse
	if err = json.Unmarshal(body, &tokenData); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if tokenData.AccessToken == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("token request failed: access_token not found in response")}
	}

	return &Credential{
		AccessToken: tokenData.AccessToken,
		ExpiresAt:   expiryFromResponse(tokenData),
	}, nil
}

// expiryFromResponse normalizes the two expiry encodings the endpoint may use.
// expires_at values small enough to be seconds rather than milliseconds are
// scaled up before conversion.
func expiryFromResponse(tokenData tokenResponse) time.Time {
	if tokenData.ExpiresAt > 0 {
		ms := tokenData.ExpiresAt
		if ms < 1e12 {
			ms *= 1000
		}
		return time.UnixMilli(ms)
	}
	if tokenData.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tokenData.ExpiresIn) * time.Second)
	}
	// The endpoint reported no expiry; assume the documented 30 minutes.
	return time.Now().Add(30 * time.Minute)
}
