package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/pkg/circuitbreaker"
	pkgerrors "pulse/pkg/errors"
)

// GoogleProfile is the identity carried by a verified Google ID token.
type GoogleProfile struct {
	Subject string
	Email   string
}

type tokenInfo struct {
	Audience      string          `json:"aud"`
	Subject       string          `json:"sub"`
	Email         string          `json:"email"`
	EmailVerified json.RawMessage `json:"email_verified"`
}

// emailVerified accepts both the string and boolean encodings used by the
// tokeninfo endpoint.
func (t tokenInfo) emailVerified() bool {
	var b bool
	if err := json.Unmarshal(t.EmailVerified, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(t.EmailVerified, &s); err == nil {
		b, _ = strconv.ParseBool(s)
	}
	return b
}

// GoogleVerifier checks Google ID tokens against the tokeninfo endpoint.
// Calls go through a circuit breaker; a rejected token does not count as a
// breaker failure.
type GoogleVerifier struct {
	client       *http.Client
	tokenInfoURL string
	clientID     string
	breaker      *circuitbreaker.Wrapper
}

func NewGoogleVerifier(cfg config.GoogleConfig, breakerCfg config.CircuitBreakerConfig) *GoogleVerifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	tokenInfoURL := cfg.TokenInfoURL
	if tokenInfoURL == "" {
		tokenInfoURL = constants.GoogleTokenInfoURL
	}

	cbCfg := circuitbreaker.FromConfig("google-tokeninfo", breakerCfg)
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || pkgerrors.IsUnauthorized(err)
	}

	return &GoogleVerifier{
		client:       &http.Client{Timeout: timeout},
		tokenInfoURL: tokenInfoURL,
		clientID:     cfg.ClientID,
		breaker:      circuitbreaker.NewWrapper(cbCfg),
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleProfile, error) {
	if idToken == "" {
		return nil, pkgerrors.ErrUnauthorized.WithMessage("missing google token")
	}

	info, err := circuitbreaker.Do(ctx, v.breaker, func(ctx context.Context) (*tokenInfo, error) {
		return v.fetch(ctx, idToken)
	})
	if err != nil {
		if pkgerrors.IsUnauthorized(err) {
			return nil, err
		}
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).WithMessage("google sign-in is unavailable")
	}

	if info.Audience != v.clientID {
		return nil, pkgerrors.ErrUnauthorized.WithMessage("google token audience mismatch")
	}
	if info.Email == "" || !info.emailVerified() {
		return nil, pkgerrors.ErrUnauthorized.WithMessage("google email is not verified")
	}

	return &GoogleProfile{Subject: info.Subject, Email: info.Email}, nil
}

func (v *GoogleVerifier) fetch(ctx context.Context, idToken string) (*tokenInfo, error) {
	endpoint := v.tokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("tokeninfo returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, pkgerrors.ErrUnauthorized.WithMessage("invalid google token")
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode tokeninfo response: %w", err)
	}
	return &info, nil
}
