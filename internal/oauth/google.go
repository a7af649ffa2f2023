// Package oauth verifies third-party identity tokens.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidToken covers every reason a token is rejected: bad signature,
// expiry, wrong audience or issuer, unverified email.
var ErrInvalidToken = errors.New("oauth: invalid id token")

// Verifier checks a Google ID token and returns the identity it carries.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error)
}

type GoogleUser struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleVerifier asks Google's tokeninfo endpoint to validate the token, then
// checks that it was issued for this client.
type GoogleVerifier struct {
	ClientID string
	Endpoint string
	Client   *http.Client
	Now      func() time.Time
}

func NewGoogleVerifier(clientID, endpoint string, client *http.Client) *GoogleVerifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &GoogleVerifier{ClientID: clientID, Endpoint: endpoint, Client: client, Now: time.Now}
}

// tokeninfo returns every claim as a string.
type tokenInfo struct {
	Aud           string `json:"aud"`
	Iss           string `json:"iss"`
	Sub           string `json:"sub"`
	Exp           string `json:"exp"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	if g.ClientID == "" {
		return nil, errors.New("oauth: google client id not configured")
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, ErrInvalidToken
	}

	u := g.Endpoint + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("oauth: build request: %w", err)
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("oauth: tokeninfo status %d", resp.StatusCode)
	}

	var ti tokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ti); err != nil {
		return nil, fmt.Errorf("oauth: decode tokeninfo: %w", err)
	}

	if ti.Aud != g.ClientID {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if ti.Iss != "accounts.google.com" && ti.Iss != "https://accounts.google.com" {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	exp, err := strconv.ParseInt(ti.Exp, 10, 64)
	if err != nil || !g.Now().Before(time.Unix(exp, 0)) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if ti.Sub == "" || ti.Email == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	verified := ti.EmailVerified == "true"
	if !verified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}

	return &GoogleUser{
		ID:            ti.Sub,
		Email:         strings.ToLower(ti.Email),
		EmailVerified: verified,
		Name:          ti.Name,
		Picture:       ti.Picture,
	}, nil
}
