// ABOUTME: Per-client API session holding a token with refresh-on-expiry
// ABOUTME: Implements oauth2.TokenSource so Edumate and FSI clients own their credentials
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// ErrAuth marks a failed token acquisition.
var ErrAuth = errors.New("authentication failed")

// FetchFunc acquires a fresh token from the remote service.
type FetchFunc func(ctx context.Context) (*oauth2.Token, error)

// Session caches the token of one API client and fetches a new one when the
// cached token is missing, expired or explicitly invalidated.
type Session struct {
	name  string
	fetch FetchFunc

	mu    sync.Mutex
	token *oauth2.Token
}

// New creates a session for the named service.
func New(name string, fetch FetchFunc) *Session {
	return &Session{name: name, fetch: fetch}
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// TokenContext returns the cached token, refreshing it first if needed.
func (s *Session) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid() {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authorise to %s: %w: %w", s.name, ErrAuth, err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("failed to authorise to %s: %w: empty token", s.name, ErrAuth)
	}
	s.token = token
	return token, nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// HTTPClient wraps base so each request carries the session's bearer token.
// A refresh runs under the request's context.
func (s *Session) HTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   base.Timeout,
		Transport: &bearerTransport{session: s, base: transport},
	}
}

type bearerTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	bodyClosed := false
	if req.Body != nil {
		defer func() {
			if !bodyClosed {
				_ = req.Body.Close()
			}
		}()
	}

	token, err := t.session.TokenContext(req.Context())
	if err != nil {
		return nil, err
	}

	req2 := req.Clone(req.Context())
	token.SetAuthHeader(req2)
	bodyClosed = true
	return t.base.RoundTrip(req2)
}
