// Package session holds the explicit credential used by the API client.
// A Session is acquired by Login, refreshed transparently by Token and
// cleared by Logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNotLoggedIn is returned by Token after Logout or before Login/Resume.
var ErrNotLoggedIn = errors.New("not logged in: run `watchgraph login`")

// Config describes the identity provider token endpoint.
type Config struct {
	TokenURL string
	ClientID string
	Scopes   []string
}

// Session is safe for concurrent use.
type Session struct {
	oc *oauth2.Config

	mu  sync.Mutex
	ctx context.Context // used for refresh requests
	src oauth2.TokenSource
}

// New returns a logged-out session for cfg.
func New(cfg Config) *Session {
	return &Session{
		oc: &oauth2.Config{
			ClientID: cfg.ClientID,
			Scopes:   cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		ctx: context.Background(),
	}
}

// Login exchanges user credentials for a token using the password grant.
func (s *Session) Login(ctx context.Context, user, password string) error {
	if s.oc.Endpoint.TokenURL == "" {
		return errors.New("auth.token_url is not configured")
	}
	tok, err := s.oc.PasswordCredentialsToken(ctx, user, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	s.Resume(tok)
	return nil
}

// Resume restores a previously stored token. Expired tokens are refreshed on
// the next call to Token when they carry a refresh token.
func (s *Session) Resume(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = oauth2.ReuseTokenSource(tok, s.oc.TokenSource(s.ctx, tok))
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return nil, ErrNotLoggedIn
	}
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return tok, nil
}

// LoggedIn reports whether a token is held.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src != nil
}

// Logout drops the held token.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = nil
}

// Save writes the current token to path with owner-only permissions.
func (s *Session) Save(path string) error {
	tok, err := s.Token()
	if err != nil {
		return err
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// LoadToken reads a token written by Save. A missing file yields
// ErrNotLoggedIn.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	if tok.AccessToken == "" {
		return nil, ErrNotLoggedIn
	}
	return &tok, nil
}

// RemoveToken deletes the token file. A missing file is not an error.
func RemoveToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
