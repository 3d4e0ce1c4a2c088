package authsdk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// refreshBuffer is how long before expiry the access token is renewed.
const refreshBuffer = 30 * time.Second

// Session is a signed-in user. Methods are safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(client *SDKClient, tokens *TokenResponse) *Session {
	return &Session{
		client:       client,
		accessToken:  tokens.AccessToken,
		refreshToken: tokens.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshBuffer),
	}
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Refresh rotates the token pair now, regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errors.New("no refresh token available")
	}

	tokens, err := s.client.RefreshGrant(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshBuffer)
	return nil
}

func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Logout ends every session of the user, on all devices.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", nil, "")
	if err != nil {
		return err
	}
	if err := checkStatusNoContent(resp); err != nil {
		return err
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}

// Sessions lists the user's active sessions, newest first.
func (s *Session) Sessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/sessions", nil, "")
	if err != nil {
		return nil, err
	}

	var out SessionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/users/me", nil, "")
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteAccount deletes the signed-in user. The session is unusable
// afterwards.
func (s *Session) DeleteAccount(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/users/me", nil, "")
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// UploadProfileImage replaces the profile image. Only JPEG is accepted.
func (s *Session) UploadProfileImage(ctx context.Context, jpeg []byte) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/users/me/image", bytes.NewReader(jpeg), "image/jpeg")
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ProfileImage downloads the profile image and its content type.
func (s *Session) ProfileImage(ctx context.Context) ([]byte, string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/users/me/image", nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", parseErrorResponse(resp, data)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
