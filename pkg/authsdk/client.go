package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the auth service without credentials.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account and returns a session for it.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	tokens, err := c.tokenCall(ctx, "/v1/auth/register", req, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// Login signs in with a username or email.
func (c *SDKClient) Login(ctx context.Context, usernameOrEmail, password string) (*Session, error) {
	tokens, err := c.tokenCall(ctx, "/v1/auth/login", LoginRequest{
		UsernameOrEmail: usernameOrEmail,
		Password:        password,
	}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// RefreshGrant redeems a refresh token. The token is single use; the new
// pair replaces it.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.tokenCall(ctx, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, http.StatusOK)
}

// NewSessionFromTokens resumes a session from stored tokens.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int64) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	})
}

func (c *SDKClient) tokenCall(ctx context.Context, path string, payload any, expected int) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, expected); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
