// Package portalapi is the HTTP client for the internship-portal backend.
// The backend owns all state; this package only shapes requests and
// classifies failures for the session gate and the page handlers.
package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/internhub/go-portal-gate/session"
)

const (
	loginPath    = "/api/student/login"
	verifyPath   = "/api/verify-token"
	registerPath = "/api/interns"
	healthPath   = "/health"

	defaultRequestTimeout = 15 * time.Second
)

// Credentials is the login request payload. Exactly one of Email or Username
// is set; the backend accepts either field.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// LoginResult is the decoded success response of the login endpoint.
type LoginResult struct {
	Token     string `json:"token"`
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// VerifiedUser is the identity returned by the verify endpoint.
type VerifiedUser struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Role     session.Role `json:"role"`
	Email    string       `json:"email,omitempty"`
	Username string       `json:"username,omitempty"`
}

// Client talks to the portal backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the backend at baseURL (e.g. "https://portal.example.com").
func New(baseURL string, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[portalapi.New] base URL is required")
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login submits credentials to the login endpoint. A rejected login returns
// an error wrapping InvalidCredentialsErr carrying the server's message; a
// transport failure wraps UnreachableErr.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] marshal credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")
	requestID := c.tagRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", requestID).Msg("login request failed")
		return nil, errors.Wrapf(UnreachableErr, "[Client.Login] %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg := serverMessage(resp.Body, "login failed, check your credentials")
		c.logger.Info().Int("status", resp.StatusCode).Str("request_id", requestID).Msg("login rejected")
		return nil, &CredentialsError{Message: msg}
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "[Client.Login] decode response")
	}
	if result.Token == "" {
		return nil, errors.New("[Client.Login] response missing token")
	}
	return &result, nil
}

// VerifyToken asks the backend whether token still identifies a valid user.
// A 401 or 403 wraps TokenInvalidErr; any other failure wraps UnreachableErr
// or UnexpectedStatusErr. Callers treat all of these as grounds for revoking
// the session.
func (c *Client) VerifyToken(ctx context.Context, token string) (*VerifiedUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+verifyPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyToken] NewRequest")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	requestID := c.tagRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", requestID).Msg("verify request failed")
		return nil, errors.Wrapf(UnreachableErr, "[Client.VerifyToken] %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrap(TokenInvalidErr, serverMessage(resp.Body, "token rejected"))
	default:
		return nil, errors.Wrapf(UnexpectedStatusErr, "[Client.VerifyToken] status %d", resp.StatusCode)
	}

	var payload struct {
		User *VerifiedUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyToken] decode response")
	}
	if payload.User == nil {
		return nil, errors.New("[Client.VerifyToken] response missing user")
	}
	return payload.User, nil
}

// Registration is an internship application. The portal creates the student
// account from it, so username and password travel with the application.
type Registration struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
	University     string `json:"university,omitempty"`
	Department     string `json:"department,omitempty"`
	Domain         string `json:"domain,omitempty"`
	StartDate      string `json:"startDate,omitempty"`
	EndDate        string `json:"endDate,omitempty"`
	DurationMonths int    `json:"duration,omitempty"`
}

// Register submits an internship application. Registration needs no session;
// a rejected application carries the server's message.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	body, err := json.Marshal(reg)
	if err != nil {
		return errors.Wrap(err, "[Client.Register] marshal registration")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "[Client.Register] NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")
	requestID := c.tagRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("request_id", requestID).Msg("register request failed")
		return errors.Wrapf(UnreachableErr, "[Client.Register] %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Info().Int("status", resp.StatusCode).Str("request_id", requestID).Msg("registration rejected")
		return &RegistrationError{Message: serverMessage(resp.Body, "registration failed, try again later")}
	}
	return nil
}

// Health reports whether the backend answers its health endpoint.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// tagRequest attaches a request ID for log correlation and returns it.
func (c *Client) tagRequest(req *http.Request) string {
	id := uuid.New().String()
	req.Header.Set("X-Request-ID", id)
	return id
}

// serverMessage extracts the backend's human-readable error message, falling
// back to the given one when the body is not the expected shape.
func serverMessage(body io.Reader, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fallback
}
