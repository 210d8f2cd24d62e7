package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/overmark/roomaccess/pkg/config"
)

// Client is a REST client for a GoTrue-style authentication API.
type Client struct {
	http *resty.Client
}

func NewClient(cfg config.IdentityConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.AuthURL).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.ServiceKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: client}
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	User         authUser `json:"user"`
}

type authUser struct {
	Email    string   `json:"email"`
	Metadata Metadata `json:"user_metadata"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (e *errorResponse) message() string {
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Error
}

func (c *Client) SignIn(ctx context.Context, email, secret string) (*Session, error) {
	var ok tokenResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": secret}).
		SetResult(&ok).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("sign-in request: %w", err)
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("sign-in failed: %s (status %d)", apiErr.message(), resp.StatusCode())
	}

	return sessionFrom(&ok), nil
}

func (c *Client) SignUp(ctx context.Context, email, secret string, meta Metadata) (*Session, error) {
	var ok tokenResponse
	var apiErr errorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"email":    email,
			"password": secret,
			"data":     meta,
		}).
		SetResult(&ok).
		SetError(&apiErr).
		Post("/signup")
	if err != nil {
		return nil, fmt.Errorf("sign-up request: %w", err)
	}

	if resp.IsError() {
		if isAlreadyRegistered(resp.StatusCode(), apiErr.message()) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("sign-up failed: %s (status %d)", apiErr.message(), resp.StatusCode())
	}

	// Some deployments return only the user object on sign-up (email
	// confirmation flows). Room accounts are auto-confirmed, so a missing
	// session here means a follow-up sign-in is needed.
	if ok.AccessToken == "" {
		return c.SignIn(ctx, email, secret)
	}

	return sessionFrom(&ok), nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Post("/logout")
	if err != nil {
		return fmt.Errorf("sign-out request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sign-out failed: status %d", resp.StatusCode())
	}
	return nil
}

func sessionFrom(tr *tokenResponse) *Session {
	return &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		Email:        tr.User.Email,
		Metadata:     tr.User.Metadata,
	}
}

func isAlreadyRegistered(status int, msg string) bool {
	if status == http.StatusUnprocessableEntity {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "already registered")
}
