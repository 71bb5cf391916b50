// Package mailer sends transactional mail through an external HTTP mail service.
// The auth service treats delivery as best-effort; verification links are logged
// when no mailer is configured (local development).
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Sender delivers verification mail. Implementations must be safe for concurrent use.
type Sender interface {
	// SendVerification sends the email-verification message carrying token to toEmail.
	SendVerification(ctx context.Context, toEmail, token string) error
}

// Client posts JSON mail requests to a transactional mail endpoint.
type Client struct {
	endpoint    string
	token       string
	fromEmail   string
	frontendURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a mail client. endpoint may be empty; then the client is
// unconfigured and SendVerification logs the link instead of sending.
func NewClient(endpoint, token, fromEmail, frontendURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		token:       token,
		fromEmail:   fromEmail,
		frontendURL: frontendURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if a mail endpoint is set.
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

type mailRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

// SendVerification sends the email-verification message. When no endpoint is
// configured the link is logged and nil is returned so registration still succeeds
// in local development.
func (c *Client) SendVerification(ctx context.Context, toEmail, token string) error {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", c.frontendURL, url.QueryEscape(token))

	if !c.Configured() {
		if c.logger != nil {
			c.logger.Info("mailer not configured; verification link", "to", toEmail, "link", link)
		}
		return nil
	}

	textBody := fmt.Sprintf("Confirm your email address by opening the link below:\n\n%s\n\nThis link expires in 24 hours.", link)
	htmlBody := fmt.Sprintf(
		`<p>Confirm your email address by opening the link below:</p><p><a href="%s">Verify email</a></p><p>This link expires in 24 hours.</p>`,
		link,
	)

	payload := mailRequest{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Verify your email address",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("mail API error: status %d", resp.StatusCode)
	}
	return nil
}
