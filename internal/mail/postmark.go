package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/brandonbynum/fullstack-vps-boilerplate/internal/logger"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

// PostmarkClient delivers magic link emails through the Postmark HTTP API.
// Formatting and retrying are its concern alone, callers only learn
// whether delivery succeeded
type PostmarkClient struct {
	serverToken string
	fromEmail   string
	publicURL   string // base URL the sign in link points at
	apiURL      string
	httpClient  *http.Client
}

type Option func(*PostmarkClient)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *PostmarkClient) {
		cl.httpClient = c
	}
}

func WithAPIURL(u string) Option {
	return func(cl *PostmarkClient) {
		cl.apiURL = u
	}
}

func NewPostmarkClient(serverToken, fromEmail, publicURL string, opts ...Option) *PostmarkClient {
	c := &PostmarkClient{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		publicURL:   publicURL,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set
func (c *PostmarkClient) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Send delivers a sign in link for the token to the address
func (c *PostmarkClient) Send(ctx context.Context, toEmail string, token string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	link := fmt.Sprintf("%s/auth/verify?token=%s", c.publicURL, url.QueryEscape(token))
	payload := postmarkEmail{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: "Your sign-in link",
		TextBody: fmt.Sprintf(
			"Click the link below to sign in:\n\n%s\n\nThe link can be used once and expires soon.", link),
		HtmlBody: fmt.Sprintf(
			`<p>Click the link below to sign in:</p><p><a href="%s">Sign in</a></p><p>The link can be used once and expires soon.</p>`, link),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

// LogSender writes the link to the log instead of delivering it.
// Meant for development environments without a mail provider
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) Send(_ context.Context, toEmail string, token string) error {
	s.Logger.Info("magic link issued (mail delivery not configured)", "email", toEmail, "token", token)
	return nil
}
