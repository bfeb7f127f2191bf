package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
)

const (
	apiURL = "https://api.postmarkapp.com/email"
	tag    = "choregate"
)

var htmlLayout = template.Must(template.New("email").Parse(
	`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">` +
		`<h2>{{.Subject}}</h2><p>{{.Body}}</p>` +
		`<p>{{if .AppURL}}<a href="{{.AppURL}}">Log in to the Chore Manager app</a>{{else}}Log in to the Chore Manager app{{end}} to view more details.</p>` +
		`</div>`))

// Client delivers notification emails through the Postmark API.
type Client struct {
	serverToken string
	fromEmail   string
	appURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient builds a client. appURL, when set, is linked from every message.
func NewClient(serverToken, fromEmail, appURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		appURL:      appURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and sender are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	Tag           string `json:"Tag"`
	MessageStream string `json:"MessageStream"`
}

type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send delivers a single notification email.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token or sender")
	}
	if to == "" {
		return fmt.Errorf("send email: empty recipient")
	}

	htmlBody, err := c.renderHTML(subject, body)
	if err != nil {
		return err
	}
	payload := postmarkEmail{
		From:          c.fromEmail,
		To:            to,
		Subject:       subject,
		HtmlBody:      htmlBody,
		TextBody:      c.renderText(body),
		Tag:           tag,
		MessageStream: "outbound",
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(buf))
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
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var pe postmarkError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &pe) == nil && pe.Message != "" {
			return fmt.Errorf("postmark API error: status %d: %s (code %d)", resp.StatusCode, pe.Message, pe.ErrorCode)
		}
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) renderText(body string) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nLog in to the Chore Manager app to view more details.")
	if c.appURL != "" {
		b.WriteString("\n" + c.appURL)
	}
	return b.String()
}

func (c *Client) renderHTML(subject, body string) (string, error) {
	var b strings.Builder
	err := htmlLayout.Execute(&b, struct {
		Subject, Body, AppURL string
	}{subject, body, c.appURL})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return b.String(), nil
}
