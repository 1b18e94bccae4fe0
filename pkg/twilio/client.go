package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calderonlabs/tienda-backend/pkg/config"
)

const (
	apiBase        = "https://api.twilio.com/2010-04-01"
	whatsappPrefix = "whatsapp:"
)

// Sender delivers a WhatsApp message to a phone number. The agent pipeline
// treats delivery as a sink: a failure is reported, never retried here.
type Sender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

// Client calls the Twilio Messages REST endpoint.
type Client struct {
	accountSID string
	authToken  string
	from       string
	http       *http.Client
}

// New builds a Twilio client from config. Returns nil when credentials are
// missing, which disables outbound delivery.
func New(cfg config.TwilioConfig) *Client {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.PhoneNumber == "" {
		return nil
	}
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.PhoneNumber,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// SendWhatsApp posts one message to the Twilio API.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", whatsappPrefix+to)
	form.Set("From", whatsappPrefix+c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", apiBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send twilio message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return nil
}
