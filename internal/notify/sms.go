// sms.go implements SMS delivery through a generic HTTP gateway: a JSON POST
// {from, to, body} authenticated with a bearer token. Any SMS provider with a
// compatible relay endpoint can be plugged in without code changes.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/logfold/logfold/internal/config"
)

// SMSGateway sends text messages through the configured HTTP relay.
type SMSGateway struct {
	cfg    config.SMSGatewayConfig
	client *http.Client
}

// NewSMSGateway creates a gateway client with a bounded request timeout.
func NewSMSGateway(cfg config.SMSGatewayConfig) *SMSGateway {
	return &SMSGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether a gateway URL has been set.
func (g *SMSGateway) Configured() bool {
	return g.cfg.URL != ""
}

// SendSMS posts one message to the gateway.
func (g *SMSGateway) SendSMS(to, body string) error {
	if !g.Configured() {
		return fmt.Errorf("sms gateway not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"from": g.cfg.From,
		"to":   to,
		"body": body,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize sms payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}
