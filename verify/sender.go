// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/Ranidpz/qrinfo-sub000/models"
)

// Sender delivers one-time codes over a single channel.
type Sender interface {
	Send(ctx context.Context, method, phone, code, locale string) error
}

// GatewaySender posts delivery requests to an external OTP gateway.
type GatewaySender struct {
	url    string
	client *http.Client
}

func NewGatewaySender(url string) *GatewaySender {
	return &GatewaySender{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (g *GatewaySender) Send(ctx context.Context, method, phone, code, locale string) error {
	body, err := json.Marshal(map[string]string{
		"method": method,
		"phone":  phone,
		"code":   code,
		"locale": locale,
	})
	if err != nil {
		return fmt.Errorf("failed to encode delivery request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery gateway returned %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes the code to the log instead of delivering it.
// For local development without a gateway.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, method, phone, code, locale string) error {
	slog.Info("otp delivery (dev sender)", "method", method, "phone", phone, "code", code)
	return nil
}

// deliver tries WhatsApp first and falls back to SMS, retrying each
// channel a few times before giving up. Returns the channel that
// succeeded.
func deliver(ctx context.Context, sender Sender, phone, code, locale string) (string, error) {
	sendVia := func(method string) error {
		return retry.Do(
			func() error { return sender.Send(ctx, method, phone, code, locale) },
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(500*time.Millisecond),
			retry.LastErrorOnly(true),
		)
	}

	if err := sendVia(models.MethodWhatsApp); err == nil {
		return models.MethodWhatsApp, nil
	} else {
		slog.Warn("whatsapp delivery failed, falling back to sms", "error", err)
	}
	if err := sendVia(models.MethodSMS); err != nil {
		return "", fmt.Errorf("all delivery channels failed: %w", err)
	}
	return models.MethodSMS, nil
}
