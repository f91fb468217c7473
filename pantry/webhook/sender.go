package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/markeidelman/clinicweb/pantry/retry"
)

// DeliveryIDHeader identifies one logical delivery across its retries.
const DeliveryIDHeader = "X-Delivery-ID"

// SenderConfig configures the webhook sender.
type SenderConfig struct {
	// HTTPClient defaults to a client with Timeout per attempt.
	HTTPClient *http.Client

	// Timeout bounds each attempt. Default: 10 seconds.
	Timeout time.Duration

	// Retry controls attempts and backoff. RetryIf is always
	// retry.IsRetryableError: 429, 5xx and transport errors are retried,
	// other statuses are final.
	Retry retry.Config

	// Headers are added to every request.
	Headers map[string]string

	// UserAgent defaults to "clinicweb-webhook/1.0".
	UserAgent string

	// OnDelivery is called after every attempt.
	OnDelivery func(url string, result DeliveryResult)
}

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	DeliveryID string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	Success    bool
	Error      error
}

// Sender POSTs payloads to webhook URLs with retries.
type Sender struct {
	client     *http.Client
	retry      retry.Config
	headers    map[string]string
	userAgent  string
	onDelivery func(url string, result DeliveryResult)
}

// NewSender creates a Sender.
func NewSender(cfg SenderConfig) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "clinicweb-webhook/1.0"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	rc := cfg.Retry
	if rc.MaxAttempts <= 0 {
		rc = retry.DefaultConfig()
		rc.InitialDelay = 500 * time.Millisecond
		rc.MaxDelay = 5 * time.Second
	}
	rc.RetryIf = retry.IsRetryableError

	return &Sender{
		client:     client,
		retry:      rc,
		headers:    cfg.Headers,
		userAgent:  cfg.UserAgent,
		onDelivery: cfg.OnDelivery,
	}
}

// Send POSTs payload as JSON to target and returns the final attempt. Every
// attempt carries the same delivery ID. A failed delivery returns an error
// wrapping ErrDeliveryFailed and the last attempt's error. Errors never
// contain target: deploy hook URLs carry their access token.
func (s *Sender) Send(ctx context.Context, target string, payload []byte) (DeliveryResult, error) {
	deliveryID := uuid.NewString()
	attempt := 0
	var last DeliveryResult

	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		attempt++
		last = s.attempt(ctx, target, payload, deliveryID, attempt)
		if s.onDelivery != nil {
			s.onDelivery(target, last)
		}
		return last.Error
	})
	if err != nil {
		return last, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return last, nil
}

func (s *Sender) attempt(ctx context.Context, target string, payload []byte, deliveryID string, n int) DeliveryResult {
	start := time.Now()
	result := DeliveryResult{DeliveryID: deliveryID, Attempt: n}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		result.Error = retry.PermanentError(fmt.Errorf("webhook: build request: %w", stripURL(err)))
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(DeliveryIDHeader, deliveryID)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("webhook: request failed: %w", stripURL(err))
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		result.Success = true
		return result
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	result.Error = &retry.StatusError{Code: resp.StatusCode, Body: string(body)}
	return result
}

// stripURL drops the request URL that *url.Error puts in its message.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Op == "" {
			return ue.Err
		}
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
