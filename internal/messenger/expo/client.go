// Package expo sends push notifications through the Expo push service.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/messenger"
)

const (
	DefaultEndpoint  = "https://exp.host/--/api/v2/push/send"
	DefaultBatchSize = 100
)

type Config struct {
	Endpoint    string
	AccessToken string
	BatchSize   int
	Timeout     time.Duration
}

// Message is one entry of the Expo send payload.
type Message struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

type ticket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type response struct {
	Data   []ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type Client struct {
	http      *http.Client
	endpoint  string
	token     string
	batchSize int
}

var _ messenger.Channel = (*Client)(nil) //nolint:gochecknoglobals // compile-time check

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		endpoint:  cfg.Endpoint,
		token:     cfg.AccessToken,
		batchSize: cfg.BatchSize,
	}
}

func (c *Client) Platform() string {
	return "expo"
}

// Send posts the push in batches. A failed batch is logged and the remaining
// batches are still sent; the joined batch errors are returned.
func (c *Client) Send(ctx context.Context, p messenger.Push) error {
	if len(p.Tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"tenant_id":       p.TenantID.String(),
		"notification_id": p.NotificationID.String(),
	}

	var errs []error
	for start := 0; start < len(p.Tokens); start += c.batchSize {
		end := min(start+c.batchSize, len(p.Tokens))

		batch := make([]Message, 0, end-start)
		for _, tok := range p.Tokens[start:end] {
			batch = append(batch, Message{To: tok, Sound: "default", Title: p.Title, Body: p.Body, Data: data})
		}

		if err := c.sendBatch(ctx, batch); err != nil {
			log.Warn().Err(err).
				Str("component", "expo").
				Str("notification_id", p.NotificationID.String()).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("push batch failed")
			errs = append(errs, fmt.Errorf("batch %d-%d: %w", start, end, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("expo.Client.Send: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Client) sendBatch(ctx context.Context, batch []Message) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("%s: %s", parsed.Errors[0].Code, parsed.Errors[0].Message)
	}

	failed := 0
	for _, t := range parsed.Data {
		if t.Status == "error" {
			failed++
		}
	}
	if failed > 0 {
		log.Debug().Str("component", "expo").Int("failed", failed).Int("sent", len(batch)).Msg("push tickets rejected")
	}

	return nil
}
