package stripeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const defaultBaseURL = "https://api.stripe.com"

var ErrEventNotFound = errors.New("event not found")

// Config holds Stripe API credentials and client settings
type Config struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
	Tolerance     time.Duration
}

// Client is a minimal Stripe REST client covering payment intents and events
type Client struct {
	cfg     Config
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a Stripe API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	// Trips after consecutive retrieval failures so a Stripe outage does not
	// stall every webhook worker on a full timeout.
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "stripe-events",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Stripe-Version", "2024-06-20"),
		breaker: breaker,
	}
}

// apiError mirrors Stripe's error envelope
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// PaymentIntent is the subset of the payment_intent object this service uses
type PaymentIntent struct {
	ID               string            `json:"id"`
	ClientSecret     string            `json:"client_secret"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// Event is the subset of the event object this service uses
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// IntentRequest holds payment intent creation parameters
type IntentRequest struct {
	AmountMinor int64 // smallest currency unit
	Currency    string
	Description string
	Metadata    map[string]string
}

// CreatePaymentIntent creates a payment intent and returns its client secret
func (c *Client) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntent, error) {
	if c.cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe config error: secret key is empty")
	}
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}

	form := map[string]string{
		"amount":                             strconv.FormatInt(req.AmountMinor, 10),
		"currency":                           strings.ToLower(req.Currency),
		"automatic_payment_methods[enabled]": "true",
	}
	if req.Description != "" {
		form["description"] = req.Description
	}
	for k, v := range req.Metadata {
		form["metadata["+k+"]"] = v
	}

	var out PaymentIntent
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.cfg.SecretKey).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/payment_intents")
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("stripe create intent: %s (%d)", apiErr.Error.Message, resp.StatusCode())
	}

	return &out, nil
}

// RetrieveEvent fetches an event by id from the Stripe API. Used as the
// fallback authenticity check when no webhook signing secret is configured:
// only a real provider event is retrievable under its id.
func (c *Client) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	if c.cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe config error: secret key is empty")
	}
	if id == "" {
		return nil, fmt.Errorf("validation error: event id is required")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var out Event
		var apiErr apiError
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(c.cfg.SecretKey).
			SetResult(&out).
			SetError(&apiErr).
			Get("/v1/events/" + id)
		if err != nil {
			return nil, fmt.Errorf("stripe retrieve event: %w", err)
		}
		if resp.StatusCode() == 404 {
			return nil, ErrEventNotFound
		}
		if resp.IsError() {
			return nil, fmt.Errorf("stripe retrieve event: %s (%d)", apiErr.Error.Message, resp.StatusCode())
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*Event), nil
}

// VerifyWebhook authenticates a raw webhook payload. With a signing secret it
// verifies the Stripe-Signature header over the exact bytes; without one it
// falls back to retrieving the event by id from the API.
func (c *Client) VerifyWebhook(ctx context.Context, payload []byte, sigHeader string) (*Event, error) {
	if c.cfg.WebhookSecret != "" {
		if err := VerifySignature(payload, sigHeader, c.cfg.WebhookSecret, c.cfg.Tolerance, time.Now()); err != nil {
			return nil, err
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("malformed event payload: %w", err)
		}
		return &event, nil
	}

	// Fallback trust model: a retrievable event id proves provenance.
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.ID == "" {
		return nil, fmt.Errorf("malformed event payload")
	}
	return c.RetrieveEvent(ctx, probe.ID)
}
