package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RateSource returns an exchange rate for a currency pair
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Client fetches exchange rates from an open rates API and caches them in Redis
type Client struct {
	http     *resty.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient creates an exchange rate client. The redis client may be nil,
// in which case every lookup hits the rates API.
func NewClient(baseURL string, redisClient *redis.Client, cacheTTL time.Duration) *Client {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10 * time.Second),
		redis:    redisClient,
		cacheTTL: cacheTTL,
	}
}

type ratesResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// GetRate returns the conversion rate from one currency to another
func (c *Client) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return decimal.Zero, fmt.Errorf("currency pair is required")
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	cacheKey := "fx:" + from + ":" + to
	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			if rate, err := decimal.NewFromString(cached); err == nil {
				return rate, nil
			}
		}
	}

	var out ratesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/latest/" + from)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange rate request: %w", err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("exchange rate request: unexpected status %d", resp.StatusCode())
	}

	raw, ok := out.Rates[to]
	if !ok || raw <= 0 {
		return decimal.Zero, fmt.Errorf("no rate for %s/%s", from, to)
	}
	rate := decimal.NewFromFloat(raw)

	if c.redis != nil {
		if err := c.redis.Set(ctx, cacheKey, rate.String(), c.cacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("pair", from+"/"+to).Msg("Failed to cache exchange rate")
		}
	}

	return rate, nil
}
