package paytr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://www.paytr.com"

// Client talks to the PayTR get-token API
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient creates a PayTR API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
	}
}

// TokenRequest holds the fields PayTR needs to issue an iframe token
type TokenRequest struct {
	MerchantOID    string
	UserIP         string
	Email          string
	PaymentAmount  int64 // kuruş
	Currency       string
	BasketItemName string
	UserName       string
	OkURL          string
	FailURL        string
	NoInstallment  int
	MaxInstallment int
}

// TokenResponse is the get-token API response
type TokenResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// CreateToken requests an iframe token for a payment. The request carries its
// own HMAC (paytr_token) over the order fields so PayTR can authenticate us.
func (c *Client) CreateToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if c.cfg.MerchantID == "" || c.cfg.MerchantKey == "" || c.cfg.MerchantSalt == "" {
		return nil, fmt.Errorf("paytr config error: merchant credentials are empty")
	}
	if req.MerchantOID == "" {
		return nil, fmt.Errorf("validation error: merchant_oid is required")
	}
	if req.PaymentAmount <= 0 {
		return nil, fmt.Errorf("validation error: payment amount must be > 0")
	}

	currency := req.Currency
	if currency == "" {
		currency = "TL"
	}

	amount := strconv.FormatInt(req.PaymentAmount, 10)
	basket := encodeBasket(req.BasketItemName, amount)

	testMode := 0
	if c.cfg.TestMode {
		testMode = 1
	}

	token := computeTokenHash(c.cfg, req.UserIP, req.MerchantOID, req.Email,
		amount, basket, req.NoInstallment, req.MaxInstallment, currency, testMode)

	var out TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"merchant_id":       c.cfg.MerchantID,
			"user_ip":           req.UserIP,
			"merchant_oid":      req.MerchantOID,
			"email":             req.Email,
			"payment_amount":    amount,
			"paytr_token":       token,
			"user_basket":       basket,
			"debug_on":          "0",
			"no_installment":    strconv.Itoa(req.NoInstallment),
			"max_installment":   strconv.Itoa(req.MaxInstallment),
			"user_name":         req.UserName,
			"user_address":      "NA",
			"user_phone":        "NA",
			"merchant_ok_url":   req.OkURL,
			"merchant_fail_url": req.FailURL,
			"currency":          currency,
			"test_mode":         strconv.Itoa(testMode),
		}).
		SetResult(&out).
		Post("/odeme/api/get-token")
	if err != nil {
		return nil, fmt.Errorf("paytr get-token request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("paytr get-token: unexpected status %d", resp.StatusCode())
	}
	if out.Status != "success" {
		return nil, fmt.Errorf("paytr get-token rejected: %s", out.Reason)
	}

	return &out, nil
}

// IframeURL returns the payment page URL for an issued token
func (c *Client) IframeURL(token string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/odeme/guvenli/" + token
}

// encodeBasket builds the base64 JSON basket PayTR expects:
// [["item name", "unit price", quantity], ...]
func encodeBasket(itemName, amount string) string {
	if itemName == "" {
		itemName = "credits"
	}
	raw, _ := json.Marshal([][]interface{}{{itemName, amount, 1}})
	return base64.StdEncoding.EncodeToString(raw)
}
