package paytr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// Config holds PayTR merchant credentials.
// Injected explicitly so callers can run with test credentials.
type Config struct {
	MerchantID   string
	MerchantKey  string
	MerchantSalt string
	TestMode     bool
	BaseURL      string
	Timeout      time.Duration
}

// ComputeCallbackHash computes the notification hash PayTR sends with each
// callback: Base64(HMAC-SHA256(merchant_oid + merchant_salt + status + total_amount)),
// keyed by the merchant key. Field order is fixed, no delimiter.
func ComputeCallbackHash(cfg Config, merchantOID, status, totalAmount string) string {
	return sign(cfg.MerchantKey, merchantOID+cfg.MerchantSalt+status+totalAmount)
}

// VerifyCallbackHash compares the received callback hash against the expected one.
func VerifyCallbackHash(cfg Config, merchantOID, status, totalAmount, received string) bool {
	if cfg.MerchantKey == "" || cfg.MerchantSalt == "" || received == "" {
		return false
	}
	expected := ComputeCallbackHash(cfg, merchantOID, status, totalAmount)
	return hmac.Equal([]byte(expected), []byte(received))
}

// computeTokenHash computes the paytr_token for the get-token API:
// Base64(HMAC-SHA256(merchant_id + user_ip + merchant_oid + email + payment_amount +
// user_basket + no_installment + max_installment + currency + test_mode + merchant_salt)).
func computeTokenHash(cfg Config, userIP, merchantOID, email, paymentAmount, basket string, noInstallment, maxInstallment int, currency string, testMode int) string {
	base := cfg.MerchantID + userIP + merchantOID + email + paymentAmount + basket +
		strconv.Itoa(noInstallment) + strconv.Itoa(maxInstallment) + currency +
		strconv.Itoa(testMode) + cfg.MerchantSalt
	return sign(cfg.MerchantKey, base)
}

func sign(key, base string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
