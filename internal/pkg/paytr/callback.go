package paytr

import (
	"fmt"
	"net/url"
)

// StatusSuccess is the status value PayTR sends for a successful payment.
// Anything else is treated as a failure report.
const StatusSuccess = "success"

// Callback represents PayTR notification (callback URL) data.
// PayTR sends data as form parameters, not JSON.
type Callback struct {
	MerchantOID      string
	Status           string
	TotalAmount      string // charged amount in kuruş, as sent by PayTR
	Hash             string
	FailedReasonCode string
	FailedReasonMsg  string
	TestMode         string
}

// IsSuccess reports whether the provider says the payment went through
func (c Callback) IsSuccess() bool {
	return c.Status == StatusSuccess
}

// ParseCallbackForm parses form-encoded callback data into a structured payload
func ParseCallbackForm(form url.Values) (*Callback, error) {
	oid := form.Get("merchant_oid")
	status := form.Get("status")
	totalAmount := form.Get("total_amount")
	hash := form.Get("hash")

	if oid == "" {
		return nil, fmt.Errorf("merchant_oid is required")
	}
	if status == "" {
		return nil, fmt.Errorf("status is required")
	}
	if totalAmount == "" {
		return nil, fmt.Errorf("total_amount is required")
	}
	if hash == "" {
		return nil, fmt.Errorf("hash is required")
	}

	return &Callback{
		MerchantOID:      oid,
		Status:           status,
		TotalAmount:      totalAmount,
		Hash:             hash,
		FailedReasonCode: form.Get("failed_reason_code"),
		FailedReasonMsg:  form.Get("failed_reason_msg"),
		TestMode:         form.Get("test_mode"),
	}, nil
}
