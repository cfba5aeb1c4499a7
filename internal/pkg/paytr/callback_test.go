package paytr

import (
	"net/url"
	"testing"
)

func TestParseCallbackForm(t *testing.T) {
	form := url.Values{}
	form.Set("merchant_oid", "ORDER1")
	form.Set("status", "success")
	form.Set("total_amount", "10000")
	form.Set("hash", "abc")
	form.Set("test_mode", "1")

	cb, err := ParseCallbackForm(form)
	if err != nil {
		t.Fatalf("ParseCallbackForm() error = %v", err)
	}
	if cb.MerchantOID != "ORDER1" || cb.Status != "success" || cb.TotalAmount != "10000" || cb.Hash != "abc" {
		t.Fatalf("unexpected callback: %+v", cb)
	}
	if !cb.IsSuccess() {
		t.Fatal("expected success callback")
	}
}

func TestParseCallbackFormFailure(t *testing.T) {
	form := url.Values{}
	form.Set("merchant_oid", "ORDER1")
	form.Set("status", "failed")
	form.Set("total_amount", "10000")
	form.Set("hash", "abc")
	form.Set("failed_reason_code", "51")
	form.Set("failed_reason_msg", "insufficient funds")

	cb, err := ParseCallbackForm(form)
	if err != nil {
		t.Fatalf("ParseCallbackForm() error = %v", err)
	}
	if cb.IsSuccess() {
		t.Fatal("expected failure callback")
	}
	if cb.FailedReasonCode != "51" || cb.FailedReasonMsg != "insufficient funds" {
		t.Fatalf("unexpected failure fields: %+v", cb)
	}
}

func TestParseCallbackFormMissingFields(t *testing.T) {
	required := []string{"merchant_oid", "status", "total_amount", "hash"}
	for _, missing := range required {
		form := url.Values{}
		form.Set("merchant_oid", "ORDER1")
		form.Set("status", "success")
		form.Set("total_amount", "10000")
		form.Set("hash", "abc")
		form.Del(missing)

		if _, err := ParseCallbackForm(form); err == nil {
			t.Errorf("expected error when %s is missing", missing)
		}
	}
}
