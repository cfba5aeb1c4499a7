package paytr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateToken(t *testing.T) {
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/odeme/api/get-token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm() error = %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "token": "tok123"})
	}))
	defer srv.Close()

	cfg := testCfg
	cfg.BaseURL = srv.URL
	client := NewClient(cfg)

	resp, err := client.CreateToken(context.Background(), TokenRequest{
		MerchantOID:    "ORDER1",
		UserIP:         "1.2.3.4",
		Email:          "user@example.com",
		PaymentAmount:  10000,
		BasketItemName: "100 credits",
	})
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}
	if resp.Token != "tok123" {
		t.Fatalf("Token = %q, want tok123", resp.Token)
	}

	if gotForm["merchant_id"] != cfg.MerchantID {
		t.Errorf("merchant_id = %q", gotForm["merchant_id"])
	}
	if gotForm["payment_amount"] != "10000" {
		t.Errorf("payment_amount = %q", gotForm["payment_amount"])
	}
	if gotForm["currency"] != "TL" {
		t.Errorf("currency = %q, want default TL", gotForm["currency"])
	}

	wantToken := computeTokenHash(cfg, "1.2.3.4", "ORDER1", "user@example.com",
		"10000", gotForm["user_basket"], 0, 0, "TL", 0)
	if gotForm["paytr_token"] != wantToken {
		t.Errorf("paytr_token = %q, want %q", gotForm["paytr_token"], wantToken)
	}

	raw, err := base64.StdEncoding.DecodeString(gotForm["user_basket"])
	if err != nil {
		t.Fatalf("user_basket is not base64: %v", err)
	}
	var basket [][]interface{}
	if err := json.Unmarshal(raw, &basket); err != nil {
		t.Fatalf("user_basket is not JSON: %v", err)
	}
	if len(basket) != 1 || basket[0][0] != "100 credits" {
		t.Fatalf("unexpected basket: %v", basket)
	}
}

func TestCreateTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "failed", "reason": "bad hash"})
	}))
	defer srv.Close()

	cfg := testCfg
	cfg.BaseURL = srv.URL
	client := NewClient(cfg)

	_, err := client.CreateToken(context.Background(), TokenRequest{
		MerchantOID:   "ORDER1",
		UserIP:        "1.2.3.4",
		Email:         "user@example.com",
		PaymentAmount: 10000,
	})
	if err == nil {
		t.Fatal("expected error for rejected token request")
	}
}

func TestCreateTokenValidation(t *testing.T) {
	client := NewClient(testCfg)

	if _, err := client.CreateToken(context.Background(), TokenRequest{PaymentAmount: 100}); err == nil {
		t.Fatal("expected error for missing merchant_oid")
	}
	if _, err := client.CreateToken(context.Background(), TokenRequest{MerchantOID: "X"}); err == nil {
		t.Fatal("expected error for non-positive amount")
	}

	noCreds := NewClient(Config{})
	if _, err := noCreds.CreateToken(context.Background(), TokenRequest{MerchantOID: "X", PaymentAmount: 100}); err == nil {
		t.Fatal("expected error for empty credentials")
	}
}

func TestIframeURL(t *testing.T) {
	cfg := testCfg
	cfg.BaseURL = "https://paytr.example"
	client := NewClient(cfg)

	want := "https://paytr.example/odeme/guvenli/tok123"
	if got := client.IframeURL("tok123"); got != want {
		t.Fatalf("IframeURL() = %q, want %q", got, want)
	}
}
