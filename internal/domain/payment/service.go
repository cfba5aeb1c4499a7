package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/modelia/modelia-api/internal/domain/credit"
	"github.com/modelia/modelia-api/internal/domain/transaction"
	"github.com/modelia/modelia-api/internal/domain/user"
	"github.com/modelia/modelia-api/internal/pkg/alert"
	"github.com/modelia/modelia-api/internal/pkg/exchange"
	"github.com/modelia/modelia-api/internal/pkg/paytr"
	"github.com/modelia/modelia-api/internal/pkg/stripeapi"
)

// PayTR settles in Turkish lira; callbacks report the charged amount in kuruş
const paytrSettlementCurrency = "TRY"

// PayTRTokenClient issues iframe tokens for new PayTR orders
type PayTRTokenClient interface {
	CreateToken(ctx context.Context, req paytr.TokenRequest) (*paytr.TokenResponse, error)
	IframeURL(token string) string
}

// StripeClient covers the Stripe operations the settlement flow needs
type StripeClient interface {
	CreatePaymentIntent(ctx context.Context, req stripeapi.IntentRequest) (*stripeapi.PaymentIntent, error)
	VerifyWebhook(ctx context.Context, payload []byte, sigHeader string) (*stripeapi.Event, error)
}

// Config holds payment service settings
type Config struct {
	PayTR          paytr.Config
	FloorRatio     decimal.Decimal
	StripeCurrency string
	OkURL          string
	FailURL        string
}

// Service handles payment intent creation and callback settlement
type Service struct {
	transactions transaction.Repository
	credits      credit.Repository
	users        user.Repository
	paytrClient  PayTRTokenClient
	stripeClient StripeClient
	rates        exchange.RateSource
	alerts       *alert.Service
	cfg          Config
}

// NewService creates payment service
func NewService(
	transactions transaction.Repository,
	credits credit.Repository,
	users user.Repository,
	paytrClient PayTRTokenClient,
	stripeClient StripeClient,
	rates exchange.RateSource,
	alerts *alert.Service,
	cfg Config,
) *Service {
	if cfg.StripeCurrency == "" {
		cfg.StripeCurrency = "USD"
	}
	return &Service{
		transactions: transactions,
		credits:      credits,
		users:        users,
		paytrClient:  paytrClient,
		stripeClient: stripeClient,
		rates:        rates,
		alerts:       alerts,
		cfg:          cfg,
	}
}

// ---------- Intent creation ----------

// InitPayTRPayment validates a purchase request, records a pending
// transaction and requests a PayTR iframe token for it.
func (s *Service) InitPayTRPayment(ctx context.Context, userID uuid.UUID, req InitPaymentRequest, clientIP string) (*InitPayTRResponse, error) {
	amount, currency, err := s.parseAmount(req)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	chargeAmount, err := s.convert(ctx, amount, currency, paytrSettlementCurrency)
	if err != nil {
		return nil, fmt.Errorf("currency conversion: %w", err)
	}

	tx := &transaction.Transaction{
		MerchantOrderID: newMerchantOrderID(),
		UserID:          userID,
		Credits:         req.Credits,
		Amount:          amount,
		Currency:        currency,
		ProviderAmount:  toMinorUnits(chargeAmount),
		PaymentMethod:   transaction.MethodPayTR,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	token, err := s.paytrClient.CreateToken(ctx, paytr.TokenRequest{
		MerchantOID:    tx.MerchantOrderID,
		UserIP:         clientIP,
		Email:          u.Email,
		PaymentAmount:  tx.ProviderAmount,
		Currency:       "TL",
		BasketItemName: fmt.Sprintf("%d credits", req.Credits),
		UserName:       u.DisplayName,
		OkURL:          s.cfg.OkURL,
		FailURL:        s.cfg.FailURL,
	})
	if err != nil {
		return nil, fmt.Errorf("paytr token: %w", err)
	}

	return &InitPayTRResponse{
		MerchantOrderID: tx.MerchantOrderID,
		Token:           token.Token,
		IframeURL:       s.paytrClient.IframeURL(token.Token),
	}, nil
}

// InitStripeIntent validates a purchase request, records a pending
// transaction and creates a Stripe payment intent carrying the merchant
// order id in its metadata.
func (s *Service) InitStripeIntent(ctx context.Context, userID uuid.UUID, req InitPaymentRequest) (*InitStripeResponse, error) {
	amount, currency, err := s.parseAmount(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	chargeAmount, err := s.convert(ctx, amount, currency, s.cfg.StripeCurrency)
	if err != nil {
		return nil, fmt.Errorf("currency conversion: %w", err)
	}

	tx := &transaction.Transaction{
		MerchantOrderID: newMerchantOrderID(),
		UserID:          userID,
		Credits:         req.Credits,
		Amount:          amount,
		Currency:        currency,
		ProviderAmount:  toMinorUnits(chargeAmount),
		PaymentMethod:   transaction.MethodStripe,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	intent, err := s.stripeClient.CreatePaymentIntent(ctx, stripeapi.IntentRequest{
		AmountMinor: tx.ProviderAmount,
		Currency:    s.cfg.StripeCurrency,
		Description: fmt.Sprintf("%d credits", req.Credits),
		Metadata: map[string]string{
			"merchant_order_id": tx.MerchantOrderID,
			"user_id":           userID.String(),
			"credits":           strconv.Itoa(req.Credits),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe intent: %w", err)
	}

	return &InitStripeResponse{
		MerchantOrderID: tx.MerchantOrderID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

func (s *Service) parseAmount(req InitPaymentRequest) (decimal.Decimal, string, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return decimal.Zero, "", ErrInvalidPriceRatio
	}
	if err := ValidatePriceFloor(amount, req.Credits, s.cfg.FloorRatio); err != nil {
		return decimal.Zero, "", err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = paytrSettlementCurrency
	}
	return amount, currency, nil
}

func (s *Service) convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	rate, err := s.rates.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// ---------- PayTR settlement ----------

// PayTRResult is the settlement outcome the handler maps onto PayTR's
// plain-text acknowledgment contract.
type PayTRResult int

const (
	// PayTRResultOK acknowledges the callback; PayTR stops redelivering.
	// Covers first settlement, duplicates and reported failures alike.
	PayTRResultOK PayTRResult = iota
	// PayTRResultBadHash rejects an unauthenticated callback
	PayTRResultBadHash
	// PayTRResultUnknownOrder reports an order this system never created
	PayTRResultUnknownOrder
	// PayTRResultStorageError asks the provider to retry later
	PayTRResultStorageError
)

// SettlePayTRCallback runs the callback state machine:
// verify hash, look up the transaction, short-circuit duplicates, then
// settle (mark terminal, grant credits) exactly once.
func (s *Service) SettlePayTRCallback(ctx context.Context, cb paytr.Callback) PayTRResult {
	if !paytr.VerifyCallbackHash(s.cfg.PayTR, cb.MerchantOID, cb.Status, cb.TotalAmount, cb.Hash) {
		log.Warn().
			Str("merchant_oid", cb.MerchantOID).
			Str("status", cb.Status).
			Msg("PayTR callback hash mismatch")
		return PayTRResultBadHash
	}

	tx, err := s.transactions.GetByOrderID(ctx, cb.MerchantOID)
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound) {
			log.Warn().Str("merchant_oid", cb.MerchantOID).Msg("PayTR callback for unknown order")
			return PayTRResultUnknownOrder
		}
		log.Error().Err(err).Str("merchant_oid", cb.MerchantOID).Msg("PayTR callback lookup failed")
		return PayTRResultStorageError
	}

	// Duplicate or late delivery: acknowledge so the provider stops
	// retrying, touch nothing.
	if tx.IsTerminal() {
		log.Info().
			Str("merchant_oid", cb.MerchantOID).
			Str("status", string(tx.Status)).
			Msg("PayTR callback for settled transaction, skipping")
		return PayTRResultOK
	}

	if !cb.IsSuccess() {
		return s.settleFailure(ctx, tx, cb.FailedReasonCode, cb.FailedReasonMsg)
	}

	reported, err := strconv.ParseInt(cb.TotalAmount, 10, 64)
	if err != nil || reported != tx.ProviderAmount {
		s.alerts.Send(ctx, alert.Alert{
			Code:    "AMOUNT_MISMATCH",
			Message: "authenticated PayTR callback reports unexpected amount",
			Fields: map[string]string{
				"merchant_oid": cb.MerchantOID,
				"reported":     cb.TotalAmount,
				"expected":     strconv.FormatInt(tx.ProviderAmount, 10),
			},
		})
		return PayTRResultStorageError
	}

	return s.settleSuccess(ctx, tx, cb.MerchantOID)
}

func (s *Service) settleFailure(ctx context.Context, tx *transaction.Transaction, reasonCode, reasonMsg string) PayTRResult {
	err := s.transactions.MarkFailed(ctx, tx.ID, reasonCode, reasonMsg)
	switch {
	case err == nil, errors.Is(err, transaction.ErrAlreadySettled):
		return PayTRResultOK
	case errors.Is(err, transaction.ErrNotFound):
		return PayTRResultUnknownOrder
	default:
		log.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("Failed to mark transaction failed")
		return PayTRResultStorageError
	}
}

func (s *Service) settleSuccess(ctx context.Context, tx *transaction.Transaction, providerReference string) PayTRResult {
	err := s.transactions.MarkCompleted(ctx, tx.ID, providerReference)
	switch {
	case err == nil:
	case errors.Is(err, transaction.ErrAlreadySettled):
		// A concurrent delivery won the conditional update; its credit
		// grant is (or will be) the only one thanks to the applied marker.
		return PayTRResultOK
	case errors.Is(err, transaction.ErrNotFound):
		return PayTRResultUnknownOrder
	default:
		// Ledger write failed before any state change: safe to ask the
		// provider to retry.
		log.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("Failed to mark transaction completed")
		return PayTRResultStorageError
	}

	s.grantCredits(ctx, tx)
	return PayTRResultOK
}

// grantCredits applies a completed transaction's credits. Failures here never
// propagate to the provider response: the payment was charged and the ledger
// already says completed, so telling the provider to retry would risk nothing
// but re-charging side effects. Instead the failure raises an operational
// alert for manual reconciliation.
func (s *Service) grantCredits(ctx context.Context, tx *transaction.Transaction) {
	desc := fmt.Sprintf("purchase via %s: order %s", tx.PaymentMethod, tx.MerchantOrderID)
	err := s.credits.ApplyPurchase(ctx, tx.UserID, tx.Credits, tx.ID, desc)
	switch {
	case err == nil, errors.Is(err, credit.ErrAlreadyApplied):
		return
	case errors.Is(err, credit.ErrProfileNotFound):
		s.alerts.Send(ctx, alert.Alert{
			Code:    "PROFILE_ERROR",
			Message: "payment completed but user profile is missing, credits not applied",
			Fields: map[string]string{
				"transaction_id": tx.ID.String(),
				"merchant_oid":   tx.MerchantOrderID,
				"user_id":        tx.UserID.String(),
				"credits":        strconv.Itoa(tx.Credits),
			},
		})
	default:
		s.alerts.Send(ctx, alert.Alert{
			Code:    "CREDIT_ERROR",
			Message: "payment completed but credit grant failed, manual reconciliation required",
			Fields: map[string]string{
				"transaction_id": tx.ID.String(),
				"merchant_oid":   tx.MerchantOrderID,
				"user_id":        tx.UserID.String(),
				"credits":        strconv.Itoa(tx.Credits),
				"error":          err.Error(),
			},
		})
	}
}

// ---------- Stripe settlement ----------

// SettleStripeEvent authenticates a raw webhook payload and settles the
// transaction it references. The payload must be the exact request bytes:
// the signature check operates on them unparsed.
func (s *Service) SettleStripeEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.stripeClient.VerifyWebhook(ctx, payload, sigHeader)
	if err != nil {
		log.Warn().Err(err).Msg("Stripe webhook verification failed")
		return fmt.Errorf("%w: %v", ErrWebhookVerification, err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		log.Debug().Str("type", event.Type).Msg("Ignoring unhandled Stripe event type")
		return nil
	}

	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return fmt.Errorf("%w: malformed intent object", ErrWebhookVerification)
	}

	orderID := intent.Metadata["merchant_order_id"]
	if orderID == "" {
		log.Warn().Str("event_id", event.ID).Msg("Stripe event without merchant order id")
		return transaction.ErrNotFound
	}

	tx, err := s.transactions.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if tx.IsTerminal() {
		log.Info().
			Str("merchant_order_id", orderID).
			Str("status", string(tx.Status)).
			Msg("Stripe event for settled transaction, skipping")
		return nil
	}

	if event.Type == "payment_intent.payment_failed" {
		reasonCode, reasonMsg := "payment_failed", ""
		if intent.LastPaymentError != nil {
			if intent.LastPaymentError.Code != "" {
				reasonCode = intent.LastPaymentError.Code
			}
			reasonMsg = intent.LastPaymentError.Message
		}
		if err := s.transactions.MarkFailed(ctx, tx.ID, reasonCode, reasonMsg); err != nil &&
			!errors.Is(err, transaction.ErrAlreadySettled) {
			return err
		}
		return nil
	}

	if intent.Amount != tx.ProviderAmount {
		s.alerts.Send(ctx, alert.Alert{
			Code:    "AMOUNT_MISMATCH",
			Message: "authenticated Stripe event reports unexpected amount",
			Fields: map[string]string{
				"merchant_order_id": orderID,
				"reported":          strconv.FormatInt(intent.Amount, 10),
				"expected":          strconv.FormatInt(tx.ProviderAmount, 10),
			},
		})
		return ErrAmountMismatch
	}

	if err := s.transactions.MarkCompleted(ctx, tx.ID, intent.ID); err != nil {
		if errors.Is(err, transaction.ErrAlreadySettled) {
			return nil
		}
		return err
	}

	s.grantCredits(ctx, tx)
	return nil
}

// ---------- History ----------

// GetHistory returns a user's payment attempts, newest first
func (s *Service) GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]HistoryItem, error) {
	txs, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, HistoryItem{
			ID:              tx.ID,
			MerchantOrderID: tx.MerchantOrderID,
			Credits:         tx.Credits,
			Amount:          tx.Amount.StringFixed(2),
			Currency:        tx.Currency,
			PaymentMethod:   string(tx.PaymentMethod),
			Status:          string(tx.Status),
			CreatedAt:       tx.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return items, nil
}

// newMerchantOrderID generates a PayTR-safe (alphanumeric) order id
func newMerchantOrderID() string {
	return "MD" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
