package payment

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/modelia/modelia-api/internal/domain/transaction"
	"github.com/modelia/modelia-api/internal/middleware"
	"github.com/modelia/modelia-api/internal/pkg/paytr"
	"github.com/modelia/modelia-api/internal/pkg/response"
	"github.com/modelia/modelia-api/internal/pkg/validator"
)

// Handler handles payment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// InitPayTR handles POST /payments/paytr/init
func (h *Handler) InitPayTR(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req InitPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.InitPayTRPayment(r.Context(), userID, req, clientIP(r))
	if err != nil {
		h.writeInitError(w, err)
		return
	}

	response.Created(w, result)
}

// InitStripe handles POST /payments/stripe/intent
func (h *Handler) InitStripe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req InitPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.InitStripeIntent(r.Context(), userID, req)
	if err != nil {
		h.writeInitError(w, err)
		return
	}

	response.Created(w, result)
}

func (h *Handler) writeInitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidPriceRatio):
		// Deliberately vague: the floor ratio is not for clients to probe
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_AMOUNT", "Amount not accepted for the requested credits")
	default:
		log.Error().Err(err).Msg("Payment initialization failed")
		response.InternalError(w)
	}
}

// History handles GET /payments
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := parsePagination(r)

	items, err := h.service.GetHistory(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load payment history")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"payments": items,
		"limit":    limit,
		"offset":   offset,
	})
}

// PayTRCallback handles POST /webhooks/paytr. PayTR requires a plain-text
// body: anything other than a literal OK is redelivered for about a day.
func (h *Handler) PayTRCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writePlain(w, http.StatusBadRequest, "HASH_ERROR")
		return
	}

	cb, err := paytr.ParseCallbackForm(r.PostForm)
	if err != nil {
		writePlain(w, http.StatusBadRequest, "HASH_ERROR")
		return
	}

	switch h.service.SettlePayTRCallback(r.Context(), *cb) {
	case PayTRResultOK:
		writePlain(w, http.StatusOK, "OK")
	case PayTRResultBadHash:
		writePlain(w, http.StatusBadRequest, "HASH_ERROR")
	case PayTRResultUnknownOrder:
		writePlain(w, http.StatusNotFound, "TRANSACTION_NOT_FOUND")
	default:
		writePlain(w, http.StatusInternalServerError, "UPDATE_ERROR")
	}
}

// StripeWebhook handles POST /webhooks/stripe. The raw body bytes feed the
// signature check, so the payload is read before any parsing.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeStripeError(w, "cannot read body")
		return
	}

	err = h.service.SettleStripeEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"received":true}`))
	case errors.Is(err, ErrWebhookVerification):
		writeStripeError(w, "signature verification failed")
	case errors.Is(err, transaction.ErrNotFound):
		writePlain(w, http.StatusNotFound, "Webhook Error: unknown transaction")
	default:
		log.Error().Err(err).Msg("Stripe webhook settlement failed")
		writePlain(w, http.StatusInternalServerError, "Webhook Error: settlement failed")
	}
}

func writeStripeError(w http.ResponseWriter, msg string) {
	writePlain(w, http.StatusBadRequest, "Webhook Error: "+msg)
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from X-Forwarded-For
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// Routes returns authenticated payment routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.History)
	r.Post("/paytr/init", h.InitPayTR)
	r.Post("/stripe/intent", h.InitStripe)
	return r
}

// WebhookRoutes returns provider callback routes. These are authenticated by
// signature, never by session, and must stay outside the auth middleware.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/paytr", h.PayTRCallback)
	r.Post("/stripe", h.StripeWebhook)
	return r
}
