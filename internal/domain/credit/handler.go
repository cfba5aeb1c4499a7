package credit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/modelia/modelia-api/internal/middleware"
	"github.com/modelia/modelia-api/internal/pkg/response"
)

// Handler handles credit HTTP requests
type Handler struct {
	repo Repository
}

// NewHandler creates credit handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// GetBalance handles GET /credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.repo.GetBalance(r.Context(), userID)
	if err != nil {
		if err == ErrProfileNotFound {
			response.NotFound(w, "profile not found")
			return
		}
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to get balance")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]int{"credits": balance})
}

// ListLedger handles GET /credits/ledger
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	pagination := Pagination{Limit: 20}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			pagination.Limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			pagination.Offset = v
		}
	}

	entries, err := h.repo.ListEntries(r.Context(), userID, pagination)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to list ledger entries")
		response.InternalError(w)
		return
	}

	response.OK(w, entries)
}

// Routes returns credit router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/balance", h.GetBalance)
		r.Get("/ledger", h.ListLedger)
	})
	return r
}
