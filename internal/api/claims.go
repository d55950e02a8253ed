package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/auth"
	"github.com/starford/homehistory/internal/claim"
	"github.com/starford/homehistory/internal/models"
)

// ClaimService is the claim behaviour the handlers need.
type ClaimService interface {
	Submit(ctx context.Context, userID string, in claim.SubmitInput) (*models.PropertyClaim, error)
	ForUser(ctx context.Context, userID string) ([]*models.PropertyClaim, error)
	Get(ctx context.Context, userID, id string) (*models.PropertyClaim, error)
}

// ClaimHandler serves the signed-in user's property claims. Every route
// runs behind RequireUser.
type ClaimHandler struct {
	svc ClaimService
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(svc ClaimService) *ClaimHandler {
	return &ClaimHandler{svc: svc}
}

func currentUser(w http.ResponseWriter, r *http.Request) (auth.User, bool) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("Please authenticate"))
	}
	return u, ok
}

// Submit handles POST /property-claims.
//
//	@Summary		Claim a property the user lived at
//	@Tags			claims
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ClaimRequest	true	"Claim"
//	@Success		201		{object}	models.PropertyClaim
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/property-claims [post]
func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req ClaimRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith("Error submitting property claim", err))
		return
	}
	c, err := h.svc.Submit(r.Context(), u.ID, req.input())
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, c)
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusBadRequest, errorBody("You have already claimed this location"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(apperr.Message(err)))
	default:
		slog.Error("property claim failed", slog.String("user", u.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("Error submitting property claim"))
	}
}

// ListMine handles GET /property-claims/user.
//
//	@Summary		List the user's property claims
//	@Tags			claims
//	@Produce		json
//	@Success		200	{array}		models.PropertyClaim
//	@Failure		401	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/property-claims/user [get]
func (h *ClaimHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	claims, err := h.svc.ForUser(r.Context(), u.ID)
	if err != nil {
		slog.Error("list claims failed", slog.String("user", u.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("Error fetching property claims"))
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// Get handles GET /property-claims/{id}.
//
//	@Summary		Get one of the user's property claims
//	@Tags			claims
//	@Produce		json
//	@Param			id	path		string	true	"Claim id"
//	@Success		200	{object}	models.PropertyClaim
//	@Failure		401	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/property-claims/{id} [get]
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	c, err := h.svc.Get(r.Context(), u.ID, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Property claim not found"))
			return
		}
		slog.Error("get claim failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("Error fetching property claim"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
