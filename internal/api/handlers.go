package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/property"
)

const maxBodyBytes = 1 << 20

// PropertyService is the property behaviour the handlers need.
type PropertyService interface {
	Create(ctx context.Context, in property.CreateInput) (*models.Property, error)
	AddMemory(ctx context.Context, id string, in property.MemoryInput) (*models.Property, error)
	FindOrCreate(ctx context.Context, in property.CreateInput) (*models.Property, bool, error)
	Get(ctx context.Context, id string) (*models.Property, error)
	List(ctx context.Context) ([]*models.Property, error)
	Nearby(ctx context.Context, c models.Coordinates, radiusMiles float64) ([]*models.Property, error)
	Update(ctx context.Context, id string, in property.LocationInput, ifMatch string) (*models.Property, error)
	Delete(ctx context.Context, id string) error
}

// Handler holds the property route handlers.
type Handler struct {
	svc PropertyService
}

// NewHandler creates a new Handler.
func NewHandler(svc PropertyService) *Handler {
	return &Handler{svc: svc}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func setETag(w http.ResponseWriter, p *models.Property) {
	sum, err := property.Checksum(p)
	if err != nil {
		slog.Warn("checksum failed", slog.String("id", p.ID), slog.String("error", err.Error()))
		return
	}
	w.Header().Set("ETag", `"`+sum+`"`)
}

// CreateProperty handles POST /properties.
//
//	@Summary		Create a property with its first memory
//	@Tags			properties
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePropertyRequest	true	"Property and memory"
//	@Success		201		{object}	models.Property
//	@Failure		400		{object}	errResponse
//	@Router			/properties [post]
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	var req CreatePropertyRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith("Error creating property", err))
		return
	}
	if err := req.LocationRequest.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith("Error creating property", err))
		return
	}
	p, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		slog.Error("create property failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorWith("Error creating property", err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// AddMemory handles POST /properties/{id}/memories.
//
//	@Summary		Append a memory to a property
//	@Tags			properties
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Property id"
//	@Param			body	body		MemoryRequest	true	"Memory"
//	@Success		201		{object}	models.Property
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/properties/{id}/memories [post]
func (h *Handler) AddMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MemoryRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith("Error adding memory", err))
		return
	}
	p, err := h.svc.AddMemory(r.Context(), id, req.input())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Property not found"))
			return
		}
		slog.Error("add memory failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorWith("Error adding memory", err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SubmitMemory handles POST /properties/memories. The memory joins the
// property within about 100m of the coordinates, or seeds a new one.
//
//	@Summary		Find or create a property by location and add a memory
//	@Tags			properties
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePropertyRequest	true	"Location and memory"
//	@Success		201		{object}	models.Property
//	@Failure		400		{object}	errResponse
//	@Router			/properties/memories [post]
func (h *Handler) SubmitMemory(w http.ResponseWriter, r *http.Request) {
	const msg = "Error adding memory to property"
	var req CreatePropertyRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith(msg, err))
		return
	}
	if err := req.LocationRequest.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith(msg, err))
		return
	}
	p, _, err := h.svc.FindOrCreate(r.Context(), req.input())
	if err != nil {
		slog.Error("submit memory failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorWith(msg, err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListProperties handles GET /properties.
//
//	@Summary		List every property
//	@Tags			properties
//	@Produce		json
//	@Success		200	{array}		models.Property
//	@Failure		500	{object}	errResponse
//	@Router			/properties [get]
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("list properties failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorWith("Error fetching properties", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetProperty handles GET /properties/{id}. A stale enrichment snapshot is
// refreshed before the response is written.
//
//	@Summary		Get a property
//	@Tags			properties
//	@Produce		json
//	@Param			id	path		string	true	"Property id"
//	@Success		200	{object}	models.Property
//	@Failure		404	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Router			/properties/{id} [get]
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Property not found"))
		} else {
			slog.Error("get property failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorWith("Error fetching property", err))
		}
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// UpdateProperty handles PUT /properties/{id}.
//
//	@Summary		Replace a property's location fields
//	@Tags			properties
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Property id"
//	@Param			If-Match	header		string			false	"ETag from a previous GET"
//	@Param			body		body		LocationRequest	true	"Location"
//	@Success		200			{object}	models.Property
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/properties/{id} [put]
func (h *Handler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	const msg = "Error updating property"
	id := chi.URLParam(r, "id")
	var req LocationRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith(msg, err))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith(msg, err))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	p, err := h.svc.Update(r.Context(), id, req.input(), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("Property not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("Property was modified"))
		default:
			slog.Error("update property failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorWith(msg, err))
		}
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// DeleteProperty handles DELETE /properties/{id}.
//
//	@Summary		Delete a property
//	@Tags			properties
//	@Produce		json
//	@Param			id	path		string	true	"Property id"
//	@Success		200	{object}	map[string]string
//	@Failure		404	{object}	errResponse
//	@Router			/properties/{id} [delete]
func (h *Handler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("Property not found"))
		} else {
			slog.Error("delete property failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorWith("Error deleting property", err))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Property deleted successfully"})
}

// Nearby handles POST /properties/nearby.
//
//	@Summary		Find properties within a radius
//	@Tags			properties
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NearbyRequest	true	"Center and radius in miles"
//	@Success		200		{array}		models.Property
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/properties/nearby [post]
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	var req NearbyRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorWith("invalid JSON body", err))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Latitude and longitude are required"))
		return
	}
	radius := property.DefaultRadiusMiles
	if req.Radius != nil {
		radius = *req.Radius
	}
	items, err := h.svc.Nearby(r.Context(), models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}, radius)
	if err != nil {
		slog.Error("nearby search failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorWith("Error finding nearby properties", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}
