package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BasePath is where the server mounts NewRouter. Public photo URLs carry it.
const BasePath = "/api"

// Routes collects what NewRouter mounts. Photos, Events and the claim pair are optional.
type Routes struct {
	Properties  PropertyService
	Enricher    AddressEnricher
	Backfill    Backfiller
	Photos      *PhotoHandler
	Events      http.Handler
	AuthEnabled bool
	Token       string

	// Claims and Users enable the property-claim routes; both or neither.
	Claims ClaimService
	Users  TokenVerifier
}

// NewRouter creates a chi router with all API routes mounted.
// Bearer token auth, when enabled, guards the admin routes and cache clearing.
func NewRouter(rt Routes) chi.Router {
	h := NewHandler(rt.Properties)
	eh := NewEnrichmentHandler(rt.Enricher, rt.Backfill)
	admin := AdminGuard(rt.AuthEnabled, rt.Token)

	r := chi.NewRouter()

	// Properties and memories.
	r.Route("/properties", func(r chi.Router) {
		r.Get("/", h.ListProperties)
		r.Post("/", h.CreateProperty)
		r.Post("/memories", h.SubmitMemory)
		r.Post("/nearby", h.Nearby)
		r.Get("/{id}", h.GetProperty)
		r.Put("/{id}", h.UpdateProperty)
		r.Delete("/{id}", h.DeleteProperty)
		r.Post("/{id}/memories", h.AddMemory)
	})

	// Address enrichment.
	r.Get("/enrich-address", eh.EnrichAddress)
	r.Get("/enrich-address/cache/stats", eh.CacheStats)
	r.With(admin).Delete("/enrich-address/cache", eh.ClearCache)

	// Admin.
	r.Route("/admin/enrich", func(r chi.Router) {
		r.Use(admin)
		r.Post("/backfill", eh.Backfill)
		r.Get("/stats", eh.EnrichmentStats)
	})

	if rt.Claims != nil && rt.Users != nil {
		ch := NewClaimHandler(rt.Claims)
		r.Route("/property-claims", func(r chi.Router) {
			r.Use(RequireUser(rt.Users))
			r.Post("/", ch.Submit)
			r.Get("/user", ch.ListMine)
			r.Get("/{id}", ch.Get)
		})
	}

	if rt.Photos != nil {
		r.Post("/upload", rt.Photos.Upload)
		r.Get("/photos/{filename}", rt.Photos.ServeFile)
	}

	if rt.Events != nil {
		r.Get("/events", rt.Events.ServeHTTP)
	}

	return r
}
