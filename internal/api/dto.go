package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/homehistory/internal/claim"
	"github.com/starford/homehistory/internal/enrich"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/property"
)

// MemoryRequest carries the memory fields shared by every submission route.
type MemoryRequest struct {
	Memory        string            `json:"memory" example:"We planted the oak in 1962"`
	SubmitterName string            `json:"submitterName" example:"Pat"`
	Contact       string            `json:"contact,omitempty" example:"pat@example.com"`
	Photo         string            `json:"photo,omitempty" example:"/api/photos/4f1c.jpg"`
	Residency     *models.Residency `json:"residency,omitempty"`
}

func (m MemoryRequest) input() property.MemoryInput {
	return property.MemoryInput{
		Text:          m.Memory,
		SubmitterName: m.SubmitterName,
		Contact:       m.Contact,
		PhotoURL:      m.Photo,
		Residency:     m.Residency,
	}
}

// LocationRequest identifies a property. Lat and Lng are pointers so an
// absent coordinate can be told apart from zero.
type LocationRequest struct {
	Address   string   `json:"address" example:"123 Main St, Springfield"`
	Lat       *float64 `json:"lat" example:"40.7128"`
	Lng       *float64 `json:"lng" example:"-74.006"`
	YearBuilt *int     `json:"yearBuilt,omitempty" example:"1931"`
}

// Validate requires both coordinates.
func (l LocationRequest) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Lat, validation.NotNil),
		validation.Field(&l.Lng, validation.NotNil),
	)
}

func (l LocationRequest) input() property.LocationInput {
	in := property.LocationInput{Address: l.Address, YearBuilt: l.YearBuilt}
	if l.Lat != nil {
		in.Coordinates.Lat = *l.Lat
	}
	if l.Lng != nil {
		in.Coordinates.Lng = *l.Lng
	}
	return in
}

// CreatePropertyRequest is the flat body of POST /properties and
// POST /properties/memories.
type CreatePropertyRequest struct {
	LocationRequest
	MemoryRequest
}

func (c CreatePropertyRequest) input() property.CreateInput {
	return property.CreateInput{LocationInput: c.LocationRequest.input(), Memory: c.MemoryRequest.input()}
}

// NearbyRequest is the body of POST /properties/nearby.
type NearbyRequest struct {
	Lat    *float64 `json:"lat" example:"40.7128"`
	Lng    *float64 `json:"lng" example:"-74.006"`
	Radius *float64 `json:"radius,omitempty" example:"1"`
}

// Validate requires both coordinates and a non-negative radius.
func (n NearbyRequest) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Lat, validation.NotNil),
		validation.Field(&n.Lng, validation.NotNil),
		validation.Field(&n.Radius, validation.Min(0.0)),
	)
}

// EnrichResponse is the body of GET /enrich-address.
type EnrichResponse struct {
	Success bool          `json:"success"`
	Cached  bool          `json:"cached"`
	Data    enrich.Result `json:"data"`
}

// PhotoUploadResponse is returned after a successful photo upload.
type PhotoUploadResponse struct {
	Success  bool   `json:"success"`
	PhotoURL string `json:"photoUrl" example:"/api/photos/4f1c.jpg"`
	PublicID string `json:"publicId" example:"4f1c.jpg"`
}

// ClaimRequest is the body of POST /property-claims.
type ClaimRequest struct {
	Address            string                 `json:"address" example:"12 Oak Ave, Springfield"`
	Location           *models.Coordinates    `json:"location"`
	VerificationStatus string                 `json:"verificationStatus,omitempty" example:"basic"`
	ResidencyDates     *models.ClaimResidency `json:"residencyDates,omitempty"`
}

func (c ClaimRequest) input() claim.SubmitInput {
	return claim.SubmitInput{
		Address:            c.Address,
		Location:           c.Location,
		VerificationStatus: c.VerificationStatus,
		ResidencyDates:     c.ResidencyDates,
	}
}
