package property

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/homehistory/internal/models"
)

// MemoryInput carries the user-supplied fields of a new memory.
type MemoryInput struct {
	Text          string
	SubmitterName string
	Contact       string
	PhotoURL      string
	Residency     *models.Residency
}

// Validate checks required fields and residency consistency.
func (m MemoryInput) Validate() error {
	if err := validation.ValidateStruct(&m,
		validation.Field(&m.Text, validation.By(notBlank)),
		validation.Field(&m.SubmitterName, validation.By(notBlank)),
	); err != nil {
		return err
	}
	if r := m.Residency; r != nil {
		if r.Current && r.YearMovedOut != nil {
			return errors.New("residency: a current resident has no move-out year")
		}
		if r.YearMovedIn != nil && r.YearMovedOut != nil && *r.YearMovedOut < *r.YearMovedIn {
			return errors.New("residency: move-out year precedes move-in year")
		}
	}
	return nil
}

func (m MemoryInput) toMemory(id string, now timeSource) models.Memory {
	mem := models.Memory{
		ID:            id,
		Text:          m.Text,
		SubmitterName: m.SubmitterName,
		Contact:       m.Contact,
		PhotoURL:      m.PhotoURL,
		SubmittedAt:   now(),
	}
	if m.Residency != nil {
		r := *m.Residency
		mem.Residency = &r
	} else {
		mem.Residency = &models.Residency{}
	}
	return mem
}

// LocationInput identifies a property's place.
type LocationInput struct {
	Address     string
	Coordinates models.Coordinates
	YearBuilt   *int
}

// Validate checks the address and coordinate ranges.
func (l LocationInput) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Address, validation.By(notBlank)),
		validation.Field(&l.Coordinates, validation.By(validCoordinates)),
	)
}

// CreateInput is a location plus the memory that seeds it.
type CreateInput struct {
	LocationInput
	Memory MemoryInput
}

// Validate checks both parts.
func (c CreateInput) Validate() error {
	if err := c.LocationInput.Validate(); err != nil {
		return err
	}
	return c.Memory.Validate()
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func validCoordinates(value interface{}) error {
	c, _ := value.(models.Coordinates)
	if c.Lat < -90 || c.Lat > 90 {
		return errors.New("latitude must be between -90 and 90")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}
