package models

import "time"

// Verification levels of a PropertyClaim.
const (
	VerificationBasic    = "basic"
	VerificationEnhanced = "enhanced"
)

// Supporting document types and review states.
const (
	DocumentUtilityBill = "utility_bill"
	DocumentTaxDocument = "tax_document"
	DocumentLease       = "lease"
	DocumentDeed        = "deed"
	DocumentOther       = "other"

	DocumentPending  = "pending"
	DocumentApproved = "approved"
	DocumentRejected = "rejected"
)

// ClaimResidency is the period the claimant lived at the address.
type ClaimResidency struct {
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Current   bool       `json:"current"`
}

// VerificationDocument is a file a claimant submitted as proof.
type VerificationDocument struct {
	DocumentType string    `json:"documentType"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
	URL          string    `json:"url"`
}

// PropertyClaim records that a signed-in user says they lived at an address.
// A user holds at most one claim per address.
type PropertyClaim struct {
	ID                    string                 `json:"id"`
	UserID                string                 `json:"userId"`
	Address               string                 `json:"address"`
	Location              Coordinates            `json:"location"`
	VerificationStatus    string                 `json:"verificationStatus"`
	ClaimedAt             time.Time              `json:"claimedAt"`
	ResidencyDates        *ClaimResidency        `json:"residencyDates,omitempty"`
	VerificationDocuments []VerificationDocument `json:"verificationDocuments"`
}
