// internal/models/application.go
package models

import "time"

// ApplicationKind distinguishes farm registrations from program enrollments.
// The two are structurally identical and flow through the same pipeline.
type ApplicationKind string

const (
	KindRegistration ApplicationKind = "registration"
	KindEnrollment   ApplicationKind = "enrollment"
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	StatusDraft              ApplicationStatus = "draft"
	StatusConstituencyReview ApplicationStatus = "constituency_review"
	StatusRegionalReview     ApplicationStatus = "regional_review"
	StatusNationalReview     ApplicationStatus = "national_review"
	StatusChangesRequested   ApplicationStatus = "changes_requested"
	StatusApproved           ApplicationStatus = "approved"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// IsTerminal reports whether no further workflow operation may mutate the
// application.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// IsUnderReview reports whether the status is one of the three review states.
func (s ApplicationStatus) IsUnderReview() bool {
	switch s {
	case StatusConstituencyReview, StatusRegionalReview, StatusNationalReview:
		return true
	}
	return false
}

// Jurisdiction pins an application to its constituency and region. Immutable
// once the application has been submitted.
type Jurisdiction struct {
	ConstituencyCode string `json:"constituencyCode"`
	RegionCode       string `json:"regionCode"`
}

// Application is a farm registration or program-enrollment application moving
// through constituency -> regional -> national review.
//
// Invariants:
//   - CurrentLevel is non-empty iff Status is one of the *_review values.
//   - PermanentID is non-empty iff Status == approved.
type Application struct {
	ID             string                 `json:"id"`
	Kind           ApplicationKind        `json:"kind"`
	ApplicantID    string                 `json:"applicantId"`
	ApplicantEmail string                 `json:"applicantEmail"`
	ApplicantPhone string                 `json:"applicantPhone"`
	Status         ApplicationStatus      `json:"status"`
	CurrentLevel   ReviewLevel            `json:"currentReviewLevel,omitempty"`
	Jurisdiction   Jurisdiction           `json:"jurisdiction"`
	PermanentID    string                 `json:"permanentId,omitempty"`
	Payload        map[string]interface{} `json:"payload"`

	// Attributes feeding the priority scorer.
	FlockSize        int        `json:"flockSize"`
	AnnualRevenue    int        `json:"annualRevenue"`
	EligibilityScore int        `json:"eligibilityScore"`
	EnrollmentClose  *time.Time `json:"enrollmentClose,omitempty"`

	ConstituencyApprovedAt *time.Time `json:"constituencyApprovedAt,omitempty"`
	RegionalApprovedAt     *time.Time `json:"regionalApprovedAt,omitempty"`
	NationalApprovedAt     *time.Time `json:"nationalApprovedAt,omitempty"`

	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ReviewStatus maps a review level to the matching application status.
func ReviewStatus(level ReviewLevel) ApplicationStatus {
	switch level {
	case LevelConstituency:
		return StatusConstituencyReview
	case LevelRegional:
		return StatusRegionalReview
	case LevelNational:
		return StatusNationalReview
	}
	return ""
}
