// internal/models/notification.go
package models

import "time"

// TemplateKind names a notification template in the registry.
type TemplateKind string

const (
	TemplateApplicationSubmitted TemplateKind = "application_submitted"
	TemplateReviewPending        TemplateKind = "review_pending"
	TemplateLevelApproved        TemplateKind = "level_approved"
	TemplateApplicationApproved  TemplateKind = "application_approved"
	TemplateApplicationRejected  TemplateKind = "application_rejected"
	TemplateChangesRequested     TemplateKind = "changes_requested"
	TemplateChangesSubmitted     TemplateKind = "changes_submitted"
	TemplateApplicationWithdrawn TemplateKind = "application_withdrawn"
)

// Recipient identifies who a notification request addresses.
type Recipient struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NotificationRequest is the record the workflow engine hands to the
// dispatcher after every terminal or level-transition action. Delivery and
// channel selection are entirely the dispatcher's responsibility.
type NotificationRequest struct {
	ID            string                 `json:"id"`
	Recipient     Recipient              `json:"recipient"`
	TemplateKind  TemplateKind           `json:"templateKind"`
	ApplicationID string                 `json:"applicationId"`
	Level         ReviewLevel            `json:"reviewLevel,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}
