// internal/models/review.go
package models

import "time"

// ReviewLevel is one of the three sequential approval tiers.
type ReviewLevel string

const (
	LevelConstituency ReviewLevel = "constituency"
	LevelRegional     ReviewLevel = "regional"
	LevelNational     ReviewLevel = "national"
)

// Next returns the successor tier, or "" when level is national (terminal).
func (l ReviewLevel) Next() ReviewLevel {
	switch l {
	case LevelConstituency:
		return LevelRegional
	case LevelRegional:
		return LevelNational
	}
	return ""
}

// Valid reports whether l names a known tier.
func (l ReviewLevel) Valid() bool {
	switch l {
	case LevelConstituency, LevelRegional, LevelNational:
		return true
	}
	return false
}

// ReviewActionType enumerates the audit-trail action kinds.
type ReviewActionType string

const (
	ActionSubmitted        ReviewActionType = "submitted"
	ActionClaimed          ReviewActionType = "claimed"
	ActionApproved         ReviewActionType = "approved"
	ActionRejected         ReviewActionType = "rejected"
	ActionRequestChanges   ReviewActionType = "request_changes"
	ActionChangesSubmitted ReviewActionType = "changes_submitted"
	ActionWithdrawn        ReviewActionType = "withdrawn"
)

// ReviewAction is one append-only audit-trail record. Rows are never updated
// or deleted; replaying an application's actions in creation order must
// reproduce its current status and review level.
type ReviewAction struct {
	ID            string                 `json:"id"`
	ApplicationID string                 `json:"applicationId"`
	Level         ReviewLevel            `json:"reviewLevel,omitempty"`
	Actor         string                 `json:"actor"`
	Action        ReviewActionType       `json:"action"`
	Notes         string                 `json:"notes,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}
