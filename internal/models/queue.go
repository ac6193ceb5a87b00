// internal/models/queue.go
package models

import "time"

// QueueStatus is the lifecycle state of a review queue entry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueClaimed    QueueStatus = "claimed"
	QueueInProgress QueueStatus = "in_progress"
	QueueCompleted  QueueStatus = "completed"
)

// QueueEntry is one claimable unit of review work: one application at one
// review level. At most one non-completed entry exists per
// (application_id, level) pair, enforced by a partial unique index.
//
// AssignedTo is non-empty iff Status is claimed or in_progress. IsOverdue is
// written only by the SLA sweeper.
type QueueEntry struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"applicationId"`
	Level         ReviewLevel  `json:"reviewLevel"`
	Status        QueueStatus  `json:"status"`
	AssignedTo    string       `json:"assignedTo,omitempty"`
	AssignedAt    *time.Time   `json:"assignedAt,omitempty"`
	Priority      int          `json:"priority"`
	SLADeadline   time.Time    `json:"slaDeadline"`
	IsOverdue     bool         `json:"isOverdue"`
	Jurisdiction  Jurisdiction `json:"jurisdiction"`
	CreatedAt     time.Time    `json:"createdAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}
