// internal/review/policy/sla.go
package policy

import (
	"time"

	"poultry-review/internal/common/config"
	"poultry-review/internal/models"
)

// SLAPolicy maps a review level to its deadline duration. The table is fixed
// at construction from configuration and never mutated mid-cycle.
type SLAPolicy struct {
	durations map[models.ReviewLevel]time.Duration
}

// NewSLAPolicy builds the per-level deadline table from config.
func NewSLAPolicy(cfg config.SLAConfig) *SLAPolicy {
	day := 24 * time.Hour
	return &SLAPolicy{
		durations: map[models.ReviewLevel]time.Duration{
			models.LevelConstituency: time.Duration(cfg.ConstituencyDays) * day,
			models.LevelRegional:     time.Duration(cfg.RegionalDays) * day,
			models.LevelNational:     time.Duration(cfg.NationalDays) * day,
		},
	}
}

// Duration returns the review window for a level.
func (p *SLAPolicy) Duration(level models.ReviewLevel) time.Duration {
	return p.durations[level]
}

// Deadline returns the SLA deadline for a queue entry created at now.
func (p *SLAPolicy) Deadline(level models.ReviewLevel, now time.Time) time.Time {
	return now.Add(p.durations[level])
}

// ResponseDeadline computes the applicant response deadline for a
// request-changes action.
func ResponseDeadline(now time.Time, deadlineDays int) time.Time {
	return now.Add(time.Duration(deadlineDays) * 24 * time.Hour)
}
