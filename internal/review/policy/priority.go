// internal/review/policy/priority.go
package policy

import (
	"time"

	"poultry-review/internal/common/config"
	"poultry-review/internal/models"
)

// Scorer computes the 0-100 urgency score of an application at enqueue time.
// The contribution caps mirror the original program rules; they are read from
// configuration and pending product confirmation, not tuned here.
type Scorer struct {
	cfg config.PriorityConfig
}

// NewScorer builds a scorer from the configured caps.
func NewScorer(cfg config.PriorityConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score is deterministic for a given application and clock reading. It is
// called once at enqueue and once more at each forward transition, never
// recomputed for completed entries.
//
// Contributions:
//   - age in queue since submission, AgePointsPerDay per day, capped
//   - small-farm bonus for flocks at or under the configured size
//   - low-revenue bonus under the configured threshold
//   - eligibility score scaled into EligibilityMaxPoints
//   - enrollment close-date proximity for batch applications
func (s *Scorer) Score(app *models.Application, now time.Time) int {
	score := 0

	if app.SubmittedAt != nil {
		days := int(now.Sub(*app.SubmittedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		age := days * s.cfg.AgePointsPerDay
		if age > s.cfg.AgeMaxPoints {
			age = s.cfg.AgeMaxPoints
		}
		score += age
	}

	if app.FlockSize > 0 && app.FlockSize <= s.cfg.SmallFarmFlockSize {
		score += s.cfg.SmallFarmBonus
	}

	if app.AnnualRevenue > 0 && app.AnnualRevenue < s.cfg.LowRevenueThreshold {
		score += s.cfg.LowRevenueBonus
	}

	if app.EligibilityScore > 0 {
		// eligibility is recorded 0-100; scale into its cap
		score += app.EligibilityScore * s.cfg.EligibilityMaxPoints / 100
	}

	if app.EnrollmentClose != nil {
		score += s.deadlineProximity(*app.EnrollmentClose, now)
	}

	return clamp(score, 0, 100)
}

// Promote bumps the score of an application advancing to the next level.
// Promoted applications are prioritized over fresh arrivals at that level.
func Promote(priority int) int {
	return clamp(priority+1, 0, 100)
}

func (s *Scorer) deadlineProximity(close, now time.Time) int {
	remaining := close.Sub(now)
	if remaining <= 0 {
		return s.cfg.DeadlineMaxPoints
	}

	window := time.Duration(s.cfg.DeadlineWindowDays) * 24 * time.Hour
	if remaining >= window {
		return 0
	}

	// linear ramp: the closer the enrollment close date, the more points
	return int(float64(s.cfg.DeadlineMaxPoints) * (1 - remaining.Seconds()/window.Seconds()))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
