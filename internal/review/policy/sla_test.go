package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"poultry-review/internal/common/config"
	"poultry-review/internal/models"
)

func TestSLAPolicy_Deadline(t *testing.T) {
	policy := NewSLAPolicy(config.SLAConfig{
		ConstituencyDays: 7,
		RegionalDays:     5,
		NationalDays:     3,
	})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		level    models.ReviewLevel
		expected time.Time
	}{
		{models.LevelConstituency, now.Add(7 * 24 * time.Hour)},
		{models.LevelRegional, now.Add(5 * 24 * time.Hour)},
		{models.LevelNational, now.Add(3 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Deadline(tt.level, now))
		})
	}
}

func TestResponseDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(14*24*time.Hour), ResponseDeadline(now, 14))
}
