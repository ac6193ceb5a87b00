package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"poultry-review/internal/models"
)

func action(a models.ReviewActionType, level models.ReviewLevel) models.ReviewAction {
	return models.ReviewAction{Action: a, Level: level, Actor: "someone"}
}

func TestReplay_FullPipeline(t *testing.T) {
	result, err := Replay([]models.ReviewAction{
		action(models.ActionSubmitted, models.LevelConstituency),
		action(models.ActionClaimed, models.LevelConstituency),
		action(models.ActionApproved, models.LevelConstituency),
		action(models.ActionClaimed, models.LevelRegional),
		action(models.ActionApproved, models.LevelRegional),
		action(models.ActionClaimed, models.LevelNational),
		action(models.ActionApproved, models.LevelNational),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
}

func TestReplay_ChangesRoundTrip(t *testing.T) {
	result, err := Replay([]models.ReviewAction{
		action(models.ActionSubmitted, models.LevelConstituency),
		action(models.ActionClaimed, models.LevelConstituency),
		action(models.ActionRequestChanges, models.LevelConstituency),
		action(models.ActionChangesSubmitted, models.LevelConstituency),
		action(models.ActionApproved, models.LevelConstituency),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusRegionalReview, result.Status)
	assert.Equal(t, models.LevelRegional, result.Level)
}

func TestReplay_RejectionAtAnyLevel(t *testing.T) {
	result, err := Replay([]models.ReviewAction{
		action(models.ActionSubmitted, models.LevelConstituency),
		action(models.ActionApproved, models.LevelConstituency),
		action(models.ActionClaimed, models.LevelRegional),
		action(models.ActionRejected, models.LevelRegional),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Status)
}

func TestReplay_Withdrawal(t *testing.T) {
	result, err := Replay([]models.ReviewAction{
		action(models.ActionSubmitted, models.LevelConstituency),
		action(models.ActionWithdrawn, models.LevelConstituency),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, result.Status)
}

func TestReplay_EmptyTrailIsDraft(t *testing.T) {
	result, err := Replay(nil)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusDraft, result.Status)
}

func TestReplay_DetectsInvalidTrails(t *testing.T) {
	tests := []struct {
		name    string
		actions []models.ReviewAction
	}{
		{
			name: "approval without submission",
			actions: []models.ReviewAction{
				action(models.ActionApproved, models.LevelConstituency),
			},
		},
		{
			name: "approval at the wrong level",
			actions: []models.ReviewAction{
				action(models.ActionSubmitted, models.LevelConstituency),
				action(models.ActionApproved, models.LevelRegional),
			},
		},
		{
			name: "double submission",
			actions: []models.ReviewAction{
				action(models.ActionSubmitted, models.LevelConstituency),
				action(models.ActionSubmitted, models.LevelConstituency),
			},
		},
		{
			name: "action after terminal rejection",
			actions: []models.ReviewAction{
				action(models.ActionSubmitted, models.LevelConstituency),
				action(models.ActionRejected, models.LevelConstituency),
				action(models.ActionApproved, models.LevelConstituency),
			},
		},
		{
			name: "withdrawal of a draft",
			actions: []models.ReviewAction{
				action(models.ActionWithdrawn, ""),
			},
		},
		{
			name: "resubmission without a change request",
			actions: []models.ReviewAction{
				action(models.ActionSubmitted, models.LevelConstituency),
				action(models.ActionChangesSubmitted, models.LevelConstituency),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Replay(tt.actions)
			assert.Error(t, err)
		})
	}
}
