// internal/review/engine/replay.go
package engine

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/models"
)

// ReplayResult is the state derived from folding an application's audit
// trail in order.
type ReplayResult struct {
	Status models.ApplicationStatus
	Level  models.ReviewLevel
}

// Replay folds an ordered audit trail into the application state it implies.
// The trail alone determines the result; no stored status is consulted. An
// action that is illegal from the folded state fails the replay, which is
// what makes the trail tamper-evident.
func Replay(actions []models.ReviewAction) (*ReplayResult, error) {
	state := &ReplayResult{Status: models.StatusDraft}

	for i, action := range actions {
		if err := state.apply(action); err != nil {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"audit trail invalid at position %d (%s): %v", i, action.Action, err))
		}
	}
	return state, nil
}

func (r *ReplayResult) apply(action models.ReviewAction) error {
	switch action.Action {
	case models.ActionSubmitted:
		if r.Status != models.StatusDraft {
			return fmt.Errorf("submitted from %s", r.Status)
		}
		r.Status = models.StatusConstituencyReview
		r.Level = models.LevelConstituency

	case models.ActionClaimed:
		// Ownership lives in the queue, not the fold. Level must match.
		if r.Status != models.ReviewStatus(action.Level) {
			return fmt.Errorf("claimed at %s while %s", action.Level, r.Status)
		}

	case models.ActionApproved:
		if r.Status != models.ReviewStatus(action.Level) {
			return fmt.Errorf("approved at %s while %s", action.Level, r.Status)
		}
		if action.Level == models.LevelNational {
			r.Status = models.StatusApproved
			r.Level = ""
		} else {
			next := action.Level.Next()
			r.Status = models.ReviewStatus(next)
			r.Level = next
		}

	case models.ActionRejected:
		if r.Status != models.ReviewStatus(action.Level) {
			return fmt.Errorf("rejected at %s while %s", action.Level, r.Status)
		}
		r.Status = models.StatusRejected
		r.Level = ""

	case models.ActionRequestChanges:
		if r.Status != models.ReviewStatus(action.Level) {
			return fmt.Errorf("changes requested at %s while %s", action.Level, r.Status)
		}
		r.Status = models.StatusChangesRequested

	case models.ActionChangesSubmitted:
		if r.Status != models.StatusChangesRequested {
			return fmt.Errorf("changes submitted from %s", r.Status)
		}
		if action.Level != r.Level {
			return fmt.Errorf("changes submitted at %s, review paused at %s", action.Level, r.Level)
		}
		r.Status = models.ReviewStatus(r.Level)

	case models.ActionWithdrawn:
		if r.Status.IsTerminal() || r.Status == models.StatusDraft {
			return fmt.Errorf("withdrawn from %s", r.Status)
		}
		r.Status = models.StatusWithdrawn
		r.Level = ""

	default:
		return fmt.Errorf("unknown action %q", action.Action)
	}
	return nil
}

// VerifyAudit replays an application's full audit trail and compares the
// derived state against the stored row. A mismatch means the trail and the
// application row have diverged and the row can no longer be trusted.
func (e *Engine) VerifyAudit(ctx context.Context, applicationID string) (*ReplayResult, error) {
	var result *ReplayResult

	err := e.withTx(ctx, "verify_audit", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.Get(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}

		actions, err := e.audit.ListByApplication(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}

		derived, err := Replay(actions)
		if err != nil {
			return nil, err
		}

		if derived.Status != app.Status {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"audit trail derives %s but application %s is stored as %s",
				derived.Status, app.ID, app.Status))
		}
		if derived.Status.IsUnderReview() && derived.Level != app.CurrentLevel {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"audit trail derives level %s but application %s is stored at %s",
				derived.Level, app.ID, app.CurrentLevel))
		}

		result = derived
		return nil, nil
	})
	return result, err
}
