// internal/review/engine/operations.go
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/validation"
	"poultry-review/internal/models"
	"poultry-review/internal/review/policy"
)

// Submit moves a draft application into constituency review: first queue
// entry, first audit action, applicant notification. A changes_requested
// application is routed through the resubmission path instead, so callers
// may use Submit for both.
func (e *Engine) Submit(ctx context.Context, applicationID, actor string) error {
	return e.withTx(ctx, "submit", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}

		if app.Status == models.StatusChangesRequested {
			return e.resubmitTx(ctx, tx, app, actor)
		}
		if app.Status != models.StatusDraft {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"submit requires draft, application %s is %s", app.ID, app.Status))
		}

		problems, err := validation.ValidatePayload(app.Kind, app.Payload)
		if err != nil {
			return nil, apperrors.NewValidationFailedError(err.Error())
		}
		if len(problems) > 0 {
			return nil, apperrors.NewValidationFailedError(strings.Join(problems, "; "))
		}

		now := time.Now().UTC()
		if err := e.apps.MarkSubmitted(ctx, tx, app.ID, now); err != nil {
			return nil, err
		}
		app.SubmittedAt = &now

		entry := &models.QueueEntry{
			ApplicationID: app.ID,
			Level:         models.LevelConstituency,
			Priority:      e.scorer.Score(app, now),
			SLADeadline:   e.sla.Deadline(models.LevelConstituency, now),
			Jurisdiction:  app.Jurisdiction,
		}
		if err := e.queue.Enqueue(ctx, tx, entry); err != nil {
			return nil, err
		}

		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: app.ID,
			Level:         models.LevelConstituency,
			Actor:         actor,
			Action:        models.ActionSubmitted,
		}); err != nil {
			return nil, err
		}

		e.logger.Info("application submitted", map[string]interface{}{
			"applicationId": app.ID,
			"kind":          app.Kind,
			"constituency":  app.Jurisdiction.ConstituencyCode,
			"priority":      entry.Priority,
		})

		notifications := []*models.NotificationRequest{newNotification(
			applicantRecipient(app), models.TemplateApplicationSubmitted, app.ID,
			models.LevelConstituency, map[string]interface{}{
				"slaDeadline": entry.SLADeadline,
			},
		)}
		if n := e.officeNotification(ctx, app, models.LevelConstituency, entry); n != nil {
			notifications = append(notifications, n)
		}
		return notifications, nil
	})
}

// Claim takes exclusive ownership of the pending queue entry for
// (application, level) on behalf of an officer. Under concurrent attempts
// exactly one succeeds; the rest surface AlreadyClaimedError.
func (e *Engine) Claim(ctx context.Context, applicationID, officerID string, level models.ReviewLevel) error {
	return e.withTx(ctx, "claim", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != models.ReviewStatus(level) {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"application %s is %s, not under %s review", app.ID, app.Status, level))
		}

		if _, err := e.directory.Authorize(ctx, officerID, level, app.Jurisdiction); err != nil {
			return nil, err
		}

		if err := e.queue.Claim(ctx, tx, app.ID, level, officerID); err != nil {
			return nil, err
		}

		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: app.ID,
			Level:         level,
			Actor:         officerID,
			Action:        models.ActionClaimed,
		}); err != nil {
			return nil, err
		}

		e.logger.Info("queue entry claimed", map[string]interface{}{
			"applicationId": app.ID,
			"level":         level,
			"officerId":     officerID,
		})
		return nil, nil
	})
}

// AssignNext claims the most urgent pending entry at a level on behalf of the
// least-loaded active officer. Best-effort heuristic: ties break on the
// lowest officer id.
func (e *Engine) AssignNext(ctx context.Context, level models.ReviewLevel, jurisdiction models.Jurisdiction) (string, error) {
	var assigned string
	err := e.withTx(ctx, "assign_next", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		pending, err := e.queue.ListPending(ctx, tx, level, &jurisdiction)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			return nil, apperrors.NewNotFoundError("queue entry",
				fmt.Sprintf("no pending entries at level %s", level))
		}

		officerID, err := e.queue.LeastLoadedOfficer(ctx, tx, level, jurisdiction)
		if err != nil {
			return nil, err
		}

		entry := pending[0]
		if err := e.queue.Claim(ctx, tx, entry.ApplicationID, level, officerID); err != nil {
			return nil, err
		}

		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: entry.ApplicationID,
			Level:         level,
			Actor:         officerID,
			Action:        models.ActionClaimed,
			Notes:         "auto-assigned",
		}); err != nil {
			return nil, err
		}

		assigned = officerID
		return nil, nil
	})
	return assigned, err
}

// ApproveAndForward records a level approval and advances the application to
// the successor tier, or finalizes it when level is national.
func (e *Engine) ApproveAndForward(ctx context.Context, applicationID, officerID string, level models.ReviewLevel, notes string) error {
	return e.withTx(ctx, "approve_and_forward", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != models.ReviewStatus(level) {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"application %s is %s, not under %s review", app.ID, app.Status, level))
		}

		entry, err := e.requireAssignedEntry(ctx, tx, app.ID, level, officerID)
		if err != nil {
			return nil, err
		}

		if level == models.LevelNational {
			return e.finalizeTx(ctx, tx, app, officerID, notes)
		}

		now := time.Now().UTC()
		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: app.ID,
			Level:         level,
			Actor:         officerID,
			Action:        models.ActionApproved,
			Notes:         notes,
		}); err != nil {
			return nil, err
		}
		if err := e.queue.Complete(ctx, tx, app.ID, level, now); err != nil {
			return nil, err
		}
		if err := e.apps.StampLevelApproval(ctx, tx, app.ID, level, now); err != nil {
			return nil, err
		}

		next := level.Next()
		if err := e.apps.SetStatus(ctx, tx, app.ID, models.ReviewStatus(next), next); err != nil {
			return nil, err
		}

		// Rescore at the forward transition, then promote: an application
		// advancing a tier always outranks a fresh arrival of equal score.
		priority := e.scorer.Score(app, now)
		if entry.Priority > priority {
			priority = entry.Priority
		}
		nextEntry := &models.QueueEntry{
			ApplicationID: app.ID,
			Level:         next,
			Priority:      policy.Promote(priority),
			SLADeadline:   e.sla.Deadline(next, now),
			Jurisdiction:  app.Jurisdiction,
		}
		if err := e.queue.Enqueue(ctx, tx, nextEntry); err != nil {
			return nil, err
		}

		e.logger.Info("application forwarded", map[string]interface{}{
			"applicationId": app.ID,
			"fromLevel":     level,
			"toLevel":       next,
			"priority":      nextEntry.Priority,
		})

		notifications := []*models.NotificationRequest{newNotification(
			applicantRecipient(app), models.TemplateLevelApproved, app.ID, level,
			map[string]interface{}{
				"nextLevel": string(next),
				"notes":     notes,
			},
		)}
		if n := e.officeNotification(ctx, app, next, nextEntry); n != nil {
			notifications = append(notifications, n)
		}
		return notifications, nil
	})
}

// FinalizeApproval is the terminal national approval: mints the permanent
// identifier and closes the pipeline. Identifier minting and the status
// change commit together; a mint failure aborts the whole transaction.
func (e *Engine) FinalizeApproval(ctx context.Context, applicationID, officerID, notes string) error {
	return e.withTx(ctx, "finalize_approval", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != models.StatusNationalReview {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"finalize requires national review, application %s is %s", app.ID, app.Status))
		}

		if _, err := e.requireAssignedEntry(ctx, tx, app.ID, models.LevelNational, officerID); err != nil {
			return nil, err
		}

		return e.finalizeTx(ctx, tx, app, officerID, notes)
	})
}

// finalizeTx is the shared terminal approval body, invoked from both
// FinalizeApproval and ApproveAndForward(national). Caller has already
// verified status and entry ownership.
func (e *Engine) finalizeTx(ctx context.Context, tx *sql.Tx, app *models.Application, officerID, notes string) ([]*models.NotificationRequest, error) {
	now := time.Now().UTC()

	permanentID, err := e.allocator.Mint(ctx, tx, app.Jurisdiction)
	if err != nil {
		return nil, err
	}

	if err := e.apps.Finalize(ctx, tx, app.ID, permanentID, now); err != nil {
		return nil, err
	}
	if err := e.queue.Complete(ctx, tx, app.ID, models.LevelNational, now); err != nil {
		return nil, err
	}
	if err := e.audit.Append(ctx, tx, &models.ReviewAction{
		ApplicationID: app.ID,
		Level:         models.LevelNational,
		Actor:         officerID,
		Action:        models.ActionApproved,
		Notes:         notes,
		Metadata:      map[string]interface{}{"permanentId": permanentID},
	}); err != nil {
		return nil, err
	}

	e.logger.Info("application approved", map[string]interface{}{
		"applicationId": app.ID,
		"permanentId":   permanentID,
	})

	return []*models.NotificationRequest{newNotification(
		applicantRecipient(app), models.TemplateApplicationApproved, app.ID,
		models.LevelNational, map[string]interface{}{
			"permanentId": permanentID,
			"notes":       notes,
		},
	)}, nil
}

// Reject terminates the application at any level. The reason is required and
// propagates verbatim into the audit trail and the notification context.
func (e *Engine) Reject(ctx context.Context, applicationID, officerID string, level models.ReviewLevel, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperrors.NewValidationFailedError("rejection reason is required")
	}

	return e.withTx(ctx, "reject", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != models.ReviewStatus(level) {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"application %s is %s, not under %s review", app.ID, app.Status, level))
		}

		if _, err := e.requireAssignedEntry(ctx, tx, app.ID, level, officerID); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		if err := e.apps.SetStatus(ctx, tx, app.ID, models.StatusRejected, ""); err != nil {
			return nil, err
		}
		if err := e.queue.Complete(ctx, tx, app.ID, level, now); err != nil {
			return nil, err
		}
		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: app.ID,
			Level:         level,
			Actor:         officerID,
			Action:        models.ActionRejected,
			Notes:         reason,
		}); err != nil {
			return nil, err
		}

		e.logger.Info("application rejected", map[string]interface{}{
			"applicationId": app.ID,
			"level":         level,
			"officerId":     officerID,
		})

		return []*models.NotificationRequest{newNotification(
			applicantRecipient(app), models.TemplateApplicationRejected, app.ID, level,
			map[string]interface{}{"reason": reason},
		)}, nil
	})
}

// RequestChanges sends the application back to the applicant without losing
// the review slot: the queue entry stays open at the same level.
func (e *Engine) RequestChanges(ctx context.Context, applicationID, officerID string, level models.ReviewLevel, feedback string, changeList []string, deadlineDays int) error {
	if strings.TrimSpace(feedback) == "" {
		return apperrors.NewValidationFailedError("change request feedback is required")
	}
	if deadlineDays <= 0 {
		deadlineDays = e.changeDeadlineDays
	}

	return e.withTx(ctx, "request_changes", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != models.ReviewStatus(level) {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"application %s is %s, not under %s review", app.ID, app.Status, level))
		}

		if _, err := e.requireAssignedEntry(ctx, tx, app.ID, level, officerID); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		responseDeadline := policy.ResponseDeadline(now, deadlineDays)

		// Status changes; current_level stays put so review resumes here.
		if err := e.apps.SetStatus(ctx, tx, app.ID, models.StatusChangesRequested, level); err != nil {
			return nil, err
		}
		if err := e.queue.MarkInProgress(ctx, tx, app.ID, level); err != nil {
			return nil, err
		}
		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: app.ID,
			Level:         level,
			Actor:         officerID,
			Action:        models.ActionRequestChanges,
			Notes:         feedback,
			Metadata: map[string]interface{}{
				"changeList":       changeList,
				"responseDeadline": responseDeadline,
			},
		}); err != nil {
			return nil, err
		}

		e.logger.Info("changes requested", map[string]interface{}{
			"applicationId":    app.ID,
			"level":            level,
			"responseDeadline": responseDeadline,
		})

		return []*models.NotificationRequest{newNotification(
			applicantRecipient(app), models.TemplateChangesRequested, app.ID, level,
			map[string]interface{}{
				"feedback":         feedback,
				"changeList":       changeList,
				"responseDeadline": responseDeadline,
			},
		)}, nil
	})
}

// ResubmitAfterChanges returns a changes_requested application to its review
// level and notifies the previously assigned officer.
func (e *Engine) ResubmitAfterChanges(ctx context.Context, applicationID, actor string) error {
	return e.withTx(ctx, "resubmit_after_changes", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != models.StatusChangesRequested {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"resubmit requires changes_requested, application %s is %s", app.ID, app.Status))
		}
		return e.resubmitTx(ctx, tx, app, actor)
	})
}

func (e *Engine) resubmitTx(ctx context.Context, tx *sql.Tx, app *models.Application, actor string) ([]*models.NotificationRequest, error) {
	level := app.CurrentLevel
	if !level.Valid() {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"application %s has no current review level", app.ID))
	}

	entry, err := e.queue.ActiveEntry(ctx, tx, app.ID, level)
	if err != nil {
		return nil, err
	}

	if err := e.apps.SetStatus(ctx, tx, app.ID, models.ReviewStatus(level), level); err != nil {
		return nil, err
	}
	if err := e.queue.Resume(ctx, tx, app.ID, level); err != nil {
		return nil, err
	}
	if err := e.audit.Append(ctx, tx, &models.ReviewAction{
		ApplicationID: app.ID,
		Level:         level,
		Actor:         actor,
		Action:        models.ActionChangesSubmitted,
	}); err != nil {
		return nil, err
	}

	e.logger.Info("changes resubmitted", map[string]interface{}{
		"applicationId": app.ID,
		"level":         level,
		"assignedTo":    entry.AssignedTo,
	})

	var notifications []*models.NotificationRequest
	if entry.AssignedTo != "" {
		if officer, err := e.directory.GetOfficer(ctx, entry.AssignedTo); err == nil {
			notifications = append(notifications, newNotification(
				models.Recipient{ID: officer.ID, Email: officer.Email, Phone: officer.Phone},
				models.TemplateChangesSubmitted, app.ID, level, nil,
			))
		} else {
			e.logger.Warn("assigned officer lookup failed", map[string]interface{}{
				"officerId": entry.AssignedTo,
				"error":     err,
			})
		}
	}
	return notifications, nil
}

// Withdraw is the applicant's cancellation path, valid from any non-terminal
// review state. Terminal: no queue entry survives it.
func (e *Engine) Withdraw(ctx context.Context, applicationID, actor string) error {
	return e.withTx(ctx, "withdraw", func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error) {
		app, err := e.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return nil, err
		}
		if !app.Status.IsUnderReview() && app.Status != models.StatusChangesRequested {
			return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
				"withdraw requires an active review state, application %s is %s", app.ID, app.Status))
		}

		level := app.CurrentLevel
		now := time.Now().UTC()

		if err := e.apps.SetStatus(ctx, tx, app.ID, models.StatusWithdrawn, ""); err != nil {
			return nil, err
		}
		if err := e.queue.CompleteAll(ctx, tx, app.ID, now); err != nil {
			return nil, err
		}
		if err := e.audit.Append(ctx, tx, &models.ReviewAction{
			ApplicationID: app.ID,
			Level:         level,
			Actor:         actor,
			Action:        models.ActionWithdrawn,
		}); err != nil {
			return nil, err
		}

		e.logger.Info("application withdrawn", map[string]interface{}{
			"applicationId": app.ID,
			"level":         level,
		})

		return []*models.NotificationRequest{newNotification(
			applicantRecipient(app), models.TemplateApplicationWithdrawn, app.ID, level, nil,
		)}, nil
	})
}

// requireAssignedEntry loads the live entry for (application, level) and
// verifies it is held by the acting officer.
func (e *Engine) requireAssignedEntry(ctx context.Context, tx *sql.Tx, applicationID string, level models.ReviewLevel, officerID string) (*models.QueueEntry, error) {
	entry, err := e.queue.ActiveEntry(ctx, tx, applicationID, level)
	if err != nil {
		return nil, err
	}

	if entry.Status != models.QueueClaimed && entry.Status != models.QueueInProgress {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf(
			"queue entry for application %s at %s is %s, not claimed", applicationID, level, entry.Status))
	}
	if entry.AssignedTo != officerID {
		return nil, apperrors.NewPermissionError(fmt.Sprintf(
			"entry for application %s at %s is assigned to %s, not %s",
			applicationID, level, entry.AssignedTo, officerID))
	}
	return entry, nil
}

// officeNotification builds the officer-side review_pending request for the
// office whose queue just received an entry. The contact lookup is advisory:
// a failure drops the notification, never the operation.
func (e *Engine) officeNotification(ctx context.Context, app *models.Application, level models.ReviewLevel, entry *models.QueueEntry) *models.NotificationRequest {
	officer, err := e.directory.OfficeContact(ctx, level, app.Jurisdiction)
	if err != nil {
		e.logger.Warn("office contact lookup failed", map[string]interface{}{
			"applicationId": app.ID,
			"level":         level,
			"error":         err,
		})
		return nil
	}
	return newNotification(
		models.Recipient{ID: officer.ID, Email: officer.Email, Phone: officer.Phone},
		models.TemplateReviewPending, app.ID, level, map[string]interface{}{
			"priority":    entry.Priority,
			"slaDeadline": entry.SLADeadline,
		},
	)
}

func newNotification(recipient models.Recipient, kind models.TemplateKind, applicationID string, level models.ReviewLevel, context map[string]interface{}) *models.NotificationRequest {
	return &models.NotificationRequest{
		ID:            uuid.New().String(),
		Recipient:     recipient,
		TemplateKind:  kind,
		ApplicationID: applicationID,
		Level:         level,
		Context:       context,
		CreatedAt:     time.Now().UTC(),
	}
}
