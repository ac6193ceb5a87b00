// internal/review/store/applications.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/models"
)

// ApplicationStore persists applications. All workflow mutations run inside
// the caller's transaction; the store never opens its own.
type ApplicationStore struct{}

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{}
}

const applicationColumns = `
	id, kind, applicant_id, applicant_email, applicant_phone, status,
	current_level, constituency_code, region_code, permanent_id, payload,
	flock_size, annual_revenue, eligibility_score, enrollment_close,
	constituency_approved_at, regional_approved_at, national_approved_at,
	submitted_at, created_at, updated_at`

// Create inserts a new draft application and returns its generated id.
func (s *ApplicationStore) Create(ctx context.Context, q DBTX, app *models.Application) (string, error) {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	payloadJSON, err := json.Marshal(app.Payload)
	if err != nil {
		return "", apperrors.NewValidationFailedError(fmt.Sprintf("marshal payload: %v", err))
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO applications (
			id, kind, applicant_id, applicant_email, applicant_phone, status,
			current_level, constituency_code, region_code, payload,
			flock_size, annual_revenue, eligibility_score, enrollment_close,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		app.ID,
		app.Kind,
		app.ApplicantID,
		app.ApplicantEmail,
		app.ApplicantPhone,
		models.StatusDraft,
		"",
		app.Jurisdiction.ConstituencyCode,
		app.Jurisdiction.RegionCode,
		payloadJSON,
		app.FlockSize,
		app.AnnualRevenue,
		app.EligibilityScore,
		app.EnrollmentClose,
		now,
	)
	if err != nil {
		return "", wrapDBError(err)
	}

	app.Status = models.StatusDraft
	app.CreatedAt = now
	app.UpdatedAt = now
	return app.ID, nil
}

// Get loads one application.
func (s *ApplicationStore) Get(ctx context.Context, q DBTX, id string) (*models.Application, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1`, id)
	return scanApplication(row, id)
}

// GetForUpdate loads one application under a row lock. Every engine
// transaction starts here so that concurrent operations on the same
// application serialize.
func (s *ApplicationStore) GetForUpdate(ctx context.Context, q DBTX, id string) (*models.Application, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id = $1
		FOR UPDATE`, id)
	return scanApplication(row, id)
}

// SetStatus updates the lifecycle state and current review level.
func (s *ApplicationStore) SetStatus(ctx context.Context, q DBTX, id string, status models.ApplicationStatus, level models.ReviewLevel) error {
	res, err := q.ExecContext(ctx, `
		UPDATE applications
		SET status = $2, current_level = $3, updated_at = $4
		WHERE id = $1`,
		id, status, level, time.Now().UTC())
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "application", id)
}

// MarkSubmitted stamps the submission time alongside the first status change.
func (s *ApplicationStore) MarkSubmitted(ctx context.Context, q DBTX, id string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE applications
		SET status = $2, current_level = $3, submitted_at = $4, updated_at = $4
		WHERE id = $1`,
		id, models.StatusConstituencyReview, models.LevelConstituency, at)
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "application", id)
}

// StampLevelApproval records the per-level approval timestamp.
func (s *ApplicationStore) StampLevelApproval(ctx context.Context, q DBTX, id string, level models.ReviewLevel, at time.Time) error {
	var column string
	switch level {
	case models.LevelConstituency:
		column = "constituency_approved_at"
	case models.LevelRegional:
		column = "regional_approved_at"
	case models.LevelNational:
		column = "national_approved_at"
	default:
		return apperrors.NewInvalidStateError(fmt.Sprintf("unknown review level: %s", level))
	}

	res, err := q.ExecContext(ctx, `
		UPDATE applications
		SET `+column+` = $2, updated_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "application", id)
}

// Finalize sets the approved terminal state together with the minted
// permanent identifier. Must run in the same transaction as the mint.
func (s *ApplicationStore) Finalize(ctx context.Context, q DBTX, id, permanentID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE applications
		SET status = $2, current_level = '', permanent_id = $3,
		    national_approved_at = $4, updated_at = $4
		WHERE id = $1`,
		id, models.StatusApproved, permanentID, at)
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "application", id)
}

func scanApplication(row *sql.Row, id string) (*models.Application, error) {
	var (
		app         models.Application
		level       string
		permanentID sql.NullString
		payloadJSON []byte
	)

	err := row.Scan(
		&app.ID,
		&app.Kind,
		&app.ApplicantID,
		&app.ApplicantEmail,
		&app.ApplicantPhone,
		&app.Status,
		&level,
		&app.Jurisdiction.ConstituencyCode,
		&app.Jurisdiction.RegionCode,
		&permanentID,
		&payloadJSON,
		&app.FlockSize,
		&app.AnnualRevenue,
		&app.EligibilityScore,
		&app.EnrollmentClose,
		&app.ConstituencyApprovedAt,
		&app.RegionalApprovedAt,
		&app.NationalApprovedAt,
		&app.SubmittedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("application", fmt.Sprintf("applicationId: %s", id))
		}
		return nil, wrapDBError(err)
	}

	app.CurrentLevel = models.ReviewLevel(level)
	app.PermanentID = permanentID.String
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &app.Payload); err != nil {
			return nil, wrapDBError(err)
		}
	}
	return &app, nil
}

func requireOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(resource, fmt.Sprintf("id: %s", id))
	}
	return nil
}
