package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"poultry-review/internal/common/config"
	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/logger"
	"poultry-review/internal/models"
	"poultry-review/internal/review/directory"
	"poultry-review/internal/review/policy"
	"poultry-review/internal/review/store"
)

// captureDispatcher records every notification request the engine emits.
type captureDispatcher struct {
	requests []*models.NotificationRequest
}

func (d *captureDispatcher) Dispatch(_ context.Context, req *models.NotificationRequest) {
	d.requests = append(d.requests, req)
}

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock, *captureDispatcher) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	dispatcher := &captureDispatcher{}

	eng := New(Options{
		DB:           db,
		Applications: store.NewApplicationStore(),
		Queue:        store.NewQueueStore(),
		Audit:        store.NewAuditRecorder(nil, "", log),
		Allocator:    store.NewAllocator("PPR", 3),
		SLA: policy.NewSLAPolicy(config.SLAConfig{
			ConstituencyDays: 7,
			RegionalDays:     5,
			NationalDays:     3,
		}),
		Scorer: policy.NewScorer(config.PriorityConfig{
			AgeMaxPoints:         50,
			AgePointsPerDay:      5,
			SmallFarmBonus:       15,
			SmallFarmFlockSize:   500,
			LowRevenueBonus:      10,
			LowRevenueThreshold:  50000,
			EligibilityMaxPoints: 15,
			DeadlineMaxPoints:    10,
			DeadlineWindowDays:   14,
		}),
		Directory:  directory.New(db, nil, time.Minute, log),
		Dispatcher: dispatcher,
		Logger:     log,
	})
	return eng, mock, dispatcher
}

var applicationRowColumns = []string{
	"id", "kind", "applicant_id", "applicant_email", "applicant_phone", "status",
	"current_level", "constituency_code", "region_code", "permanent_id", "payload",
	"flock_size", "annual_revenue", "eligibility_score", "enrollment_close",
	"constituency_approved_at", "regional_approved_at", "national_approved_at",
	"submitted_at", "created_at", "updated_at",
}

func applicationRow(t *testing.T, status models.ApplicationStatus, level models.ReviewLevel) *sqlmock.Rows {
	payload, err := json.Marshal(map[string]interface{}{
		"farmName":    "Green Valley Farm",
		"farmAddress": "12 District Rd",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	now := time.Now().UTC()
	var submitted interface{}
	if status != models.StatusDraft {
		submitted = now.Add(-48 * time.Hour)
	}

	return sqlmock.NewRows(applicationRowColumns).AddRow(
		"app-1", models.KindRegistration, "farmer-1", "farmer@example.com", "+93700000001",
		status, string(level), "KBL-01", "KBL", nil, payload,
		250, 30000, 70, nil,
		nil, nil, nil,
		submitted, now.Add(-72*time.Hour), now,
	)
}

func queueEntryRow(status models.QueueStatus, level models.ReviewLevel, assignedTo interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "application_id", "level", "status", "assigned_to", "assigned_at",
		"priority", "sla_deadline", "is_overdue", "constituency_code",
		"region_code", "created_at", "completed_at",
	}).AddRow(
		"entry-1", "app-1", string(level), status, assignedTo, nil,
		40, now.Add(5*24*time.Hour), false, "KBL-01", "KBL", now, nil,
	)
}

func officerRow(level models.ReviewLevel) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "level", "constituency_code",
		"region_code", "active", "created_at",
	}).AddRow(
		"officer-1", "A. Karimi", "karimi@example.gov", "+93700000002",
		string(level), "KBL-01", "KBL", true, time.Now().UTC(),
	)
}

func TestEngine_Submit(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusDraft, ""))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WithArgs(string(models.LevelConstituency), "KBL-01", "").
		WillReturnRows(officerRow(models.LevelConstituency))
	mock.ExpectCommit()

	err := eng.Submit(context.Background(), "app-1", "farmer-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 2) {
		assert.Equal(t, models.TemplateApplicationSubmitted, dispatcher.requests[0].TemplateKind)
		assert.Equal(t, "farmer-1", dispatcher.requests[0].Recipient.ID)
		assert.Equal(t, models.TemplateReviewPending, dispatcher.requests[1].TemplateKind)
		assert.Equal(t, "officer-1", dispatcher.requests[1].Recipient.ID)
	}
}

func TestEngine_Submit_NoOfficeContactStillCommits(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusDraft, ""))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// No officer on record for the constituency office.
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	err := eng.Submit(context.Background(), "app-1", "farmer-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 1) {
		assert.Equal(t, models.TemplateApplicationSubmitted, dispatcher.requests[0].TemplateKind)
	}
}

func TestEngine_Submit_RejectsNonDraft(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusApproved, ""))
	mock.ExpectRollback()

	err := eng.Submit(context.Background(), "app-1", "farmer-1")

	assert.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
	assert.Empty(t, dispatcher.requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Claim(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusConstituencyReview, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WithArgs("officer-1").
		WillReturnRows(officerRow(models.LevelConstituency))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := eng.Claim(context.Background(), "app-1", "officer-1", models.LevelConstituency)

	assert.NoError(t, err)
	assert.Empty(t, dispatcher.requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Claim_LosesRace(t *testing.T) {
	eng, mock, _ := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusConstituencyReview, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WithArgs("officer-1").
		WillReturnRows(officerRow(models.LevelConstituency))
	// The conditional update matches nothing: a rival claimed first.
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := eng.Claim(context.Background(), "app-1", "officer-1", models.LevelConstituency)

	assert.Error(t, err)
	assert.True(t, apperrors.IsAlreadyClaimed(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_Claim_WrongJurisdiction(t *testing.T) {
	eng, mock, _ := newTestEngine(t)

	officer := sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "level", "constituency_code",
		"region_code", "active", "created_at",
	}).AddRow(
		"officer-2", "B. Rahimi", "rahimi@example.gov", "",
		string(models.LevelConstituency), "HRT-02", "HRT", true, time.Now().UTC(),
	)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusConstituencyReview, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WithArgs("officer-2").
		WillReturnRows(officer)
	mock.ExpectRollback()

	err := eng.Claim(context.Background(), "app-1", "officer-2", models.LevelConstituency)

	assert.Error(t, err)
	assert.True(t, apperrors.IsPermission(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ApproveAndForward(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusConstituencyReview, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueClaimed, models.LevelConstituency, "officer-1"))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// first the level approval stamp, then the status transition
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WithArgs(string(models.LevelRegional), "", "KBL").
		WillReturnRows(officerRow(models.LevelRegional))
	mock.ExpectCommit()

	err := eng.ApproveAndForward(context.Background(), "app-1", "officer-1",
		models.LevelConstituency, "documents verified")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 2) {
		req := dispatcher.requests[0]
		assert.Equal(t, models.TemplateLevelApproved, req.TemplateKind)
		assert.Equal(t, string(models.LevelRegional), req.Context["nextLevel"])
		pending := dispatcher.requests[1]
		assert.Equal(t, models.TemplateReviewPending, pending.TemplateKind)
		assert.Equal(t, models.LevelRegional, pending.Level)
		assert.Equal(t, "officer-1", pending.Recipient.ID)
	}
}

func TestEngine_ApproveAndForward_RequiresAssignee(t *testing.T) {
	eng, mock, _ := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusConstituencyReview, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueClaimed, models.LevelConstituency, "officer-1"))
	mock.ExpectRollback()

	err := eng.ApproveAndForward(context.Background(), "app-1", "someone-else",
		models.LevelConstituency, "")

	assert.Error(t, err)
	assert.True(t, apperrors.IsPermission(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ApproveAndForward_NationalFinalizes(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusNationalReview, models.LevelNational))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueClaimed, models.LevelNational, "officer-1"))
	mock.ExpectQuery(`INSERT INTO registration_sequences`).
		WithArgs("PPR-KBL-01").
		WillReturnRows(sqlmock.NewRows([]string{"next_seq"}).AddRow(12))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := eng.ApproveAndForward(context.Background(), "app-1", "officer-1",
		models.LevelNational, "final checks complete")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 1) {
		req := dispatcher.requests[0]
		assert.Equal(t, models.TemplateApplicationApproved, req.TemplateKind)
		assert.Equal(t, "PPR-KBL-01-0012", req.Context["permanentId"])
	}
}

func TestEngine_Reject_RequiresReason(t *testing.T) {
	eng, _, dispatcher := newTestEngine(t)

	err := eng.Reject(context.Background(), "app-1", "officer-1",
		models.LevelRegional, "   ")

	assert.Error(t, err)
	assert.True(t, apperrors.IsValidationFailed(err))
	assert.Empty(t, dispatcher.requests)
}

func TestEngine_Reject(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusRegionalReview, models.LevelRegional))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueClaimed, models.LevelRegional, "officer-1"))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := eng.Reject(context.Background(), "app-1", "officer-1",
		models.LevelRegional, "land documents inconsistent")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 1) {
		req := dispatcher.requests[0]
		assert.Equal(t, models.TemplateApplicationRejected, req.TemplateKind)
		assert.Equal(t, "land documents inconsistent", req.Context["reason"])
	}
}

func TestEngine_RequestChanges(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusConstituencyReview, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueClaimed, models.LevelConstituency, "officer-1"))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := eng.RequestChanges(context.Background(), "app-1", "officer-1",
		models.LevelConstituency, "vaccination records missing",
		[]string{"attach vaccination card"}, 0)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 1) {
		req := dispatcher.requests[0]
		assert.Equal(t, models.TemplateChangesRequested, req.TemplateKind)
		assert.NotNil(t, req.Context["responseDeadline"])
	}
}

func TestEngine_ResubmitAfterChanges(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusChangesRequested, models.LevelConstituency))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueInProgress, models.LevelConstituency, "officer-1"))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WithArgs("officer-1").
		WillReturnRows(officerRow(models.LevelConstituency))
	mock.ExpectCommit()

	err := eng.ResubmitAfterChanges(context.Background(), "app-1", "farmer-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 1) {
		req := dispatcher.requests[0]
		assert.Equal(t, models.TemplateChangesSubmitted, req.TemplateKind)
		assert.Equal(t, "officer-1", req.Recipient.ID)
	}
}

func TestEngine_Withdraw(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusRegionalReview, models.LevelRegional))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := eng.Withdraw(context.Background(), "app-1", "farmer-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	if assert.Len(t, dispatcher.requests, 1) {
		assert.Equal(t, models.TemplateApplicationWithdrawn, dispatcher.requests[0].TemplateKind)
	}
}

func TestEngine_Withdraw_TerminalStateImmutable(t *testing.T) {
	eng, mock, _ := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusRejected, ""))
	mock.ExpectRollback()

	err := eng.Withdraw(context.Background(), "app-1", "farmer-1")

	assert.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestEngine_FullPipeline drives one application through every happy-path
// transition in order: submit, then claim and approve at each of the three
// tiers, ending in finalization with a minted permanent id.
func TestEngine_FullPipeline(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)
	ctx := context.Background()

	// submit: draft -> constituency_review
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WillReturnRows(applicationRow(t, models.StatusDraft, ""))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WillReturnRows(officerRow(models.LevelConstituency))
	mock.ExpectCommit()
	assert.NoError(t, eng.Submit(ctx, "app-1", "farmer-1"))

	// claim + approve at constituency and regional
	for _, step := range []struct {
		level models.ReviewLevel
		next  models.ReviewLevel
	}{
		{models.LevelConstituency, models.LevelRegional},
		{models.LevelRegional, models.LevelNational},
	} {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM applications`).
			WillReturnRows(applicationRow(t, models.ReviewStatus(step.level), step.level))
		mock.ExpectQuery(`SELECT (.+) FROM officers`).
			WillReturnRows(officerRow(step.level))
		mock.ExpectExec(`UPDATE review_queue`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO review_actions`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		assert.NoError(t, eng.Claim(ctx, "app-1", "officer-1", step.level))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM applications`).
			WillReturnRows(applicationRow(t, models.ReviewStatus(step.level), step.level))
		mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
			WillReturnRows(queueEntryRow(models.QueueClaimed, step.level, "officer-1"))
		mock.ExpectExec(`INSERT INTO review_actions`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE review_queue`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE applications`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE applications`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO review_queue`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM officers`).
			WillReturnRows(officerRow(step.next))
		mock.ExpectCommit()
		assert.NoError(t, eng.ApproveAndForward(ctx, "app-1", "officer-1", step.level, "ok"))
	}

	// claim + approve at national, which finalizes
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WillReturnRows(applicationRow(t, models.StatusNationalReview, models.LevelNational))
	mock.ExpectQuery(`SELECT (.+) FROM officers`).
		WillReturnRows(officerRow(models.LevelNational))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	assert.NoError(t, eng.Claim(ctx, "app-1", "officer-1", models.LevelNational))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WillReturnRows(applicationRow(t, models.StatusNationalReview, models.LevelNational))
	mock.ExpectQuery(`SELECT (.+) FROM review_queue`).
		WillReturnRows(queueEntryRow(models.QueueClaimed, models.LevelNational, "officer-1"))
	mock.ExpectQuery(`INSERT INTO registration_sequences`).
		WillReturnRows(sqlmock.NewRows([]string{"next_seq"}).AddRow(7))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE review_queue`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_actions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	assert.NoError(t, eng.ApproveAndForward(ctx, "app-1", "officer-1", models.LevelNational, "done"))

	assert.NoError(t, mock.ExpectationsWereMet())

	var kinds []models.TemplateKind
	for _, req := range dispatcher.requests {
		kinds = append(kinds, req.TemplateKind)
	}
	assert.Equal(t, []models.TemplateKind{
		models.TemplateApplicationSubmitted,
		models.TemplateReviewPending,
		models.TemplateLevelApproved,
		models.TemplateReviewPending,
		models.TemplateLevelApproved,
		models.TemplateReviewPending,
		models.TemplateApplicationApproved,
	}, kinds)
	last := dispatcher.requests[len(dispatcher.requests)-1]
	assert.Equal(t, "PPR-KBL-01-0007", last.Context["permanentId"])
}

func TestEngine_NoNotificationsOnRollback(t *testing.T) {
	eng, mock, dispatcher := newTestEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM applications`).
		WithArgs("app-1").
		WillReturnRows(applicationRow(t, models.StatusDraft, ""))
	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO review_queue`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := eng.Submit(context.Background(), "app-1", "farmer-1")

	assert.Error(t, err)
	assert.Empty(t, dispatcher.requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}
