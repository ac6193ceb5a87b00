// internal/review/store/queue.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/metrics"
	"poultry-review/internal/models"
)

// QueueStore persists claimable review work. A partial unique index on
// (application_id, level) WHERE status != 'completed' guarantees at most one
// live entry per application per level.
type QueueStore struct{}

func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

const queueColumns = `
	id, application_id, level, status, assigned_to, assigned_at, priority,
	sla_deadline, is_overdue, constituency_code, region_code, created_at,
	completed_at`

// Enqueue creates a pending entry for (application, level).
func (s *QueueStore) Enqueue(ctx context.Context, q DBTX, entry *models.QueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.Status = models.QueuePending
	entry.CreatedAt = time.Now().UTC()

	_, err := q.ExecContext(ctx, `
		INSERT INTO review_queue (
			id, application_id, level, status, priority, sla_deadline,
			is_overdue, constituency_code, region_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8, $9)`,
		entry.ID,
		entry.ApplicationID,
		entry.Level,
		models.QueuePending,
		entry.Priority,
		entry.SLADeadline,
		entry.Jurisdiction.ConstituencyCode,
		entry.Jurisdiction.RegionCode,
		entry.CreatedAt,
	)
	if err != nil {
		if isSerializationFailure(err) {
			return apperrors.NewAlreadyClaimedError(entry.ApplicationID, string(entry.Level))
		}
		return wrapDBError(err)
	}
	return nil
}

// Claim transitions the pending entry for (application, level) to claimed and
// assigns it in one conditional write. Exactly one concurrent claimant
// succeeds; the rest observe zero rows affected.
func (s *QueueStore) Claim(ctx context.Context, q DBTX, applicationID string, level models.ReviewLevel, officerID string) error {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		UPDATE review_queue
		SET status = $4, assigned_to = $5, assigned_at = $6
		WHERE application_id = $1 AND level = $2 AND status = $3`,
		applicationID, level, models.QueuePending,
		models.QueueClaimed, officerID, now)
	if err != nil {
		return wrapDBError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err)
	}
	if n == 0 {
		// Either no live entry exists or someone claimed it first.
		exists, err := s.hasActiveEntry(ctx, q, applicationID, level)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.NewNotFoundError("queue entry",
				fmt.Sprintf("applicationId: %s, level: %s", applicationID, level))
		}
		metrics.ClaimConflictsTotal.Inc()
		return apperrors.NewAlreadyClaimedError(applicationID, string(level))
	}
	return nil
}

// MarkInProgress moves a claimed entry to in_progress. Used by
// requestChanges: the entry stays open so review resumes at the same level.
func (s *QueueStore) MarkInProgress(ctx context.Context, q DBTX, applicationID string, level models.ReviewLevel) error {
	res, err := q.ExecContext(ctx, `
		UPDATE review_queue
		SET status = $4
		WHERE application_id = $1 AND level = $2 AND status = $3`,
		applicationID, level, models.QueueClaimed, models.QueueInProgress)
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "queue entry", applicationID)
}

// Resume moves an in_progress entry back to claimed after the applicant
// resubmits. If the entry has no assignee it returns to pending instead.
func (s *QueueStore) Resume(ctx context.Context, q DBTX, applicationID string, level models.ReviewLevel) error {
	res, err := q.ExecContext(ctx, `
		UPDATE review_queue
		SET status = CASE WHEN assigned_to IS NULL THEN $4 ELSE $5 END
		WHERE application_id = $1 AND level = $2 AND status = $3`,
		applicationID, level, models.QueueInProgress,
		models.QueuePending, models.QueueClaimed)
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "queue entry", applicationID)
}

// Complete closes the live entry for (application, level).
func (s *QueueStore) Complete(ctx context.Context, q DBTX, applicationID string, level models.ReviewLevel, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE review_queue
		SET status = $3, completed_at = $4
		WHERE application_id = $1 AND level = $2 AND status != $3`,
		applicationID, level, models.QueueCompleted, at)
	if err != nil {
		return wrapDBError(err)
	}
	return requireOneRow(res, "queue entry", applicationID)
}

// CompleteAll closes every live entry of an application. Used by withdraw.
func (s *QueueStore) CompleteAll(ctx context.Context, q DBTX, applicationID string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE review_queue
		SET status = $2, completed_at = $3
		WHERE application_id = $1 AND status != $2`,
		applicationID, models.QueueCompleted, at)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

// ActiveEntry returns the live (non-completed) entry for (application, level).
func (s *QueueStore) ActiveEntry(ctx context.Context, q DBTX, applicationID string, level models.ReviewLevel) (*models.QueueEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM review_queue
		WHERE application_id = $1 AND level = $2 AND status != $3`,
		applicationID, level, models.QueueCompleted)

	entry, err := scanQueueEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("queue entry",
				fmt.Sprintf("applicationId: %s, level: %s", applicationID, level))
		}
		return nil, wrapDBError(err)
	}
	return entry, nil
}

// ListPending returns claimable entries for a level ordered by
// (priority DESC, sla_deadline ASC). Jurisdiction narrows the list when
// non-nil: constituency officers see their constituency, regional officers
// their region.
func (s *QueueStore) ListPending(ctx context.Context, q DBTX, level models.ReviewLevel, jurisdiction *models.Jurisdiction) ([]models.QueueEntry, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM review_queue
		WHERE level = $1 AND status = $2`
	args := []interface{}{level, models.QueuePending}

	if jurisdiction != nil {
		switch level {
		case models.LevelConstituency:
			query += ` AND constituency_code = $3`
			args = append(args, jurisdiction.ConstituencyCode)
		case models.LevelRegional:
			query += ` AND region_code = $3`
			args = append(args, jurisdiction.RegionCode)
		}
	}
	query += ` ORDER BY priority DESC, sla_deadline ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntryRows(rows)
		if err != nil {
			return nil, wrapDBError(err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return entries, nil
}

// MarkOverdue flips is_overdue on every open entry past its deadline. Pure
// bulk update, idempotent, and touches no engine-owned field: an entry
// claimed between read and write simply becomes an overdue-but-claimed entry.
func (s *QueueStore) MarkOverdue(ctx context.Context, q DBTX, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE review_queue
		SET is_overdue = TRUE
		WHERE status IN ($1, $2, $3)
		  AND sla_deadline < $4
		  AND is_overdue = FALSE`,
		models.QueuePending, models.QueueClaimed, models.QueueInProgress, now)
	if err != nil {
		return 0, wrapDBError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError(err)
	}
	return n, nil
}

// LeastLoadedOfficer ranks active officers for a level and jurisdiction by
// their count of open claims and returns the least loaded one. Ties break on
// the lowest officer id, which keeps assignment deterministic.
func (s *QueueStore) LeastLoadedOfficer(ctx context.Context, q DBTX, level models.ReviewLevel, jurisdiction models.Jurisdiction) (string, error) {
	scope := ""
	args := []interface{}{level, models.QueueClaimed, models.QueueInProgress}
	switch level {
	case models.LevelConstituency:
		scope = ` AND o.constituency_code = $4`
		args = append(args, jurisdiction.ConstituencyCode)
	case models.LevelRegional:
		scope = ` AND o.region_code = $4`
		args = append(args, jurisdiction.RegionCode)
	}

	row := q.QueryRowContext(ctx, `
		SELECT o.id
		FROM officers o
		LEFT JOIN review_queue rq
		  ON rq.assigned_to = o.id AND rq.status IN ($2, $3)
		WHERE o.level = $1 AND o.active`+scope+`
		GROUP BY o.id
		ORDER BY COUNT(rq.id) ASC, o.id ASC
		LIMIT 1`, args...)

	var officerID string
	if err := row.Scan(&officerID); err != nil {
		if err == sql.ErrNoRows {
			return "", apperrors.NewNotFoundError("officer",
				fmt.Sprintf("no active officer for level %s", level))
		}
		return "", wrapDBError(err)
	}
	return officerID, nil
}

func (s *QueueStore) hasActiveEntry(ctx context.Context, q DBTX, applicationID string, level models.ReviewLevel) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM review_queue
			WHERE application_id = $1 AND level = $2 AND status != $3
		)`, applicationID, level, models.QueueCompleted).Scan(&exists)
	if err != nil {
		return false, wrapDBError(err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueEntry(row *sql.Row) (*models.QueueEntry, error) {
	return scanQueueFrom(row)
}

func scanQueueEntryRows(rows *sql.Rows) (*models.QueueEntry, error) {
	return scanQueueFrom(rows)
}

func scanQueueFrom(r rowScanner) (*models.QueueEntry, error) {
	var (
		entry      models.QueueEntry
		assignedTo sql.NullString
	)
	err := r.Scan(
		&entry.ID,
		&entry.ApplicationID,
		&entry.Level,
		&entry.Status,
		&assignedTo,
		&entry.AssignedAt,
		&entry.Priority,
		&entry.SLADeadline,
		&entry.IsOverdue,
		&entry.Jurisdiction.ConstituencyCode,
		&entry.Jurisdiction.RegionCode,
		&entry.CreatedAt,
		&entry.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.AssignedTo = assignedTo.String
	return &entry, nil
}
