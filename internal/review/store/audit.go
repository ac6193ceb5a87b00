// internal/review/store/audit.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"poultry-review/internal/common/logger"
	"poultry-review/internal/common/metrics"
	"poultry-review/internal/models"
)

// AuditIndexer mirrors review actions into a search index. Implemented by
// the Elasticsearch client; nil disables mirroring.
type AuditIndexer interface {
	Index(ctx context.Context, index, docID string, body []byte) error
}

// AuditRecorder appends to the review_actions audit trail. Rows are never
// updated or deleted; the workflow engine writes one row per state change
// inside the operation's transaction.
type AuditRecorder struct {
	indexer AuditIndexer
	index   string
	logger  logger.Logger
}

func NewAuditRecorder(indexer AuditIndexer, index string, log logger.Logger) *AuditRecorder {
	return &AuditRecorder{
		indexer: indexer,
		index:   index,
		logger:  log,
	}
}

// Append inserts one review action. The optional search mirror runs after
// the insert and is best effort: a mirror failure is logged, never returned.
func (r *AuditRecorder) Append(ctx context.Context, q DBTX, action *models.ReviewAction) error {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(action.Metadata)
	if err != nil {
		return wrapDBError(fmt.Errorf("marshal action metadata: %w", err))
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO review_actions (
			id, application_id, level, actor, action, notes, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		action.ID,
		action.ApplicationID,
		action.Level,
		action.Actor,
		action.Action,
		action.Notes,
		metadataJSON,
		action.CreatedAt,
	)
	if err != nil {
		return wrapDBError(err)
	}

	metrics.ReviewActionsTotal.WithLabelValues(string(action.Action), string(action.Level)).Inc()
	r.mirror(ctx, action)
	return nil
}

// ListByApplication returns the full audit trail in creation order.
func (r *AuditRecorder) ListByApplication(ctx context.Context, q DBTX, applicationID string) ([]models.ReviewAction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, application_id, level, actor, action, notes, metadata, created_at
		FROM review_actions
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC`, applicationID)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var actions []models.ReviewAction
	for rows.Next() {
		var (
			action       models.ReviewAction
			level        string
			notes        sql.NullString
			metadataJSON []byte
		)
		if err := rows.Scan(
			&action.ID,
			&action.ApplicationID,
			&level,
			&action.Actor,
			&action.Action,
			&notes,
			&metadataJSON,
			&action.CreatedAt,
		); err != nil {
			return nil, wrapDBError(err)
		}
		action.Level = models.ReviewLevel(level)
		action.Notes = notes.String
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &action.Metadata); err != nil {
				return nil, wrapDBError(err)
			}
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err)
	}
	return actions, nil
}

func (r *AuditRecorder) mirror(ctx context.Context, action *models.ReviewAction) {
	if r.indexer == nil {
		return
	}

	body, err := json.Marshal(action)
	if err != nil {
		r.logger.Warn("audit mirror marshal failed", map[string]interface{}{
			"actionId": action.ID,
			"error":    err,
		})
		return
	}

	if err := r.indexer.Index(ctx, r.index, action.ID, body); err != nil {
		r.logger.Warn("audit mirror index failed", map[string]interface{}{
			"actionId":      action.ID,
			"applicationId": action.ApplicationID,
			"error":         err,
		})
	}
}
