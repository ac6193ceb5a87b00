// internal/review/engine/engine.go
package engine

import (
	"context"
	"database/sql"
	"time"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/logger"
	"poultry-review/internal/common/metrics"
	"poultry-review/internal/common/observability"
	"poultry-review/internal/models"
	"poultry-review/internal/review/directory"
	"poultry-review/internal/review/policy"
	"poultry-review/internal/review/store"
)

// Dispatcher consumes the notification requests the engine emits after every
// terminal or level-transition action. Delivery is entirely its concern;
// dispatch failures never roll back a committed operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.NotificationRequest)
}

// Engine orchestrates the multi-tier review workflow. Every public operation
// executes as one serializable transaction covering the application update,
// the queue entry write, the audit-trail insert, and (for finalization) the
// identifier mint: either all commit or none do.
type Engine struct {
	db         *sql.DB
	apps       *store.ApplicationStore
	queue      *store.QueueStore
	audit      *store.AuditRecorder
	allocator  *store.Allocator
	sla        *policy.SLAPolicy
	scorer     *policy.Scorer
	directory  *directory.Directory
	dispatcher Dispatcher
	obs        *observability.Observability
	logger     logger.Logger

	opTimeout          time.Duration
	changeDeadlineDays int
}

// Options carries the engine's collaborators. All are required except
// Dispatcher and Observability, which may be nil in tests.
type Options struct {
	DB                 *sql.DB
	Applications       *store.ApplicationStore
	Queue              *store.QueueStore
	Audit              *store.AuditRecorder
	Allocator          *store.Allocator
	SLA                *policy.SLAPolicy
	Scorer             *policy.Scorer
	Directory          *directory.Directory
	Dispatcher         Dispatcher
	Observability      *observability.Observability
	Logger             logger.Logger
	OperationTimeout   time.Duration
	ChangeDeadlineDays int
}

func New(opts Options) *Engine {
	if opts.OperationTimeout == 0 {
		opts.OperationTimeout = 10 * time.Second
	}
	if opts.ChangeDeadlineDays == 0 {
		opts.ChangeDeadlineDays = 14
	}
	return &Engine{
		db:                 opts.DB,
		apps:               opts.Applications,
		queue:              opts.Queue,
		audit:              opts.Audit,
		allocator:          opts.Allocator,
		sla:                opts.SLA,
		scorer:             opts.Scorer,
		directory:          opts.Directory,
		dispatcher:         opts.Dispatcher,
		obs:                opts.Observability,
		logger:             opts.Logger.WithFields(map[string]interface{}{"component": "workflow-engine"}),
		opTimeout:          opts.OperationTimeout,
		changeDeadlineDays: opts.ChangeDeadlineDays,
	}
}

// withTx runs fn inside a bounded serializable transaction. Notification
// requests returned by fn are dispatched only after a successful commit.
func (e *Engine) withTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) ([]*models.NotificationRequest, error)) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return e.fail(ctx, op, apperrors.NewTransientError(err))
	}

	notifications, err := fn(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return e.fail(ctx, op, err)
	}

	if err := tx.Commit(); err != nil {
		return e.fail(ctx, op, apperrors.NewTransientError(err))
	}

	elapsed := time.Since(start)
	metrics.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if e.obs != nil {
		e.obs.RecordOperation(ctx, op, "success")
		e.obs.RecordDuration(ctx, op, elapsed)
	}
	e.notify(ctx, notifications)
	return nil
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	metrics.OperationsFailed.WithLabelValues(op, string(apperrors.CodeOf(err))).Inc()
	if e.obs != nil {
		e.obs.RecordOperation(ctx, op, "failed")
	}
	return err
}

// notify hands requests to the dispatcher post-commit. The dispatcher owns
// delivery; a nil dispatcher drops them.
func (e *Engine) notify(ctx context.Context, reqs []*models.NotificationRequest) {
	if e.dispatcher == nil {
		return
	}
	for _, req := range reqs {
		e.dispatcher.Dispatch(ctx, req)
	}
}

func applicantRecipient(app *models.Application) models.Recipient {
	return models.Recipient{
		ID:    app.ApplicantID,
		Email: app.ApplicantEmail,
		Phone: app.ApplicantPhone,
	}
}
