// internal/review/store/identifier.go
package store

import (
	"context"
	"fmt"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/metrics"
	"poultry-review/internal/models"
)

// Allocator mints permanent registration identifiers of the form
// PREFIX-{JURISDICTION}-{SEQ:04d}. Each (prefix, jurisdiction) pair owns a
// counter row; the increment is a single upsert statement, so concurrent
// finalizations in the same jurisdiction each observe a distinct sequence
// number. The caller runs Mint inside the finalization transaction: if the
// transaction aborts, the increment rolls back with it and no identifier
// leaks.
type Allocator struct {
	prefix      string
	maxAttempts int
}

func NewAllocator(prefix string, maxAttempts int) *Allocator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Allocator{prefix: prefix, maxAttempts: maxAttempts}
}

// Mint returns the next identifier for a jurisdiction. Serialization
// conflicts are retried up to the configured attempt budget, then surfaced
// as a transient error the caller may retry with backoff.
func (a *Allocator) Mint(ctx context.Context, q DBTX, j models.Jurisdiction) (string, error) {
	counterKey := fmt.Sprintf("%s-%s", a.prefix, j.ConstituencyCode)

	var lastErr error
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		seq, err := a.nextSeq(ctx, q, counterKey)
		if err == nil {
			metrics.IdentifiersMinted.WithLabelValues(a.prefix).Inc()
			return fmt.Sprintf("%s-%s-%04d", a.prefix, j.ConstituencyCode, seq), nil
		}

		if !apperrors.IsIdentifierCollision(err) {
			return "", err
		}
		lastErr = err
	}

	return "", apperrors.NewTransientError(
		fmt.Errorf("identifier allocation exhausted %d attempts: %w", a.maxAttempts, lastErr))
}

func (a *Allocator) nextSeq(ctx context.Context, q DBTX, counterKey string) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO registration_sequences (prefix, next_seq)
		VALUES ($1, 1)
		ON CONFLICT (prefix)
		DO UPDATE SET next_seq = registration_sequences.next_seq + 1
		RETURNING next_seq`, counterKey).Scan(&seq)
	if err != nil {
		if isSerializationFailure(err) {
			return 0, apperrors.NewIdentifierCollisionError(counterKey, err)
		}
		return 0, wrapDBError(err)
	}
	return seq, nil
}
