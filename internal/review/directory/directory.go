// internal/review/directory/directory.go
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/logger"
	"poultry-review/internal/models"
)

// Directory is the read-only officer lookup used by claim to validate an
// officer's permitted level and jurisdiction. Lookups go through a Redis
// read-through cache; a cache outage degrades to plain database reads.
type Directory struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func New(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Directory {
	return &Directory{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "directory"}),
	}
}

// GetOfficer returns one officer by id.
func (d *Directory) GetOfficer(ctx context.Context, officerID string) (*models.Officer, error) {
	cacheKey := "officer:" + officerID
	if d.redis != nil {
		if val, err := d.redis.Get(ctx, cacheKey).Result(); err == nil {
			var officer models.Officer
			if err := json.Unmarshal([]byte(val), &officer); err == nil {
				return &officer, nil
			}
		}
	}

	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, level, constituency_code, region_code, active, created_at
		FROM officers
		WHERE id = $1`, officerID)

	var (
		officer models.Officer
		phone   sql.NullString
	)
	err := row.Scan(
		&officer.ID,
		&officer.Name,
		&officer.Email,
		&phone,
		&officer.Level,
		&officer.Jurisdiction.ConstituencyCode,
		&officer.Jurisdiction.RegionCode,
		&officer.Active,
		&officer.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("officer", fmt.Sprintf("officerId: %s", officerID))
		}
		return nil, apperrors.NewTransientError(err)
	}
	officer.Phone = phone.String

	d.cache(ctx, cacheKey, &officer)
	return &officer, nil
}

// OfficeContact returns the officer notified when a new entry lands in an
// office's queue: the lowest-id active officer at the level and jurisdiction.
func (d *Directory) OfficeContact(ctx context.Context, level models.ReviewLevel, j models.Jurisdiction) (*models.Officer, error) {
	var constituency, region string
	switch level {
	case models.LevelConstituency:
		constituency = j.ConstituencyCode
	case models.LevelRegional:
		region = j.RegionCode
	}

	cacheKey := fmt.Sprintf("office:%s:%s:%s", level, constituency, region)
	if d.redis != nil {
		if val, err := d.redis.Get(ctx, cacheKey).Result(); err == nil {
			var officer models.Officer
			if err := json.Unmarshal([]byte(val), &officer); err == nil {
				return &officer, nil
			}
		}
	}

	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, level, constituency_code, region_code, active, created_at
		FROM officers
		WHERE level = $1 AND active
		  AND ($2 = '' OR constituency_code = $2)
		  AND ($3 = '' OR region_code = $3)
		ORDER BY id
		LIMIT 1`, level, constituency, region)

	var (
		officer models.Officer
		phone   sql.NullString
	)
	err := row.Scan(
		&officer.ID,
		&officer.Name,
		&officer.Email,
		&phone,
		&officer.Level,
		&officer.Jurisdiction.ConstituencyCode,
		&officer.Jurisdiction.RegionCode,
		&officer.Active,
		&officer.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("office contact", fmt.Sprintf(
				"level: %s, constituency: %s, region: %s", level, constituency, region))
		}
		return nil, apperrors.NewTransientError(err)
	}
	officer.Phone = phone.String

	d.cache(ctx, cacheKey, &officer)
	return &officer, nil
}

// Authorize verifies that an officer may act at the given level and
// jurisdiction. Returns PermissionError on mismatch.
func (d *Directory) Authorize(ctx context.Context, officerID string, level models.ReviewLevel, j models.Jurisdiction) (*models.Officer, error) {
	officer, err := d.GetOfficer(ctx, officerID)
	if err != nil {
		return nil, err
	}

	if !officer.CanReview(level, j) {
		return nil, apperrors.NewPermissionError(fmt.Sprintf(
			"officer %s (level %s, constituency %s, region %s) may not review at level %s in constituency %s",
			officer.ID, officer.Level,
			officer.Jurisdiction.ConstituencyCode, officer.Jurisdiction.RegionCode,
			level, j.ConstituencyCode))
	}
	return officer, nil
}

// Invalidate drops a cached officer, for use after directory updates.
func (d *Directory) Invalidate(ctx context.Context, officerID string) {
	if d.redis == nil {
		return
	}
	if err := d.redis.Del(ctx, "officer:"+officerID).Err(); err != nil {
		d.logger.Warn("officer cache invalidation failed", map[string]interface{}{
			"officerId": officerID,
			"error":     err,
		})
	}
}

func (d *Directory) cache(ctx context.Context, key string, officer *models.Officer) {
	if d.redis == nil {
		return
	}
	data, err := json.Marshal(officer)
	if err != nil {
		return
	}
	if err := d.redis.Set(ctx, key, data, d.cacheTTL).Err(); err != nil {
		d.logger.Warn("officer cache write failed", map[string]interface{}{
			"officerId": officer.ID,
			"error":     err,
		})
	}
}
