package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/models"
)

func TestAllocator_Mint(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO registration_sequences`).
		WithArgs("PPR-KBL-01").
		WillReturnRows(sqlmock.NewRows([]string{"next_seq"}).AddRow(42))

	allocator := NewAllocator("PPR", 3)
	id, err := allocator.Mint(context.Background(), db, models.Jurisdiction{
		ConstituencyCode: "KBL-01",
		RegionCode:       "KBL",
	})

	assert.NoError(t, err)
	assert.Equal(t, "PPR-KBL-01-0042", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocator_Mint_RetriesOnCollision(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`INSERT INTO registration_sequences`).
		WithArgs("PPR-KBL-01").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectQuery(`INSERT INTO registration_sequences`).
		WithArgs("PPR-KBL-01").
		WillReturnRows(sqlmock.NewRows([]string{"next_seq"}).AddRow(7))

	allocator := NewAllocator("PPR", 3)
	id, err := allocator.Mint(context.Background(), db, models.Jurisdiction{
		ConstituencyCode: "KBL-01",
	})

	assert.NoError(t, err)
	assert.Equal(t, "PPR-KBL-01-0007", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocator_Mint_ExhaustsAttempts(t *testing.T) {
	db, mock := newMockDB(t)

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(`INSERT INTO registration_sequences`).
			WithArgs("PPR-KBL-01").
			WillReturnError(&pq.Error{Code: "40001"})
	}

	allocator := NewAllocator("PPR", 3)
	_, err := allocator.Mint(context.Background(), db, models.Jurisdiction{
		ConstituencyCode: "KBL-01",
	})

	assert.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
