package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func TestReviewRepositoryCreateRecomputesRating(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reviews").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE tutors SET rating = COALESCE").
		WithArgs("tutor-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), &models.Review{TutorID: "tutor-1", StudentID: "student-1", Rating: 5}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reviews").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Review{TutorID: "tutor-1", StudentID: "student-1", Rating: 4})
	assert.ErrorIs(t, err, ErrDuplicateReview)
	assert.NoError(t, mock.ExpectationsWereMet())
}
