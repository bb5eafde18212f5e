package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sekolah-go-api/internal/models"
)

func TestMigrateCreatesSchema(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), GormConfig())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, model := range models.AllModels() {
		require.True(t, db.Migrator().HasTable(model))
	}
}

func TestDuplicateSubmissionIsUniqueViolation(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), GormConfig())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	first := models.Submission{ItemID: 1, LearnerID: 2, AnonymousID: uuid.NewString(), ArtifactRef: "a", ArtifactURL: "/a", Status: models.SubmissionStatusSubmitted}
	require.NoError(t, db.Create(&first).Error)

	second := models.Submission{ItemID: 1, LearnerID: 2, AnonymousID: uuid.NewString(), ArtifactRef: "b", ArtifactURL: "/b", Status: models.SubmissionStatusSubmitted}
	err = db.Create(&second).Error
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, IsUniqueViolation(nil))
	require.False(t, IsUniqueViolation(errors.New("connection refused")))
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	require.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_submission_learner_item" (SQLSTATE 23505)`)))
}
