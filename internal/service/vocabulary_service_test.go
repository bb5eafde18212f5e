package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
)

var mp3Bytes = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0x00}, 64)...)

func TestVocabularyMediaLifecycle(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db)
	backend := newMemoryBackend()
	svc := NewVocabularyService(repository.NewVocabularyRepository(db), newTestArtifactStore(db, backend), validator.New(), testLogger())
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, principalOf(fx.learner), dto.VocabularyCategoryRequest{Name: "Animals"})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	category, err := svc.CreateCategory(ctx, principalOf(fx.teacher), dto.VocabularyCategoryRequest{Name: "Animals"})
	require.NoError(t, err)

	req := dto.VocabularyRequest{Word: " cat ", CategoryID: category.ID}
	_, err = svc.Create(ctx, principalOf(fx.teacher), req, VocabularyMedia{})
	require.ErrorIs(t, err, ErrVocabularyImageRequired)

	_, err = svc.Create(ctx, principalOf(fx.teacher), req, VocabularyMedia{
		Image: buildFileHeader(t, "cat.png", pngBytes),
		Audio: buildFileHeader(t, "cat.pdf", pdfBytes),
	})
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Zero(t, backend.count())

	word, err := svc.Create(ctx, principalOf(fx.teacher), req, VocabularyMedia{
		Image: buildFileHeader(t, "cat.png", pngBytes),
		Audio: buildFileHeader(t, "cat.mp3", mp3Bytes),
	})
	require.NoError(t, err)
	require.Equal(t, "cat", word.Word)
	require.Equal(t, "Animals", word.CategoryName)
	require.NotEmpty(t, word.AudioURL)
	require.Equal(t, 2, backend.count())

	other := seedUser(t, db, models.UserRoleTeacher, nil)
	_, err = svc.Update(ctx, principalOf(other), word.ID, dto.VocabularyRequest{Word: "dog", CategoryID: category.ID}, VocabularyMedia{})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	updated, err := svc.Update(ctx, principalOf(fx.teacher), word.ID, dto.VocabularyRequest{Word: "kitten", CategoryID: category.ID}, VocabularyMedia{
		Image: buildFileHeader(t, "kitten.png", pngBytes),
	})
	require.NoError(t, err)
	require.Equal(t, "kitten", updated.Word)
	require.NotEqual(t, word.ImageURL, updated.ImageURL)
	require.Equal(t, 2, backend.count())

	listed, err := svc.List(ctx, principalOf(fx.learner), category.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = svc.List(ctx, principalOf(fx.guardian), 0)
	require.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, principalOf(fx.teacher), word.ID))
	require.Zero(t, backend.count())
}
