package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/handler"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/service"
)

// stubSubmissionService overrides only the calls a test exercises; any other
// call panics on the nil embedded interface.
type stubSubmissionService struct {
	service.SubmissionService
	exportItemID uint
	exported     []byte
	listed       []dto.AnonymousSubmissionResponse
	err          error
}

func (s *stubSubmissionService) Export(_ context.Context, _ identity.Principal, itemID uint) ([]byte, string, error) {
	s.exportItemID = itemID
	if s.err != nil {
		return nil, "", s.err
	}
	return s.exported, "dictation-submissions.xlsx", nil
}

func (s *stubSubmissionService) ListForItem(_ context.Context, _ identity.Principal, _ uint) ([]dto.AnonymousSubmissionResponse, error) {
	return s.listed, s.err
}

func newItemApp(submissions service.SubmissionService) *fiber.App {
	app := fiber.New()
	principal := identity.Principal{UserID: 4, Role: identity.RoleInstructor}
	handler.NewItemHandler(nil, submissions, zerolog.New(io.Discard)).Register(app.Group("/items", withPrincipal(principal)))
	return app
}

func TestItemHandler_ExportSetsAttachmentHeaders(t *testing.T) {
	stub := &stubSubmissionService{exported: []byte("PK\x03\x04")}
	app := newItemApp(stub)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/12/submissions/export", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(12), stub.exportItemID)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get(fiber.HeaderContentType))
	require.Equal(t, `attachment; filename="dictation-submissions.xlsx"`, resp.Header.Get(fiber.HeaderContentDisposition))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, stub.exported, body)
}

func TestItemHandler_ExportErrors(t *testing.T) {
	app := newItemApp(&stubSubmissionService{err: apperror.Forbidden("item belongs to another teacher")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/12/submissions/export", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/items/0/submissions/export", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestItemHandler_ListSubmissionsHidesIdentity(t *testing.T) {
	stub := &stubSubmissionService{listed: []dto.AnonymousSubmissionResponse{{ID: 1, ItemID: 12, AnonymousID: "a1b2c3"}}}
	app := newItemApp(stub)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/12/submissions", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload map[string]any
	decodeResponse(t, resp, &payload)
	entries := payload["data"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	require.Equal(t, "a1b2c3", entry["anonymous_id"])
	require.NotContains(t, entry, "learner_id")
}
