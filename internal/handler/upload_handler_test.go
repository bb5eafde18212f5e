package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
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

type mockUploadService struct {
	lastPrincipal identity.Principal
	lastPolicy    service.ArtifactPolicy
	response      dto.UploadResponse
	err           error
}

func (m *mockUploadService) Upload(_ context.Context, principal identity.Principal, file *multipart.FileHeader, policy service.ArtifactPolicy) (dto.UploadResponse, error) {
	if file != nil {
		if _, err := file.Open(); err != nil {
			return dto.UploadResponse{}, err
		}
	}
	m.lastPrincipal = principal
	m.lastPolicy = policy
	if m.err != nil {
		return dto.UploadResponse{}, m.err
	}
	return m.response, nil
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func withPrincipal(principal identity.Principal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("principal", principal)
		c.Locals("user_id", principal.UserID)
		c.Locals("user_role", string(principal.Role))
		return c.Next()
	}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newUploadApp(svc service.UploadService, principal identity.Principal) *fiber.App {
	app := fiber.New()
	handler.NewUploadHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/uploads", withPrincipal(principal)))
	return app
}

func TestUploadHandler_Success(t *testing.T) {
	svc := &mockUploadService{response: dto.UploadResponse{URL: "/files/photo.png", Kind: "image", SizeBytes: 123, MimeType: "image/png", Checksum: "abc", FileName: "photo.png"}}
	app := newUploadApp(svc, identity.Principal{UserID: 7, Role: identity.RoleLearner})

	body, contentType := multipartBody(t, "file", "photo.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool               `json:"success"`
		Data    dto.UploadResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &response)

	require.True(t, response.Success)
	require.Equal(t, "upload successful", response.Message)
	require.Equal(t, uint(7), svc.lastPrincipal.UserID)
	require.Equal(t, service.PolicyGeneric, svc.lastPolicy)
	require.Equal(t, svc.response.URL, response.Data.URL)
}

func TestUploadHandler_ScreenshotPolicy(t *testing.T) {
	svc := &mockUploadService{}
	app := newUploadApp(svc, identity.Principal{UserID: 3, Role: identity.RoleLearner})

	body, contentType := multipartBody(t, "file", "level.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/screenshots", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, service.PolicyScreenshot, svc.lastPolicy)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	app := newUploadApp(&mockUploadService{}, identity.Principal{UserID: 1, Role: identity.RoleInstructor})

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUploadHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
		code       string
	}{
		{name: "too_large", err: service.ErrUploadTooLarge, statusCode: fiber.StatusRequestEntityTooLarge, code: "validation_error"},
		{name: "type", err: service.ErrUploadTypeNotAllowed, statusCode: fiber.StatusBadRequest, code: "validation_error"},
		{name: "forbidden", err: apperror.Forbidden("nope"), statusCode: fiber.StatusForbidden, code: "forbidden"},
		{name: "missing", err: apperror.NotFound("gone"), statusCode: fiber.StatusNotFound, code: "not_found"},
		{name: "state", err: apperror.InvalidState("locked"), statusCode: fiber.StatusConflict, code: "invalid_state"},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError, code: "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newUploadApp(&mockUploadService{err: tc.err}, identity.Principal{UserID: 2, Role: identity.RoleInstructor})

			body, contentType := multipartBody(t, "file", "doc.pdf", []byte("pdf"))
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)

			var response struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			decodeResponse(t, resp, &response)
			require.False(t, response.Success)
			require.Equal(t, tc.code, response.Code)
			if tc.code == "internal" {
				require.Equal(t, "internal server error", response.Message)
			}
		})
	}
}
