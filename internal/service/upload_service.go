package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sekolah-go-api/internal/apperror"
	"github.com/noah-isme/sekolah-go-api/internal/dto"
	"github.com/noah-isme/sekolah-go-api/internal/identity"
	"github.com/noah-isme/sekolah-go-api/internal/models"
	"github.com/noah-isme/sekolah-go-api/internal/observability"
	"github.com/noah-isme/sekolah-go-api/internal/repository"
	"github.com/noah-isme/sekolah-go-api/pkg/storage"
)

var (
	// ErrFileRequired indicates the request carried no file.
	ErrFileRequired = apperror.Validation("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = apperror.Validation("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted for the policy.
	ErrUploadTypeNotAllowed = apperror.Validation("file type not allowed")
)

// ArtifactPolicy names what an artifact is used for. Each policy has its own
// content-type allow-list.
type ArtifactPolicy string

const (
	PolicySubmission        ArtifactPolicy = "submission"
	PolicyCorrection        ArtifactPolicy = "correction"
	PolicyLessonMedia       ArtifactPolicy = "lesson_media"
	PolicyItemMedia         ArtifactPolicy = "item_media"
	PolicyMessageAttachment ArtifactPolicy = "message_attachment"
	PolicyVocabularyImage   ArtifactPolicy = "vocabulary_image"
	PolicyVocabularyAudio   ArtifactPolicy = "vocabulary_audio"
	PolicyScreenshot        ArtifactPolicy = "screenshot"
	PolicyGameImage         ArtifactPolicy = "game_image"
	PolicyGeneric           ArtifactPolicy = "generic"
)

var (
	imageTypes    = []string{"image/jpeg", "image/png", "image/webp"}
	audioTypes    = []string{"audio/mpeg", "audio/wav", "audio/ogg", "audio/webm", "video/webm"}
	documentTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

var policyAllowList = map[ArtifactPolicy][]string{
	PolicySubmission:        concat([]string{"image/jpeg", "image/png"}, audioTypes[:3], documentTypes),
	PolicyCorrection:        concat([]string{"image/jpeg", "image/png"}, audioTypes[:3], documentTypes),
	PolicyLessonMedia:       {"image/jpeg", "image/png", "application/pdf"},
	PolicyItemMedia:         {"image/jpeg", "image/png", "application/pdf"},
	PolicyMessageAttachment: concat(imageTypes, audioTypes, documentTypes),
	PolicyVocabularyImage:   imageTypes,
	PolicyVocabularyAudio:   audioTypes,
	PolicyScreenshot:        imageTypes,
	PolicyGameImage:         imageTypes,
	PolicyGeneric:           concat(imageTypes, audioTypes, documentTypes),
}

// Artifact describes a stored file.
type Artifact struct {
	RecordID  uint
	Ref       string
	URL       string
	FileName  string
	MimeType  string
	Kind      string
	SizeBytes int64
	Checksum  string
}

// ArtifactBackend is where artifact bytes end up.
type ArtifactBackend interface {
	Put(ctx context.Context, name, contentType string, reader io.Reader) (storage.Object, error)
	Delete(ctx context.Context, ref string) error
}

// ArtifactStore validates, stores and discards uploaded files.
type ArtifactStore interface {
	Store(ctx context.Context, file *multipart.FileHeader, policy ArtifactPolicy, ownerID *uint) (Artifact, error)
	Delete(ctx context.Context, ref string) error
}

type artifactStore struct {
	backend ArtifactBackend
	repo    repository.UploadRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewArtifactStore constructs the artifact store.
func NewArtifactStore(backend ArtifactBackend, repo repository.UploadRepository, maxSizeMB int, logger zerolog.Logger) ArtifactStore {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &artifactStore{
		backend: backend,
		repo:    repo,
		logger:  logger.With().Str("component", "artifact_store").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/sekolah-go-api/internal/service/artifact"),
	}
}

func (s *artifactStore) Store(ctx context.Context, file *multipart.FileHeader, policy ArtifactPolicy, ownerID *uint) (Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "artifact.store", trace.WithAttributes(
		attribute.String("artifact.policy", string(policy)),
		attribute.Int64("artifact.max_bytes", s.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return Artifact{}, ErrFileRequired
	}
	span.SetAttributes(
		attribute.String("artifact.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("artifact.request_size", file.Size),
	)

	allowed, ok := policyAllowList[policy]
	if !ok {
		err := fmt.Errorf("unknown artifact policy %q", policy)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown policy")
		return Artifact{}, err
	}

	if file.Size > s.maxSize {
		return Artifact{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return Artifact{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return Artifact{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return Artifact{}, s.reject(span, "size", ErrUploadTooLarge)
	}
	if buf.Len() == 0 {
		return Artifact{}, s.reject(span, "empty", ErrFileRequired)
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("artifact.detected_mime", detected.String()))
	contentType, ok := matchAllowed(detected, allowed)
	if !ok {
		return Artifact{}, s.reject(span, "type", ErrUploadTypeNotAllowed)
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := sanitizeFileName(file.Filename, detected.Extension())

	object, err := s.backend.Put(ctx, name, contentType, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return Artifact{}, err
	}

	record := models.UploadRecord{
		UserID:    ownerID,
		Purpose:   string(policy),
		FileName:  name,
		Ref:       object.Ref,
		URL:       object.URL,
		MimeType:  contentType,
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		if delErr := s.backend.Delete(ctx, object.Ref); delErr != nil {
			s.logger.Warn().Err(delErr).Str("ref", object.Ref).Msg("failed to discard artifact after ledger error")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return Artifact{}, err
	}

	observability.UploadRequests().WithLabelValues(string(policy), contentType).Inc()
	span.SetStatus(codes.Ok, "stored")

	return Artifact{
		RecordID:  record.ID,
		Ref:       object.Ref,
		URL:       object.URL,
		FileName:  name,
		MimeType:  contentType,
		Kind:      artifactKind(contentType),
		SizeBytes: record.SizeBytes,
		Checksum:  record.Checksum,
	}, nil
}

func (s *artifactStore) Delete(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "artifact.delete", trace.WithAttributes(attribute.String("artifact.ref", ref)))
	defer span.End()

	if err := s.backend.Delete(ctx, ref); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}

	if err := s.repo.DeleteByRef(ctx, ref); err != nil {
		s.logger.Warn().Err(err).Str("ref", ref).Msg("failed to drop upload record")
	}
	return nil
}

// UploadService exposes direct uploads to authenticated users.
type UploadService interface {
	Upload(ctx context.Context, principal identity.Principal, file *multipart.FileHeader, policy ArtifactPolicy) (dto.UploadResponse, error)
}

type uploadService struct {
	store  ArtifactStore
	logger zerolog.Logger
}

// NewUploadService constructs the upload service.
func NewUploadService(store ArtifactStore, logger zerolog.Logger) UploadService {
	return &uploadService{store: store, logger: logger.With().Str("component", "upload_service").Logger()}
}

func (s *uploadService) Upload(ctx context.Context, principal identity.Principal, file *multipart.FileHeader, policy ArtifactPolicy) (dto.UploadResponse, error) {
	caller, err := authorize(principal, identity.CapUploadFiles)
	if err != nil {
		return dto.UploadResponse{}, err
	}

	switch policy {
	case PolicyGeneric, PolicyScreenshot:
	default:
		return dto.UploadResponse{}, apperror.Validation("unsupported upload purpose")
	}

	artifact, err := s.store.Store(ctx, file, policy, uintPtr(caller.UserID))
	if err != nil {
		return dto.UploadResponse{}, err
	}

	s.logger.Info().Uint("user_id", caller.UserID).Str("purpose", string(policy)).Str("ref", artifact.Ref).Msg("file uploaded")

	return dto.UploadResponse{
		ID:        artifact.RecordID,
		URL:       artifact.URL,
		Kind:      artifact.Kind,
		SizeBytes: artifact.SizeBytes,
		MimeType:  artifact.MimeType,
		Checksum:  artifact.Checksum,
		FileName:  artifact.FileName,
	}, nil
}

func (s *artifactStore) reject(span trace.Span, reason string, err error) error {
	observability.UploadRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected: "+reason)
	return err
}

// discardArtifact deletes a stale artifact; failures are logged only.
func discardArtifact(ctx context.Context, store ArtifactStore, logger zerolog.Logger, ref string) {
	if ref == "" {
		return
	}
	if err := store.Delete(ctx, ref); err != nil {
		logger.Warn().Err(err).Str("ref", ref).Msg("failed to delete stale artifact")
	}
}

func matchAllowed(detected *mimetype.MIME, allowed []string) (string, bool) {
	for _, candidate := range allowed {
		if detected.Is(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func artifactKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MessageKindImage
	case strings.HasPrefix(contentType, "audio/"), contentType == "video/webm":
		return models.MessageKindAudio
	default:
		return models.MessageKindFile
	}
}

func sanitizeFileName(name, detectedExt string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	ext := strings.ToLower(detectedExt)
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(name))
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func concat(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}
