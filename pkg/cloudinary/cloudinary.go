package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sekolah-go-api/pkg/storage"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores artifacts in Cloudinary.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Put uploads the artifact. The returned ref encodes resource type and public id
// because Cloudinary needs both to destroy an asset.
func (s *Service) Put(ctx context.Context, name, contentType string, reader io.Reader) (storage.Object, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(s.folder, "/"),
		PublicID:     BuildPublicID(name),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return storage.Object{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return storage.Object{}, fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("content_type", contentType).Msg("file uploaded to cloudinary")

	return storage.Object{
		Ref: EncodeRef(result.ResourceType, result.PublicID),
		URL: result.SecureURL,
	}, nil
}

// Delete destroys the asset identified by ref.
func (s *Service) Delete(ctx context.Context, ref string) error {
	resourceType, publicID, err := DecodeRef(ref)
	if err != nil {
		return err
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to destroy asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("file removed from cloudinary")
	return nil
}

// EncodeRef joins resource type and public id.
func EncodeRef(resourceType, publicID string) string {
	if resourceType == "" {
		resourceType = "image"
	}
	return resourceType + ":" + publicID
}

// DecodeRef splits a ref produced by EncodeRef.
func DecodeRef(ref string) (string, string, error) {
	resourceType, publicID, found := strings.Cut(strings.TrimSpace(ref), ":")
	if !found || resourceType == "" || publicID == "" {
		return "", "", fmt.Errorf("invalid cloudinary ref %q", ref)
	}
	return resourceType, publicID, nil
}

// BuildPublicID derives a readable, unique public id from a file name.
func BuildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
}
