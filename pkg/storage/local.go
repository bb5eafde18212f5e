package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Local stores artifacts in a directory, reached through an afero filesystem
// rooted at that directory.
type Local struct {
	fs         afero.Fs
	dir        string
	publicPath string
	logger     zerolog.Logger
}

// NewLocal prepares the upload directory and returns a backend writing into it.
func NewLocal(dir, publicPath string, logger zerolog.Logger) (*Local, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("upload directory must be provided")
	}
	if err := afero.NewOsFs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), dir), dir, publicPath, logger), nil
}

// NewLocalFs wraps an already rooted filesystem. dir is reported by Dir for
// static serving and may be empty for in-memory filesystems.
func NewLocalFs(fs afero.Fs, dir, publicPath string, logger zerolog.Logger) *Local {
	return &Local{
		fs:         fs,
		dir:        dir,
		publicPath: "/" + strings.Trim(strings.TrimSpace(publicPath), "/"),
		logger:     logger.With().Str("component", "local_storage").Logger(),
	}
}

// Dir returns the directory served as static content.
func (l *Local) Dir() string {
	return l.dir
}

// Put writes the artifact under a collision free name.
func (l *Local) Put(ctx context.Context, name, contentType string, reader io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	stored := uuid.NewString() + "-" + filepath.Base(name)

	file, err := l.fs.OpenFile(stored, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create artifact: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = l.fs.Remove(stored)
		return Object{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = l.fs.Remove(stored)
		return Object{}, fmt.Errorf("failed to close artifact: %w", err)
	}

	l.logger.Debug().Str("ref", stored).Str("content_type", contentType).Msg("artifact stored")

	return Object{Ref: stored, URL: path.Join(l.publicPath, stored)}, nil
}

// Delete removes the artifact. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	base := filepath.Base(strings.TrimSpace(ref))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fmt.Errorf("invalid artifact ref %q", ref)
	}

	if err := l.fs.Remove(base); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
