package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
)

// FilesAPI is the slice of the API the library needs.
type FilesAPI interface {
	ListFiles(ctx context.Context) ([]domain.FileInfo, error)
	GetFile(ctx context.Context, fileID string) (domain.FileInfo, error)
	UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileInfo, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Library keeps the user's uploaded files and the one currently open.
type Library struct {
	api FilesAPI
	log zerolog.Logger

	mu       sync.Mutex
	files    []domain.FileInfo
	selected *domain.FileInfo
	loading  bool
	lastErr  string
}

func NewLibrary(api FilesAPI, log zerolog.Logger) *Library {
	return &Library{api: api, log: log.With().Str("component", "library").Logger()}
}

func (l *Library) Files() []domain.FileInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.FileInfo(nil), l.files...)
}

func (l *Library) Selected() (domain.FileInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.selected == nil {
		return domain.FileInfo{}, false
	}
	return *l.selected, true
}

func (l *Library) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

func (l *Library) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Library) FetchFiles(ctx context.Context) error {
	l.begin()
	files, err := l.api.ListFiles(ctx)
	if err != nil {
		return l.fail("Failed to fetch files", fmt.Errorf("fetch files: %w", err))
	}
	l.mu.Lock()
	l.files = files
	l.loading = false
	l.mu.Unlock()
	return nil
}

// Select opens a file. A file that no longer exists clears the selection
// and returns an error wrapping domain.ErrNotFound.
func (l *Library) Select(ctx context.Context, fileID string) (domain.FileInfo, error) {
	l.begin()
	file, err := l.api.GetFile(ctx, fileID)
	if err != nil {
		msg := "Failed to load file"
		if errors.Is(err, domain.ErrNotFound) {
			msg = "File not found"
			l.mu.Lock()
			l.selected = nil
			l.mu.Unlock()
		}
		return domain.FileInfo{}, l.fail(msg, fmt.Errorf("select file %s: %w", fileID, err))
	}
	l.mu.Lock()
	l.selected = &file
	l.loading = false
	l.mu.Unlock()
	return file, nil
}

// Upload sends content as a new file and adds it to the list.
func (l *Library) Upload(ctx context.Context, filename string, content io.Reader) (domain.FileInfo, error) {
	l.begin()
	file, err := l.api.UploadFile(ctx, filename, content)
	if err != nil {
		return domain.FileInfo{}, l.fail("Failed to upload file", fmt.Errorf("upload %s: %w", filename, err))
	}
	l.mu.Lock()
	l.files = append(l.files, file)
	l.loading = false
	l.mu.Unlock()
	l.log.Info().Str("file_id", file.ID).Str("filename", file.Filename).Int64("size", file.FileSize).Msg("file uploaded")
	return file, nil
}

// Delete removes a file and drops it from the list and the selection.
func (l *Library) Delete(ctx context.Context, fileID string) error {
	l.begin()
	if err := l.api.DeleteFile(ctx, fileID); err != nil {
		return l.fail("Failed to delete file", fmt.Errorf("delete file %s: %w", fileID, err))
	}
	l.mu.Lock()
	kept := l.files[:0]
	for _, f := range l.files {
		if f.ID != fileID {
			kept = append(kept, f)
		}
	}
	l.files = kept
	if l.selected != nil && l.selected.ID == fileID {
		l.selected = nil
	}
	l.loading = false
	l.mu.Unlock()
	l.log.Info().Str("file_id", fileID).Msg("file deleted")
	return nil
}

func (l *Library) begin() {
	l.mu.Lock()
	l.loading = true
	l.lastErr = ""
	l.mu.Unlock()
}

func (l *Library) fail(msg string, err error) error {
	l.mu.Lock()
	l.lastErr = msg
	l.loading = false
	l.mu.Unlock()
	l.log.Warn().Err(err).Msg(msg)
	return err
}
