// Package loader turns a drop folder of manuscript files into DroppedFile
// records for the ingestion pipeline.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/storyloom/storyloom/internal/models"
)

// textExtensions are the file extensions treated as readable text.
// Anything else in the drop folder is skipped.
var textExtensions = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// Loader reads manuscript files from the local filesystem.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new file loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// IsTextFile reports whether path has a recognized text extension.
func IsTextFile(path string) bool {
	_, ok := textExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ReadFolder walks dir and reads every recognized text file into a
// DroppedFile. Unreadable files are logged and skipped so one bad file
// does not block the rest. Results are sorted by name for deterministic
// pipeline ordering. An empty result is not an error; callers decide how
// to report it to the user.
func (l *Loader) ReadFolder(dir string) ([]models.DroppedFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading drop folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop folder %s is not a directory", dir)
	}

	var files []models.DroppedFile
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !IsTextFile(path) {
			return nil
		}
		df, err := l.ReadFile(path)
		if err != nil {
			l.logger.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		files = append(files, *df)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking drop folder %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	l.logger.Info("read drop folder", "dir", dir, "files", len(files))
	return files, nil
}

// ReadFile reads a single file into a DroppedFile record.
func (l *Loader) ReadFile(path string) (*models.DroppedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return &models.DroppedFile{
		Name:         filepath.Base(path),
		Path:         path,
		Type:         textExtensions[strings.ToLower(filepath.Ext(path))],
		Size:         fi.Size(),
		Content:      string(content),
		LastModified: fi.ModTime(),
	}, nil
}
