package store

import (
	"context"
	"errors"

	"github.com/storyloom/storyloom/internal/models"
)

// ErrNotFound is returned by Get and Delete when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for local project persistence. All Put
// operations are upserts; the materializer's idempotent-resume protocol
// depends on retried writes landing on the same rows.
type Store interface {
	// PutProject inserts or updates a project.
	PutProject(ctx context.Context, p models.Project) error

	// GetProject retrieves a single project by ID.
	GetProject(ctx context.Context, id string) (*models.Project, error)

	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]models.Project, error)

	// DeleteProject removes a project and all records referencing it.
	DeleteProject(ctx context.Context, id string) error

	// PutCodexEntry inserts or updates a codex entry.
	PutCodexEntry(ctx context.Context, e models.CodexEntry) error

	// GetCodexEntry retrieves a single codex entry by ID.
	GetCodexEntry(ctx context.Context, id string) (*models.CodexEntry, error)

	// DeleteCodexEntry removes a codex entry by ID.
	DeleteCodexEntry(ctx context.Context, id string) error

	// QueryCodexEntries returns a project's codex entries, optionally
	// filtered by type (pass "" for all), ordered by name.
	QueryCodexEntries(ctx context.Context, projectID string, typ models.CodexType) ([]models.CodexEntry, error)

	// PutChapter inserts or updates a chapter.
	PutChapter(ctx context.Context, c models.Chapter) error

	// QueryChapters returns a project's chapters ordered by number.
	QueryChapters(ctx context.Context, projectID string) ([]models.Chapter, error)

	// PutScene inserts or updates a scene.
	PutScene(ctx context.Context, s models.Scene) error

	// QueryScenes returns a project's scenes, optionally filtered by
	// chapter (pass "" for all), ordered by chapter then number.
	QueryScenes(ctx context.Context, projectID, chapterID string) ([]models.Scene, error)

	// Stats returns store-wide record counts.
	Stats(ctx context.Context) (*models.StoreStats, error)

	// Close cleans up resources.
	Close() error
}
