package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/storyloom/storyloom/internal/models"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu       sync.RWMutex
	projects map[string]models.Project
	codex    map[string]models.CodexEntry
	chapters map[string]models.Chapter
	scenes   map[string]models.Scene

	// FailPuts, when set, makes every Put call return this error.
	FailPuts error
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		projects: make(map[string]models.Project),
		codex:    make(map[string]models.CodexEntry),
		chapters: make(map[string]models.Chapter),
		scenes:   make(map[string]models.Scene),
	}
}

// PutProject inserts or updates a project in the mock store.
func (m *MockStore) PutProject(_ context.Context, p models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts != nil {
		return m.FailPuts
	}
	m.projects[p.ID] = copyProject(p)
	return nil
}

// GetProject retrieves a single project by ID.
func (m *MockStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	cp := copyProject(p)
	return &cp, nil
}

// ListProjects returns all projects, newest first.
func (m *MockStore) ListProjects(_ context.Context) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Project
	for _, p := range m.projects {
		out = append(out, copyProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteProject removes a project and all records referencing it.
func (m *MockStore) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	delete(m.projects, id)
	for k, e := range m.codex {
		if e.ProjectID == id {
			delete(m.codex, k)
		}
	}
	for k, c := range m.chapters {
		if c.ProjectID == id {
			delete(m.chapters, k)
		}
	}
	for k, s := range m.scenes {
		if s.ProjectID == id {
			delete(m.scenes, k)
		}
	}
	return nil
}

// PutCodexEntry inserts or updates a codex entry.
func (m *MockStore) PutCodexEntry(_ context.Context, e models.CodexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts != nil {
		return m.FailPuts
	}
	m.codex[e.ID] = copyCodexEntry(e)
	return nil
}

// GetCodexEntry retrieves a single codex entry by ID.
func (m *MockStore) GetCodexEntry(_ context.Context, id string) (*models.CodexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.codex[id]
	if !ok {
		return nil, fmt.Errorf("%w: codex entry %s", ErrNotFound, id)
	}
	ce := copyCodexEntry(e)
	return &ce, nil
}

// DeleteCodexEntry removes a codex entry by ID.
func (m *MockStore) DeleteCodexEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codex[id]; !ok {
		return fmt.Errorf("%w: codex entry %s", ErrNotFound, id)
	}
	delete(m.codex, id)
	return nil
}

// QueryCodexEntries returns a project's codex entries, optionally filtered by type.
func (m *MockStore) QueryCodexEntries(_ context.Context, projectID string, typ models.CodexType) ([]models.CodexEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CodexEntry
	for _, e := range m.codex {
		if e.ProjectID != projectID {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, copyCodexEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutChapter inserts or updates a chapter.
func (m *MockStore) PutChapter(_ context.Context, c models.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts != nil {
		return m.FailPuts
	}
	cp := c
	cp.SceneIDs = append([]string(nil), c.SceneIDs...)
	m.chapters[c.ID] = cp
	return nil
}

// QueryChapters returns a project's chapters ordered by number.
func (m *MockStore) QueryChapters(_ context.Context, projectID string) ([]models.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Chapter
	for _, c := range m.chapters {
		if c.ProjectID != projectID {
			continue
		}
		cp := c
		cp.SceneIDs = append([]string(nil), c.SceneIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// PutScene inserts or updates a scene.
func (m *MockStore) PutScene(_ context.Context, s models.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts != nil {
		return m.FailPuts
	}
	cp := s
	cp.Issues = append([]string(nil), s.Issues...)
	m.scenes[s.ID] = cp
	return nil
}

// QueryScenes returns a project's scenes, optionally filtered by chapter.
func (m *MockStore) QueryScenes(_ context.Context, projectID, chapterID string) ([]models.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Scene
	for _, s := range m.scenes {
		if s.ProjectID != projectID {
			continue
		}
		if chapterID != "" && s.ChapterID != chapterID {
			continue
		}
		cp := s
		cp.Issues = append([]string(nil), s.Issues...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChapterID != out[j].ChapterID {
			return out[i].ChapterID < out[j].ChapterID
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// Stats returns record counts computed from the in-memory maps.
func (m *MockStore) Stats(_ context.Context) (*models.StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &models.StoreStats{
		TotalProjects: int64(len(m.projects)),
		TotalCodex:    int64(len(m.codex)),
		TotalChapters: int64(len(m.chapters)),
		TotalScenes:   int64(len(m.scenes)),
		CodexByType:   make(map[string]int64),
	}
	for _, e := range m.codex {
		stats.CodexByType[string(e.Type)]++
	}
	return stats, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// --- helpers ---

// Deep copies prevent callers from mutating stored data through shared slices/maps.

func copyProject(p models.Project) models.Project {
	if len(p.Settings) > 0 {
		settings := make(map[string]string, len(p.Settings))
		for k, v := range p.Settings {
			settings[k] = v
		}
		p.Settings = settings
	}
	return p
}

func copyCodexEntry(e models.CodexEntry) models.CodexEntry {
	e.Aliases = append([]string(nil), e.Aliases...)
	e.Tags = append([]string(nil), e.Tags...)
	e.Relationships = append([]models.Relationship(nil), e.Relationships...)
	if len(e.Attributes) > 0 {
		attrs := make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			attrs[k] = v
		}
		e.Attributes = attrs
	}
	return e
}
