package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/storyloom/storyloom/internal/models"
)

// schema is bootstrapped at open; CREATE IF NOT EXISTS keeps reopening cheap.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	genre      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'drafting',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	settings   TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS codex_entries (
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL,
	type          TEXT NOT NULL,
	name          TEXT NOT NULL,
	aliases       TEXT NOT NULL DEFAULT '[]',
	description   TEXT NOT NULL DEFAULT '',
	attributes    TEXT NOT NULL DEFAULT '{}',
	relationships TEXT NOT NULL DEFAULT '[]',
	tags          TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_codex_project_type ON codex_entries(project_id, type);

CREATE TABLE IF NOT EXISTS chapters (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	number     INTEGER NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	scene_ids  TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_chapters_project ON chapters(project_id);

CREATE TABLE IF NOT EXISTS scenes (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	chapter_id TEXT NOT NULL,
	number     INTEGER NOT NULL,
	goal       TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'planned',
	content    TEXT NOT NULL DEFAULT '',
	word_count INTEGER NOT NULL DEFAULT 0,
	issues     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_scenes_project ON scenes(project_id);
CREATE INDEX IF NOT EXISTS idx_scenes_chapter ON scenes(chapter_id);
`

// SQLiteStore persists project records in a single local database file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database under dataDir.
func NewSQLiteStore(dataDir string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "storyloom.db")

	// WAL mode for better concurrency between CLI and MCP server.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	logger.Debug("opened sqlite store", "path", dbPath)
	return &SQLiteStore{db: db, path: dbPath, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// PutProject inserts or updates a project.
func (s *SQLiteStore) PutProject(ctx context.Context, p models.Project) error {
	settings, err := marshalJSON(p.Settings, "{}")
	if err != nil {
		return fmt.Errorf("encoding project settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, genre, status, created_at, updated_at, settings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			genre = excluded.genre,
			status = excluded.status,
			updated_at = excluded.updated_at,
			settings = excluded.settings`,
		p.ID, p.Name, p.Genre, string(p.Status),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
		p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		settings)
	if err != nil {
		return fmt.Errorf("upserting project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject retrieves a single project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, genre, status, created_at, updated_at, settings
		FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, genre, status, created_at, updated_at, settings
		FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and all records referencing it.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	for _, table := range []string{"codex_entries", "chapters", "scenes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s for project %s: %w", table, id, err)
		}
	}
	return tx.Commit()
}

// PutCodexEntry inserts or updates a codex entry.
func (s *SQLiteStore) PutCodexEntry(ctx context.Context, e models.CodexEntry) error {
	aliases, err := marshalJSON(e.Aliases, "[]")
	if err != nil {
		return fmt.Errorf("encoding aliases: %w", err)
	}
	attrs, err := marshalJSON(e.Attributes, "{}")
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}
	rels, err := marshalJSON(e.Relationships, "[]")
	if err != nil {
		return fmt.Errorf("encoding relationships: %w", err)
	}
	tags, err := marshalJSON(e.Tags, "[]")
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO codex_entries (id, project_id, type, name, aliases, description, attributes, relationships, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			aliases = excluded.aliases,
			description = excluded.description,
			attributes = excluded.attributes,
			relationships = excluded.relationships,
			tags = excluded.tags`,
		e.ID, e.ProjectID, string(e.Type), e.Name, aliases, e.Description, attrs, rels, tags)
	if err != nil {
		return fmt.Errorf("upserting codex entry %s: %w", e.ID, err)
	}
	return nil
}

// GetCodexEntry retrieves a single codex entry by ID.
func (s *SQLiteStore) GetCodexEntry(ctx context.Context, id string) (*models.CodexEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, type, name, aliases, description, attributes, relationships, tags
		FROM codex_entries WHERE id = ?`, id)
	e, err := scanCodexEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: codex entry %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading codex entry %s: %w", id, err)
	}
	return e, nil
}

// DeleteCodexEntry removes a codex entry by ID.
func (s *SQLiteStore) DeleteCodexEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM codex_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting codex entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: codex entry %s", ErrNotFound, id)
	}
	return nil
}

// QueryCodexEntries returns a project's codex entries, optionally filtered by type.
func (s *SQLiteStore) QueryCodexEntries(ctx context.Context, projectID string, typ models.CodexType) ([]models.CodexEntry, error) {
	q := `SELECT id, project_id, type, name, aliases, description, attributes, relationships, tags
		FROM codex_entries WHERE project_id = ?`
	args := []any{projectID}
	if typ != "" {
		q += ` AND type = ?`
		args = append(args, string(typ))
	}
	q += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying codex entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.CodexEntry
	for rows.Next() {
		e, err := scanCodexEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning codex row: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// PutChapter inserts or updates a chapter.
func (s *SQLiteStore) PutChapter(ctx context.Context, c models.Chapter) error {
	sceneIDs, err := marshalJSON(c.SceneIDs, "[]")
	if err != nil {
		return fmt.Errorf("encoding scene ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chapters (id, project_id, number, title, scene_ids)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			title = excluded.title,
			scene_ids = excluded.scene_ids`,
		c.ID, c.ProjectID, c.Number, c.Title, sceneIDs)
	if err != nil {
		return fmt.Errorf("upserting chapter %s: %w", c.ID, err)
	}
	return nil
}

// QueryChapters returns a project's chapters ordered by number.
func (s *SQLiteStore) QueryChapters(ctx context.Context, projectID string) ([]models.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, number, title, scene_ids
		FROM chapters WHERE project_id = ? ORDER BY number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Chapter
	for rows.Next() {
		var (
			c        models.Chapter
			sceneIDs string
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Number, &c.Title, &sceneIDs); err != nil {
			return nil, fmt.Errorf("scanning chapter row: %w", err)
		}
		if err := json.Unmarshal([]byte(sceneIDs), &c.SceneIDs); err != nil {
			return nil, fmt.Errorf("decoding scene ids for chapter %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PutScene inserts or updates a scene.
func (s *SQLiteStore) PutScene(ctx context.Context, sc models.Scene) error {
	issues, err := marshalJSON(sc.Issues, "[]")
	if err != nil {
		return fmt.Errorf("encoding issues: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenes (id, project_id, chapter_id, number, goal, status, content, word_count, issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chapter_id = excluded.chapter_id,
			number = excluded.number,
			goal = excluded.goal,
			status = excluded.status,
			content = excluded.content,
			word_count = excluded.word_count,
			issues = excluded.issues`,
		sc.ID, sc.ProjectID, sc.ChapterID, sc.Number, sc.Goal, string(sc.Status),
		sc.Content, sc.WordCount, issues)
	if err != nil {
		return fmt.Errorf("upserting scene %s: %w", sc.ID, err)
	}
	return nil
}

// QueryScenes returns a project's scenes, optionally filtered by chapter.
func (s *SQLiteStore) QueryScenes(ctx context.Context, projectID, chapterID string) ([]models.Scene, error) {
	q := `SELECT id, project_id, chapter_id, number, goal, status, content, word_count, issues
		FROM scenes WHERE project_id = ?`
	args := []any{projectID}
	if chapterID != "" {
		q += ` AND chapter_id = ?`
		args = append(args, chapterID)
	}
	q += ` ORDER BY chapter_id, number`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scenes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Scene
	for rows.Next() {
		var (
			sc     models.Scene
			status string
			issues string
		)
		if err := rows.Scan(&sc.ID, &sc.ProjectID, &sc.ChapterID, &sc.Number, &sc.Goal,
			&status, &sc.Content, &sc.WordCount, &issues); err != nil {
			return nil, fmt.Errorf("scanning scene row: %w", err)
		}
		sc.Status = models.SceneStatus(status)
		if err := json.Unmarshal([]byte(issues), &sc.Issues); err != nil {
			return nil, fmt.Errorf("decoding issues for scene %s: %w", sc.ID, err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Stats returns store-wide record counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{CodexByType: make(map[string]int64)}

	counts := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM projects`, &stats.TotalProjects},
		{`SELECT COUNT(*) FROM codex_entries`, &stats.TotalCodex},
		{`SELECT COUNT(*) FROM chapters`, &stats.TotalChapters},
		{`SELECT COUNT(*) FROM scenes`, &stats.TotalScenes},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting records: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM codex_entries GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("counting codex types: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			typ string
			n   int64
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scanning codex type count: %w", err)
		}
		stats.CodexByType[typ] = n
	}
	return stats, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (*models.Project, error) {
	var (
		p                    models.Project
		status               string
		createdAt, updatedAt string
		settings             string
	)
	if err := r.Scan(&p.ID, &p.Name, &p.Genre, &status, &createdAt, &updatedAt, &settings); err != nil {
		return nil, err
	}
	p.Status = models.ProjectStatus(status)
	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &p.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &p, nil
}

func scanCodexEntry(r rowScanner) (*models.CodexEntry, error) {
	var (
		e                          models.CodexEntry
		typ                        string
		aliases, attrs, rels, tags string
	)
	if err := r.Scan(&e.ID, &e.ProjectID, &typ, &e.Name, &aliases, &e.Description, &attrs, &rels, &tags); err != nil {
		return nil, err
	}
	e.Type = models.CodexType(typ)
	if err := json.Unmarshal([]byte(aliases), &e.Aliases); err != nil {
		return nil, fmt.Errorf("decoding aliases: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(rels), &e.Relationships); err != nil {
		return nil, fmt.Errorf("decoding relationships: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return &e, nil
}

// marshalJSON encodes v, mapping nil to the given empty literal so columns
// never hold SQL NULL or JSON null.
func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		return empty, nil
	}
	return s, nil
}
