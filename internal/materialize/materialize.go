// Package materialize deterministically converts a finished ingestion
// analysis into persisted project records.
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/internal/store"
	"github.com/storyloom/storyloom/pkg/textutil"
)

const (
	// DefaultCharacterCap limits how many top-ranked characters become
	// codex entries. Low-mention extractions are usually noise.
	DefaultCharacterCap = 20

	// DefaultLocationCap limits how many top-ranked locations become
	// codex entries.
	DefaultLocationCap = 15

	// defaultGenre is used when the analysis carries no genre.
	defaultGenre = "Fiction"
)

// Materializer writes the reconciled analysis into the store. Unlike the
// classification and consolidation stages, storage errors propagate: a
// failure here means the user's work was not saved and must be visible.
type Materializer struct {
	st           store.Store
	characterCap int
	locationCap  int
	logger       *slog.Logger
}

// NewMaterializer creates a materializer with the given codex caps.
// Non-positive caps fall back to the defaults.
func NewMaterializer(st store.Store, characterCap, locationCap int, logger *slog.Logger) *Materializer {
	if characterCap <= 0 {
		characterCap = DefaultCharacterCap
	}
	if locationCap <= 0 {
		locationCap = DefaultLocationCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		st:           st,
		characterCap: characterCap,
		locationCap:  locationCap,
		logger:       logger,
	}
}

// Materialize writes the project, codex entries, chapters, and scenes.
// Writes are independent puts, not one transaction; instead every record
// id is derived deterministically from runID and the record's natural key,
// and the store's puts are upserts, so retrying after a partial failure
// overwrites the same rows rather than duplicating them.
func (m *Materializer) Materialize(ctx context.Context, analysis models.IngestionAnalysis, answers map[string]string, projectName string, runID uuid.UUID) (string, error) {
	now := time.Now().UTC()

	genre := analysis.Genre
	if genre == "" {
		genre = defaultGenre
	}

	settings := make(map[string]string, len(answers))
	for id, text := range answers {
		settings["answer."+id] = text
	}

	project := models.Project{
		ID:        recordID(runID, "project", projectName),
		Name:      projectName,
		Genre:     genre,
		Status:    models.ProjectDrafting,
		CreatedAt: now,
		UpdatedAt: now,
		Settings:  settings,
	}
	if err := m.st.PutProject(ctx, project); err != nil {
		return "", fmt.Errorf("materialize: creating project: %w", err)
	}

	if err := m.writeCharacters(ctx, analysis, project.ID, runID); err != nil {
		return "", err
	}
	if err := m.writeLocations(ctx, analysis, project.ID, runID); err != nil {
		return "", err
	}
	if err := m.writeChapters(ctx, analysis, project.ID, runID); err != nil {
		return "", err
	}

	m.logger.Info("materialized project",
		"project_id", project.ID,
		"name", projectName,
		"genre", genre,
		"chapters", len(analysis.Structure.Chapters))
	return project.ID, nil
}

// writeCharacters creates one character codex entry per top-ranked
// character, with duplicate hints from the analysis recorded as
// possible-duplicate relationships. Information only: merging is a manual
// follow-up action, never automatic.
func (m *Materializer) writeCharacters(ctx context.Context, analysis models.IngestionAnalysis, projectID string, runID uuid.UUID) error {
	for i, ch := range analysis.Characters {
		if i >= m.characterCap {
			break
		}
		entry := models.CodexEntry{
			ID:          recordID(runID, "codex-character", ch.Name),
			ProjectID:   projectID,
			Type:        models.CodexCharacter,
			Name:        ch.Name,
			Aliases:     ch.Aliases,
			Description: ch.Description,
			Attributes: map[string]string{
				"role":     string(ch.Role),
				"mentions": strconv.Itoa(ch.Mentions),
			},
			Relationships: duplicateHints(analysis.PossibleDuplicates, ch.Name),
		}
		if err := m.st.PutCodexEntry(ctx, entry); err != nil {
			return fmt.Errorf("materialize: creating character entry %q: %w", ch.Name, err)
		}
	}
	return nil
}

// writeLocations creates one location codex entry per top-ranked location.
func (m *Materializer) writeLocations(ctx context.Context, analysis models.IngestionAnalysis, projectID string, runID uuid.UUID) error {
	for i, loc := range analysis.Locations {
		if i >= m.locationCap {
			break
		}
		entry := models.CodexEntry{
			ID:        recordID(runID, "codex-location", loc.Name),
			ProjectID: projectID,
			Type:      models.CodexLocation,
			Name:      loc.Name,
		}
		if err := m.st.PutCodexEntry(ctx, entry); err != nil {
			return fmt.Errorf("materialize: creating location entry %q: %w", loc.Name, err)
		}
	}
	return nil
}

// writeChapters creates one chapter per chapter guess and, when a
// contributing file can be matched back, exactly one scene carrying that
// file's full text. With alternate versions only the first matching file
// becomes the scene; reconciling alternates is a manual follow-up.
func (m *Materializer) writeChapters(ctx context.Context, analysis models.IngestionAnalysis, projectID string, runID uuid.UUID) error {
	for _, guess := range analysis.Structure.Chapters {
		chapterKey := strconv.Itoa(guess.Number)
		chapter := models.Chapter{
			ID:        recordID(runID, "chapter", chapterKey),
			ProjectID: projectID,
			Number:    guess.Number,
		}
		if guess.Number != 0 {
			chapter.Title = fmt.Sprintf("Chapter %d", guess.Number)
		}

		if file := firstMatchingFile(analysis.Files, guess.Files); file != nil {
			status := models.ScenePlanned
			if guess.Status == models.ChapterComplete {
				status = models.SceneDrafted
			}
			scene := models.Scene{
				ID:        recordID(runID, "scene", chapterKey),
				ProjectID: projectID,
				ChapterID: chapter.ID,
				Number:    1,
				Status:    status,
				Content:   file.Content,
				// Recomputed from content rather than copied from the
				// aggregate, to avoid drift.
				WordCount: textutil.WordCount(file.Content),
			}
			if err := m.st.PutScene(ctx, scene); err != nil {
				return fmt.Errorf("materialize: creating scene for chapter %d: %w", guess.Number, err)
			}
			chapter.SceneIDs = []string{scene.ID}
		}

		if err := m.st.PutChapter(ctx, chapter); err != nil {
			return fmt.Errorf("materialize: creating chapter %d: %w", guess.Number, err)
		}
	}
	return nil
}

// runNamespace scopes RunID derivation for this application.
var runNamespace = uuid.MustParse("4f1c6a0e-8d2b-45d7-9b3a-7e5f02c9a1d4")

// RunID derives the materialization run id from the store location and
// project name. The same project always maps to the same run id, so
// re-running ingestion after a partial failure (or on a watch-mode
// change) overwrites the project's records instead of creating a
// duplicate project.
func RunID(dataDir, projectName string) uuid.UUID {
	return uuid.NewSHA1(runNamespace, []byte(dataDir+"\x00"+projectName))
}

// recordID derives a deterministic id from the run namespace and the
// record's natural key, making retried materialization idempotent.
func recordID(runID uuid.UUID, kind, key string) string {
	return uuid.NewSHA1(runID, []byte(kind+":"+key)).String()
}

// firstMatchingFile returns the first file (in guess order) present in the
// classified set, or nil.
func firstMatchingFile(files []models.ClassifiedFile, names []string) *models.ClassifiedFile {
	for _, name := range names {
		for i := range files {
			if files[i].Name == name {
				return &files[i]
			}
		}
	}
	return nil
}

// duplicateHints returns possible-duplicate relationships for name, one
// per other member of any duplicate group containing it.
func duplicateHints(duplicates []models.DuplicateCandidate, name string) []models.Relationship {
	var out []models.Relationship
	for _, d := range duplicates {
		member := false
		for _, item := range d.Items {
			if item == name {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		for _, item := range d.Items {
			if item == name {
				continue
			}
			out = append(out, models.Relationship{
				Target: item,
				Kind:   "possible-duplicate",
				Note:   d.Reason,
			})
		}
	}
	return out
}
