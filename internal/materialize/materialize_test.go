package materialize_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/materialize"
	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAnalysis() models.IngestionAnalysis {
	chapterFile := models.ClassifiedFile{
		DroppedFile: models.DroppedFile{
			Name:    "ch1.txt",
			Path:    "/drop/ch1.txt",
			Content: "Kat crossed the Archive threshold at midnight.",
		},
		Classification: models.FileClassChapterDraft,
		Confidence:     0.9,
		ChapterGuess:   1,
		IsComplete:     true,
	}

	return models.IngestionAnalysis{
		Genre:      "Fantasy",
		TotalWords: 7,
		Files:      []models.ClassifiedFile{chapterFile},
		Characters: []models.CharacterMention{
			{Name: "Kat", Role: models.RoleUnknown, Mentions: 12, AppearsIn: []string{"ch1.txt"}},
			{Name: "Katherine", Role: models.RoleUnknown, Mentions: 3, AppearsIn: []string{"notes.md"}},
		},
		Locations: []models.LocationMention{
			{Name: "The Archive", Mentions: 7, AppearsIn: []string{"ch1.txt"}},
		},
		PossibleDuplicates: []models.DuplicateCandidate{
			{Items: []string{"Kat", "Katherine"}, Reason: "Kat reads as a nickname"},
		},
		Structure: models.StructureGuess{
			Chapters: []models.ChapterGuess{
				{Number: 1, Files: []string{"ch1.txt"}, WordCount: 7, Status: models.ChapterComplete},
			},
			EstimatedCompletion: 1,
		},
	}
}

func TestMaterialize_FullProject(t *testing.T) {
	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()

	answers := map[string]string{"dup-kat": "yes"}
	projectID, err := m.Materialize(ctx, testAnalysis(), answers, "Midnight Archive", uuid.New())
	require.NoError(t, err)
	require.NotEmpty(t, projectID)

	project, err := ms.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "Midnight Archive", project.Name)
	assert.Equal(t, "Fantasy", project.Genre)
	assert.Equal(t, models.ProjectDrafting, project.Status)
	assert.Equal(t, "yes", project.Settings["answer.dup-kat"], "clarification answers persist on the project")

	characters, err := ms.QueryCodexEntries(ctx, projectID, models.CodexCharacter)
	require.NoError(t, err)
	require.Len(t, characters, 2)

	var kat *models.CodexEntry
	for i := range characters {
		if characters[i].Name == "Kat" {
			kat = &characters[i]
		}
	}
	require.NotNil(t, kat)
	assert.Equal(t, "12", kat.Attributes["mentions"])
	assert.Equal(t, string(models.RoleUnknown), kat.Attributes["role"])
	require.Len(t, kat.Relationships, 1, "duplicate hints become relationships")
	assert.Equal(t, "Katherine", kat.Relationships[0].Target)
	assert.Equal(t, "possible-duplicate", kat.Relationships[0].Kind)

	locations, err := ms.QueryCodexEntries(ctx, projectID, models.CodexLocation)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "The Archive", locations[0].Name)

	chapters, err := ms.QueryChapters(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, 1, chapters[0].Number)
	assert.Equal(t, "Chapter 1", chapters[0].Title)
	require.Len(t, chapters[0].SceneIDs, 1)

	scenes, err := ms.QueryScenes(ctx, projectID, chapters[0].ID)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	sc := scenes[0]
	assert.Equal(t, models.SceneDrafted, sc.Status, "complete chapter yields a drafted scene")
	assert.Equal(t, "Kat crossed the Archive threshold at midnight.", sc.Content)
	assert.Equal(t, 7, sc.WordCount)
}

// TestMaterialize_CapsApplied verifies only the top-ranked entities become
// codex entries.
func TestMaterialize_CapsApplied(t *testing.T) {
	analysis := models.IngestionAnalysis{Genre: "Fantasy"}
	for i := 0; i < 25; i++ {
		analysis.Characters = append(analysis.Characters, models.CharacterMention{
			Name:     fmt.Sprintf("Character %02d", i),
			Role:     models.RoleUnknown,
			Mentions: 25 - i,
		})
	}
	for i := 0; i < 20; i++ {
		analysis.Locations = append(analysis.Locations, models.LocationMention{
			Name:     fmt.Sprintf("Place %02d", i),
			Mentions: 20 - i,
		})
	}

	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()

	projectID, err := m.Materialize(ctx, analysis, nil, "Capped", uuid.New())
	require.NoError(t, err)

	characters, err := ms.QueryCodexEntries(ctx, projectID, models.CodexCharacter)
	require.NoError(t, err)
	assert.Len(t, characters, materialize.DefaultCharacterCap)

	locations, err := ms.QueryCodexEntries(ctx, projectID, models.CodexLocation)
	require.NoError(t, err)
	assert.Len(t, locations, materialize.DefaultLocationCap)
}

// TestMaterialize_UnknownChapterBucket verifies the number-zero bucket
// becomes an untitled chapter.
func TestMaterialize_UnknownChapterBucket(t *testing.T) {
	analysis := models.IngestionAnalysis{
		Genre: "Fantasy",
		Files: []models.ClassifiedFile{
			{
				DroppedFile:    models.DroppedFile{Name: "fragment.txt", Content: "a loose scene"},
				Classification: models.FileClassSceneFragment,
			},
		},
		Structure: models.StructureGuess{
			Chapters: []models.ChapterGuess{
				{Number: 0, Files: []string{"fragment.txt"}, WordCount: 3, Status: models.ChapterPartial},
			},
		},
	}

	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()

	projectID, err := m.Materialize(ctx, analysis, nil, "Fragments", uuid.New())
	require.NoError(t, err)

	chapters, err := ms.QueryChapters(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Zero(t, chapters[0].Number)
	assert.Empty(t, chapters[0].Title)

	scenes, err := ms.QueryScenes(ctx, projectID, chapters[0].ID)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, models.ScenePlanned, scenes[0].Status, "partial chapter yields a planned scene")
}

func TestMaterialize_EmptyGenreDefaults(t *testing.T) {
	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()

	projectID, err := m.Materialize(ctx, models.IngestionAnalysis{}, nil, "Untitled", uuid.New())
	require.NoError(t, err)

	project, err := ms.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "Fiction", project.Genre)
}

// TestMaterialize_DeterministicIDs verifies retrying with the same run id
// overwrites the same rows rather than duplicating them.
func TestMaterialize_DeterministicIDs(t *testing.T) {
	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()
	runID := uuid.New()

	first, err := m.Materialize(ctx, testAnalysis(), nil, "Midnight Archive", runID)
	require.NoError(t, err)
	second, err := m.Materialize(ctx, testAnalysis(), nil, "Midnight Archive", runID)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same run id yields the same project id")

	projects, err := ms.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	characters, err := ms.QueryCodexEntries(ctx, first, models.CodexCharacter)
	require.NoError(t, err)
	assert.Len(t, characters, 2, "retries upsert instead of duplicating")
}

func TestMaterialize_DifferentRunsAreDistinct(t *testing.T) {
	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()

	first, err := m.Materialize(ctx, testAnalysis(), nil, "Midnight Archive", uuid.New())
	require.NoError(t, err)
	second, err := m.Materialize(ctx, testAnalysis(), nil, "Midnight Archive", uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestRunID_Deterministic(t *testing.T) {
	a := materialize.RunID("/data", "Midnight Archive")
	b := materialize.RunID("/data", "Midnight Archive")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, materialize.RunID("/data", "Other Project"))
	assert.NotEqual(t, a, materialize.RunID("/elsewhere", "Midnight Archive"))
}

// TestMaterialize_RetryAfterFailureResumes verifies that rerunning with
// the derived run id after a persistence failure lands on the same
// project instead of creating a second one.
func TestMaterialize_RetryAfterFailureResumes(t *testing.T) {
	ms := store.NewMockStore()
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())
	ctx := context.Background()
	runID := materialize.RunID(t.TempDir(), "Midnight Archive")

	ms.FailPuts = errors.New("disk full")
	_, err := m.Materialize(ctx, testAnalysis(), nil, "Midnight Archive", runID)
	require.Error(t, err)

	ms.FailPuts = nil
	projectID, err := m.Materialize(ctx, testAnalysis(), nil, "Midnight Archive", runID)
	require.NoError(t, err)

	projects, err := ms.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, projectID, projects[0].ID)
}

// TestMaterialize_StoreErrorsPropagate verifies persistence failures are
// visible to the caller, unlike the soft-failing model stages.
func TestMaterialize_StoreErrorsPropagate(t *testing.T) {
	ms := store.NewMockStore()
	ms.FailPuts = errors.New("disk full")
	m := materialize.NewMaterializer(ms, 0, 0, testLogger())

	_, err := m.Materialize(context.Background(), testAnalysis(), nil, "Doomed", uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
