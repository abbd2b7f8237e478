package models

import "time"

// ProjectStatus tracks where a project is in its life.
type ProjectStatus string

const (
	ProjectDrafting ProjectStatus = "drafting"
	ProjectRevising ProjectStatus = "revising"
	ProjectComplete ProjectStatus = "complete"
	ProjectArchived ProjectStatus = "archived"
)

// Project is a persisted writing project, created once at materialization
// time and owned by the rest of the application afterward.
type Project struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Genre     string            `json:"genre"`
	Status    ProjectStatus     `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// CodexType classifies a codex entry.
type CodexType string

const (
	CodexCharacter CodexType = "character"
	CodexLocation  CodexType = "location"
	CodexConcept   CodexType = "concept"
	CodexItem      CodexType = "item"
)

// ValidCodexTypes is the set of recognized codex entry types.
var ValidCodexTypes = []CodexType{
	CodexCharacter,
	CodexLocation,
	CodexConcept,
	CodexItem,
}

// IsValid returns true if the codex type is recognized.
func (ct CodexType) IsValid() bool {
	for i := range ValidCodexTypes {
		if ct == ValidCodexTypes[i] {
			return true
		}
	}
	return false
}

// Relationship links a codex entry to another named entity.
type Relationship struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Note   string `json:"note,omitempty"`
}

// CodexEntry is one persisted worldbuilding record (character, location, ...).
type CodexEntry struct {
	ID            string            `json:"id"`
	ProjectID     string            `json:"project_id"`
	Type          CodexType         `json:"type"`
	Name          string            `json:"name"`
	Aliases       []string          `json:"aliases,omitempty"`
	Description   string            `json:"description"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
}

// Chapter is a persisted chapter shell; scene content lives in Scene records.
type Chapter struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	SceneIDs  []string `json:"scenes,omitempty"`
}

// SceneStatus tracks how far along a scene is.
type SceneStatus string

const (
	ScenePlanned SceneStatus = "planned"
	SceneDrafted SceneStatus = "drafted"
	SceneRevised SceneStatus = "revised"
)

// Scene is one persisted scene under a chapter.
type Scene struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"project_id"`
	ChapterID string      `json:"chapter_id"`
	Number    int         `json:"number"`
	Goal      string      `json:"goal,omitempty"`
	Status    SceneStatus `json:"status"`
	Content   string      `json:"content"`
	WordCount int         `json:"word_count"`
	Issues    []string    `json:"issues,omitempty"`
}

// StoreStats holds summary statistics about the local store.
type StoreStats struct {
	TotalProjects int64            `json:"total_projects"`
	TotalCodex    int64            `json:"total_codex_entries"`
	TotalChapters int64            `json:"total_chapters"`
	TotalScenes   int64            `json:"total_scenes"`
	CodexByType   map[string]int64 `json:"codex_by_type"`
}
