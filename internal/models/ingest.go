package models

import "time"

// FileClass categorizes an ingested manuscript file.
type FileClass string

const (
	FileClassChapterDraft  FileClass = "chapter-draft"
	FileClassSceneFragment FileClass = "scene-fragment"
	FileClassCharacterDoc  FileClass = "character-doc"
	FileClassWorldbuilding FileClass = "worldbuilding"
	FileClassPlotOutline   FileClass = "plot-outline"
	FileClassNotes         FileClass = "notes"
	FileClassTimeline      FileClass = "timeline"
	FileClassDialogue      FileClass = "dialogue"
	FileClassResearch      FileClass = "research"
	FileClassUnknown       FileClass = "unknown"
)

// ValidFileClasses is the set of all recognized file classifications.
var ValidFileClasses = []FileClass{
	FileClassChapterDraft,
	FileClassSceneFragment,
	FileClassCharacterDoc,
	FileClassWorldbuilding,
	FileClassPlotOutline,
	FileClassNotes,
	FileClassTimeline,
	FileClassDialogue,
	FileClassResearch,
	FileClassUnknown,
}

// IsValid returns true if the file class is recognized.
func (fc FileClass) IsValid() bool {
	for i := range ValidFileClasses {
		if fc == ValidFileClasses[i] {
			return true
		}
	}
	return false
}

// CharacterRole describes a character's narrative function.
type CharacterRole string

const (
	RoleProtagonist CharacterRole = "protagonist"
	RoleAntagonist  CharacterRole = "antagonist"
	RoleSupporting  CharacterRole = "supporting"
	RoleMinor       CharacterRole = "minor"
	RoleUnknown     CharacterRole = "unknown"
)

// DroppedFile is one raw manuscript file handed to the pipeline.
// Immutable once produced by the loader.
type DroppedFile struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
}

// ExtractedEntities holds the raw entity name lists pulled from one file.
type ExtractedEntities struct {
	Characters []string `json:"characters"`
	Locations  []string `json:"locations"`
	Concepts   []string `json:"concepts"`
}

// ClassifiedFile is a DroppedFile plus its classification results.
// Every DroppedFile yields exactly one ClassifiedFile, even on failure
// (degraded to unknown with confidence 0).
type ClassifiedFile struct {
	DroppedFile

	Classification FileClass         `json:"classification"`
	Confidence     float64           `json:"confidence"`
	Summary        string            `json:"summary"`
	Entities       ExtractedEntities `json:"extracted_entities"`
	ChapterGuess   int               `json:"chapter_guess,omitempty"` // 0 = no guess
	IsComplete     bool              `json:"is_complete,omitempty"`
}

// CharacterMention is a character aggregated across files.
type CharacterMention struct {
	Name        string        `json:"name"`
	Aliases     []string      `json:"aliases,omitempty"`
	Description string        `json:"description,omitempty"`
	Role        CharacterRole `json:"role"`
	Mentions    int           `json:"mentions"`
	AppearsIn   []string      `json:"appears_in"`
}

// LocationMention is a location aggregated across files.
type LocationMention struct {
	Name      string   `json:"name"`
	Mentions  int      `json:"mentions"`
	AppearsIn []string `json:"appears_in"`
}

// ConceptMention is a worldbuilding concept aggregated across files.
type ConceptMention struct {
	Name      string   `json:"name"`
	Mentions  int      `json:"mentions"`
	AppearsIn []string `json:"appears_in"`
}

// ChapterStatus describes how finished a reconstructed chapter looks.
type ChapterStatus string

const (
	ChapterComplete    ChapterStatus = "complete"
	ChapterPartial     ChapterStatus = "partial"
	ChapterOutlineOnly ChapterStatus = "outline-only"
	ChapterTentative   ChapterStatus = "tentative"
)

// ChapterGuess groups files that appear to belong to the same chapter.
// Number 0 is the explicit "unknown chapter" bucket.
type ChapterGuess struct {
	Number               int           `json:"number"`
	Files                []string      `json:"files"`
	WordCount            int           `json:"word_count"`
	Status               ChapterStatus `json:"status"`
	HasAlternateVersions bool          `json:"has_alternate_versions"`
}

// StructureGuess is the aggregator's reconstruction of the manuscript shape.
type StructureGuess struct {
	Chapters            []ChapterGuess `json:"chapters"`
	EstimatedCompletion int            `json:"estimated_completion"` // 0..100
}

// QuestionType tags a clarifying question for the UI.
type QuestionType string

const (
	QuestionDuplicate QuestionType = "duplicate"
	QuestionCanon     QuestionType = "canon"
	QuestionStructure QuestionType = "structure"
	QuestionCharacter QuestionType = "character"
	QuestionOther     QuestionType = "other"
)

// ValidQuestionTypes is the set of recognized question types.
var ValidQuestionTypes = []QuestionType{
	QuestionDuplicate,
	QuestionCanon,
	QuestionStructure,
	QuestionCharacter,
	QuestionOther,
}

// IsValid returns true if the question type is recognized.
func (qt QuestionType) IsValid() bool {
	for i := range ValidQuestionTypes {
		if qt == ValidQuestionTypes[i] {
			return true
		}
	}
	return false
}

// ClarifyingQuestion is one question the consolidation pass wants answered
// before materialization.
type ClarifyingQuestion struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Options  []string     `json:"options,omitempty"`
	Context  string       `json:"context,omitempty"`
}

// DuplicateCandidate is a group of names the consolidation pass judged
// likely to refer to the same entity. Surfaced as information, never
// merged automatically.
type DuplicateCandidate struct {
	Items  []string `json:"items"`
	Reason string   `json:"reason"`
}

// IngestionAnalysis is the aggregate root of one ingestion run. Built once
// and never mutated after consolidation; answers are tracked separately.
type IngestionAnalysis struct {
	Genre              string               `json:"genre"`
	TotalWords         int                  `json:"total_words"`
	Files              []ClassifiedFile     `json:"files"`
	Characters         []CharacterMention   `json:"characters"`
	Locations          []LocationMention    `json:"locations"`
	Concepts           []ConceptMention     `json:"concepts"`
	PossibleDuplicates []DuplicateCandidate `json:"possible_duplicates"`
	Structure          StructureGuess       `json:"structure_guess"`
	Questions          []ClarifyingQuestion `json:"questions"`
}
