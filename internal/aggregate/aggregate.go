// Package aggregate merges per-file entity mentions into deduplicated,
// ranked project-wide registries. It is a pure function over classified
// files: no I/O, no model calls.
package aggregate

import (
	"math"
	"sort"
	"strings"

	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/pkg/textutil"
)

// referenceNovelWords is the fixed novel length used for the completion
// heuristic. Progress estimate only, not a correctness constraint.
const referenceNovelWords = 80000

// Result is the local synthesis of all classified files.
type Result struct {
	Characters []models.CharacterMention
	Locations  []models.LocationMention
	Concepts   []models.ConceptMention
	Structure  models.StructureGuess
	TotalWords int
}

// mentionRecord accumulates one entity's mentions during the merge.
type mentionRecord struct {
	display   string
	mentions  int
	appearsIn []string
	seen      map[string]bool // file-name set semantics for appearsIn
	order     int             // first-seen rank, for stable tie-breaks
}

// Aggregate merges entity mentions across files and derives the chapter
// structure guess. Identity is the trimmed, lower-cased name: a
// conservative exact match. Fuzzy reconciliation is deliberately left to
// the consolidation pass as a question for the user.
func Aggregate(files []models.ClassifiedFile) Result {
	characters := newRegistry()
	locations := newRegistry()
	concepts := newRegistry()

	totalWords := 0
	for i := range files {
		f := &files[i]
		totalWords += textutil.WordCount(f.Content)
		for _, name := range f.Entities.Characters {
			characters.add(name, f.Name)
		}
		for _, name := range f.Entities.Locations {
			locations.add(name, f.Name)
		}
		for _, name := range f.Entities.Concepts {
			concepts.add(name, f.Name)
		}
	}

	res := Result{
		Structure:  structureGuess(files, totalWords),
		TotalWords: totalWords,
	}
	for _, r := range characters.ranked() {
		res.Characters = append(res.Characters, models.CharacterMention{
			Name:      r.display,
			Role:      models.RoleUnknown,
			Mentions:  r.mentions,
			AppearsIn: r.appearsIn,
		})
	}
	for _, r := range locations.ranked() {
		res.Locations = append(res.Locations, models.LocationMention{
			Name:      r.display,
			Mentions:  r.mentions,
			AppearsIn: r.appearsIn,
		})
	}
	for _, r := range concepts.ranked() {
		res.Concepts = append(res.Concepts, models.ConceptMention{
			Name:      r.display,
			Mentions:  r.mentions,
			AppearsIn: r.appearsIn,
		})
	}
	return res
}

// registry maps normalized keys to mention records.
type registry struct {
	byKey map[string]*mentionRecord
	next  int
}

func newRegistry() *registry {
	return &registry{byKey: make(map[string]*mentionRecord)}
}

// add records one mention of name in fileName. The first occurrence of a
// key fixes the display name; appearsIn uses set semantics.
func (reg *registry) add(name, fileName string) {
	display := strings.TrimSpace(name)
	if display == "" {
		return
	}
	key := strings.ToLower(display)

	rec, ok := reg.byKey[key]
	if !ok {
		rec = &mentionRecord{
			display: display,
			seen:    make(map[string]bool),
			order:   reg.next,
		}
		reg.next++
		reg.byKey[key] = rec
	}
	rec.mentions++
	if !rec.seen[fileName] {
		rec.seen[fileName] = true
		rec.appearsIn = append(rec.appearsIn, fileName)
	}
}

// ranked returns records sorted descending by mentions; ties keep
// first-seen order.
func (reg *registry) ranked() []*mentionRecord {
	out := make([]*mentionRecord, 0, len(reg.byKey))
	for _, r := range reg.byKey {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].mentions != out[j].mentions {
			return out[i].mentions > out[j].mentions
		}
		return out[i].order < out[j].order
	})
	return out
}

// structureGuess groups chapter-bearing files into chapter buckets.
func structureGuess(files []models.ClassifiedFile, totalWords int) models.StructureGuess {
	buckets := make(map[int]*models.ChapterGuess)
	var bucketOrder []int

	for i := range files {
		f := &files[i]
		if f.Classification != models.FileClassChapterDraft &&
			f.Classification != models.FileClassSceneFragment {
			continue
		}

		// Missing guess lands in the explicit unknown bucket, number 0.
		num := f.ChapterGuess
		words := textutil.WordCount(f.Content)

		b, ok := buckets[num]
		if !ok {
			status := models.ChapterPartial
			if f.IsComplete {
				status = models.ChapterComplete
			}
			buckets[num] = &models.ChapterGuess{
				Number:    num,
				Files:     []string{f.Name},
				WordCount: words,
				Status:    status,
			}
			bucketOrder = append(bucketOrder, num)
			continue
		}

		// Later contributors accumulate word count and flag alternates,
		// but never override status: conflicting completeness across
		// duplicate drafts is a question for the user.
		b.Files = append(b.Files, f.Name)
		b.WordCount += words
		b.HasAlternateVersions = true
	}

	sort.Ints(bucketOrder)
	guess := models.StructureGuess{
		EstimatedCompletion: estimatedCompletion(totalWords),
	}
	for _, num := range bucketOrder {
		guess.Chapters = append(guess.Chapters, *buckets[num])
	}
	return guess
}

// estimatedCompletion maps total words onto 0..100 against the reference
// novel length.
func estimatedCompletion(totalWords int) int {
	pct := int(math.Round(float64(totalWords) / referenceNovelWords * 100))
	if pct > 100 {
		return 100
	}
	return pct
}
