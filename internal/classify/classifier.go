// Package classify categorizes one manuscript file at a time via the model
// gateway and extracts the entities it mentions.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/storyloom/storyloom/internal/gateway"
	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/pkg/jsonfence"
	"github.com/storyloom/storyloom/pkg/textutil"
)

const (
	// classifyTemperature favors deterministic classification output.
	classifyTemperature = 0.3

	// classifyMaxTokens bounds the classification response.
	classifyMaxTokens = 1024

	// degradedSummary is the summary recorded when classification fails.
	degradedSummary = "Failed to analyze"
)

// classifyPromptTemplate requests strict JSON for one file. File content is
// injected via an XML tag to prevent prompt injection from manuscript text.
const classifyPromptTemplate = `You are a manuscript analysis system for a novel-writing tool. Classify the file and extract the entities it mentions.

File name: %s
File path: %s
Word count: %d

Classify as one of: "chapter-draft", "scene-fragment", "character-doc", "worldbuilding", "plot-outline", "notes", "timeline", "dialogue", "research", "unknown".

Return ONLY a JSON object with this exact schema:
{
  "classification": "<one of the categories above>",
  "confidence": <0.0-1.0>,
  "summary": "<one or two sentences>",
  "characters": ["<character names mentioned>"],
  "locations": ["<location names mentioned>"],
  "concepts": ["<worldbuilding concepts, magic systems, factions, technologies>"],
  "chapterNumber": <chapter number if identifiable, else null>,
  "isComplete": <true if this reads as a finished draft, else false>
}

<content>
%s
</content>`

// classifyResponse is the raw JSON shape returned by the model. Field names
// are part of the prompt contract and must not change.
type classifyResponse struct {
	Classification string   `json:"classification"`
	Confidence     float64  `json:"confidence"`
	Summary        string   `json:"summary"`
	Characters     []string `json:"characters"`
	Locations      []string `json:"locations"`
	Concepts       []string `json:"concepts"`
	ChapterNumber  *int     `json:"chapterNumber"`
	IsComplete     *bool    `json:"isComplete"`
}

// Classifier categorizes manuscript files using the model gateway.
type Classifier struct {
	gw            gateway.Gateway
	model         string
	contentBudget int
	logger        *slog.Logger
}

// NewClassifier creates a classifier. contentBudget bounds how many
// characters of file content are embedded in each prompt.
func NewClassifier(gw gateway.Gateway, model string, contentBudget int, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		gw:            gw,
		model:         model,
		contentBudget: contentBudget,
		logger:        logger,
	}
}

// Classify categorizes a single file. It never returns an error: on any
// failure (transport, auth, malformed response) it returns a degraded
// record so one bad file cannot abort ingestion of the rest.
func (c *Classifier) Classify(ctx context.Context, file models.DroppedFile) models.ClassifiedFile {
	content := textutil.TruncateMiddle(file.Content, c.contentBudget)
	prompt := fmt.Sprintf(classifyPromptTemplate,
		textutil.EscapeXML(file.Name),
		textutil.EscapeXML(file.Path),
		textutil.WordCount(file.Content),
		textutil.EscapeXML(content),
	)

	resp, err := c.gw.Generate(ctx, gateway.Request{
		Model:        c.model,
		SystemPrompt: "You are a precise manuscript classification system. Output only valid JSON.",
		UserPrompt:   prompt,
		Temperature:  classifyTemperature,
		MaxTokens:    classifyMaxTokens,
	})
	if err != nil {
		c.logger.Warn("classify: gateway call failed, degrading to unknown",
			"file", file.Name, "error", err)
		return degraded(file)
	}

	var raw classifyResponse
	if parseErr := json.Unmarshal([]byte(jsonfence.Strip(resp.Content)), &raw); parseErr != nil {
		c.logger.Warn("classify: could not parse model response, degrading to unknown",
			"file", file.Name, "error", parseErr, "response", resp.Content)
		return degraded(file)
	}

	class := models.FileClass(raw.Classification)
	if !class.IsValid() {
		c.logger.Warn("classify: unrecognized classification, degrading to unknown",
			"file", file.Name, "classification", raw.Classification)
		class = models.FileClassUnknown
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	cf := models.ClassifiedFile{
		DroppedFile:    file,
		Classification: class,
		Confidence:     confidence,
		Summary:        raw.Summary,
		Entities: models.ExtractedEntities{
			Characters: raw.Characters,
			Locations:  raw.Locations,
			Concepts:   raw.Concepts,
		},
	}
	if raw.ChapterNumber != nil && *raw.ChapterNumber > 0 {
		cf.ChapterGuess = *raw.ChapterNumber
	}
	if raw.IsComplete != nil {
		cf.IsComplete = *raw.IsComplete
	}

	c.logger.Debug("classified file",
		"file", file.Name,
		"classification", cf.Classification,
		"confidence", cf.Confidence,
		"characters", len(cf.Entities.Characters))
	return cf
}

// degraded is the neutral record returned when classification fails.
func degraded(file models.DroppedFile) models.ClassifiedFile {
	return models.ClassifiedFile{
		DroppedFile:    file,
		Classification: models.FileClassUnknown,
		Confidence:     0,
		Summary:        degradedSummary,
		Entities:       models.ExtractedEntities{},
	}
}
