// Package consolidate runs the second model pass: given the aggregated
// view of a manuscript it proposes a genre, flags likely duplicate entity
// names, and generates clarifying questions for the user.
package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storyloom/storyloom/internal/aggregate"
	"github.com/storyloom/storyloom/internal/gateway"
	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/pkg/jsonfence"
	"github.com/storyloom/storyloom/pkg/textutil"
)

const (
	// digestCharacterLimit bounds how many top characters go into the prompt.
	digestCharacterLimit = 30

	// digestLocationLimit bounds how many top locations go into the prompt.
	digestLocationLimit = 20

	// consolidateTemperature favors deterministic reasoning output.
	consolidateTemperature = 0.3

	// consolidateMaxTokens bounds the consolidation response.
	consolidateMaxTokens = 2048

	// defaultGenre is the neutral genre used when the model pass fails.
	defaultGenre = "Fiction"
)

const consolidatePromptTemplate = `You are reviewing the aggregated analysis of a novelist's manuscript folder. Identify the genre, names that likely refer to the same entity, and questions the writer should answer before the project is created.

Return ONLY a JSON object with this exact schema:
{
  "genreGuess": "<genre>",
  "possibleDuplicates": [{"items": ["<name>", "<name>"], "reason": "<why they look like the same entity>"}],
  "questions": [{"id": "<stable id>", "type": "duplicate|canon|structure|character|other", "question": "<text>", "options": ["<optional fixed choices>"]}]
}

Ask only questions whose answers change how the project should be assembled. Return empty arrays when there is nothing to flag.

<analysis>
%s
</analysis>`

// consolidateResponse is the raw JSON shape returned by the model. Field
// names are part of the prompt contract and must not change.
type consolidateResponse struct {
	GenreGuess         string `json:"genreGuess"`
	PossibleDuplicates []struct {
		Items  []string `json:"items"`
		Reason string   `json:"reason"`
	} `json:"possibleDuplicates"`
	Questions []struct {
		ID       string   `json:"id"`
		Type     string   `json:"type"`
		Question string   `json:"question"`
		Options  []string `json:"options"`
	} `json:"questions"`
}

// Result is the consolidation outcome.
type Result struct {
	Genre              string
	PossibleDuplicates []models.DuplicateCandidate
	Questions          []models.ClarifyingQuestion
}

// Reasoner runs the consolidation pass against the model gateway.
type Reasoner struct {
	gw     gateway.Gateway
	model  string
	logger *slog.Logger
}

// NewReasoner creates a consolidation reasoner.
func NewReasoner(gw gateway.Gateway, model string, logger *slog.Logger) *Reasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reasoner{gw: gw, model: model, logger: logger}
}

// Consolidate reasons over the aggregated analysis. It fails soft: on any
// gateway error or unparseable response it returns genre "Fiction" with no
// duplicates and no questions, so ingestion can always reach project
// creation.
func (r *Reasoner) Consolidate(ctx context.Context, agg aggregate.Result) Result {
	neutral := Result{
		Genre:              defaultGenre,
		PossibleDuplicates: []models.DuplicateCandidate{},
		Questions:          []models.ClarifyingQuestion{},
	}

	prompt := fmt.Sprintf(consolidatePromptTemplate, digest(agg))

	resp, err := r.gw.Generate(ctx, gateway.Request{
		Model:        r.model,
		SystemPrompt: "You are a precise manuscript consolidation system. Output only valid JSON.",
		UserPrompt:   prompt,
		Temperature:  consolidateTemperature,
		MaxTokens:    consolidateMaxTokens,
	})
	if err != nil {
		r.logger.Warn("consolidate: gateway call failed, using neutral defaults", "error", err)
		return neutral
	}

	var raw consolidateResponse
	if parseErr := json.Unmarshal([]byte(jsonfence.Strip(resp.Content)), &raw); parseErr != nil {
		r.logger.Warn("consolidate: could not parse model response, using neutral defaults",
			"error", parseErr, "response", resp.Content)
		return neutral
	}

	out := Result{
		Genre:              strings.TrimSpace(raw.GenreGuess),
		PossibleDuplicates: []models.DuplicateCandidate{},
		Questions:          []models.ClarifyingQuestion{},
	}
	if out.Genre == "" {
		out.Genre = defaultGenre
	}

	for _, d := range raw.PossibleDuplicates {
		if len(d.Items) < 2 {
			continue
		}
		out.PossibleDuplicates = append(out.PossibleDuplicates, models.DuplicateCandidate{
			Items:  d.Items,
			Reason: d.Reason,
		})
	}

	for i, q := range raw.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		id := strings.TrimSpace(q.ID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		qt := models.QuestionType(q.Type)
		if !qt.IsValid() {
			qt = models.QuestionOther
		}
		out.Questions = append(out.Questions, models.ClarifyingQuestion{
			ID:       id,
			Type:     qt,
			Question: text,
			Options:  q.Options,
		})
	}

	r.logger.Info("consolidation complete",
		"genre", out.Genre,
		"duplicates", len(out.PossibleDuplicates),
		"questions", len(out.Questions))
	return out
}

// digest renders the compact textual summary embedded in the prompt: top
// characters and locations by mention count plus the full chapter table.
func digest(agg aggregate.Result) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Total words: %d\n", agg.TotalWords)
	fmt.Fprintf(&sb, "Estimated completion: %d%%\n", agg.Structure.EstimatedCompletion)

	sb.WriteString("\nTop characters (name: mentions):\n")
	for i, c := range agg.Characters {
		if i >= digestCharacterLimit {
			break
		}
		fmt.Fprintf(&sb, "- %s: %d\n", textutil.EscapeXML(c.Name), c.Mentions)
	}

	sb.WriteString("\nTop locations (name: mentions):\n")
	for i, l := range agg.Locations {
		if i >= digestLocationLimit {
			break
		}
		fmt.Fprintf(&sb, "- %s: %d\n", textutil.EscapeXML(l.Name), l.Mentions)
	}

	sb.WriteString("\nChapters (number, words, status, alternates):\n")
	for _, ch := range agg.Structure.Chapters {
		fmt.Fprintf(&sb, "- chapter %d: %d words, %s, alternates=%t\n",
			ch.Number, ch.WordCount, ch.Status, ch.HasAlternateVersions)
	}

	return sb.String()
}
