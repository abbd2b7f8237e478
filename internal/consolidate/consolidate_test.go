package consolidate_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/aggregate"
	"github.com/storyloom/storyloom/internal/consolidate"
	"github.com/storyloom/storyloom/internal/gateway"
	"github.com/storyloom/storyloom/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAggregate() aggregate.Result {
	return aggregate.Result{
		Characters: []models.CharacterMention{
			{Name: "Kat", Mentions: 12},
			{Name: "Katherine", Mentions: 3},
		},
		Locations: []models.LocationMention{
			{Name: "The Archive", Mentions: 7},
		},
		Structure: models.StructureGuess{
			Chapters: []models.ChapterGuess{
				{Number: 1, WordCount: 3000, Status: models.ChapterComplete},
			},
			EstimatedCompletion: 4,
		},
		TotalWords: 3200,
	}
}

const validConsolidateResponse = `{
  "genreGuess": "Fantasy",
  "possibleDuplicates": [
    {"items": ["Kat", "Katherine"], "reason": "Kat reads as a nickname for Katherine"}
  ],
  "questions": [
    {"id": "dup-kat", "type": "duplicate", "question": "Are Kat and Katherine the same character?", "options": ["yes", "no"]}
  ]
}`

func TestReasoner_ValidResponse(t *testing.T) {
	gw := gateway.NewStubGateway(validConsolidateResponse)
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())

	assert.Equal(t, "Fantasy", res.Genre)
	require.Len(t, res.PossibleDuplicates, 1)
	assert.Equal(t, []string{"Kat", "Katherine"}, res.PossibleDuplicates[0].Items)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, "dup-kat", res.Questions[0].ID)
	assert.Equal(t, models.QuestionDuplicate, res.Questions[0].Type)
	assert.Equal(t, []string{"yes", "no"}, res.Questions[0].Options)
}

// TestReasoner_GatewayFailureSoftFails verifies consolidation never blocks
// ingestion: on gateway failure it returns neutral defaults.
func TestReasoner_GatewayFailureSoftFails(t *testing.T) {
	gw := gateway.NewFailingGateway(errors.New("overloaded"))
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())

	assert.Equal(t, "Fiction", res.Genre)
	assert.Empty(t, res.PossibleDuplicates)
	assert.Empty(t, res.Questions)
	assert.NotNil(t, res.PossibleDuplicates, "neutral result carries empty slices, not nil")
	assert.NotNil(t, res.Questions)
}

func TestReasoner_MalformedJSONSoftFails(t *testing.T) {
	gw := gateway.NewStubGateway("The genre is probably fantasy.")
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())
	assert.Equal(t, "Fiction", res.Genre)
	assert.Empty(t, res.Questions)
}

func TestReasoner_FencedResponse(t *testing.T) {
	gw := gateway.NewStubGateway("```json\n" + validConsolidateResponse + "\n```")
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())
	assert.Equal(t, "Fantasy", res.Genre)
	require.Len(t, res.Questions, 1)
}

// TestReasoner_QuestionSanitization covers id defaulting by position,
// off-menu type coercion, and blank-question dropping.
func TestReasoner_QuestionSanitization(t *testing.T) {
	gw := gateway.NewStubGateway(`{
	  "genreGuess": "Mystery",
	  "possibleDuplicates": [],
	  "questions": [
	    {"id": "", "type": "duplicate", "question": "First?"},
	    {"id": "", "type": "interrogation", "question": "Second?"},
	    {"id": "x", "type": "canon", "question": "   "}
	  ]
	}`)
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())

	require.Len(t, res.Questions, 2, "blank question text is dropped")
	assert.Equal(t, "q1", res.Questions[0].ID, "missing ids default by position")
	assert.Equal(t, models.QuestionDuplicate, res.Questions[0].Type)
	assert.Equal(t, "q2", res.Questions[1].ID)
	assert.Equal(t, models.QuestionOther, res.Questions[1].Type, "off-menu type coerces to other")
}

func TestReasoner_DuplicatesNeedTwoItems(t *testing.T) {
	gw := gateway.NewStubGateway(`{
	  "genreGuess": "Fantasy",
	  "possibleDuplicates": [
	    {"items": ["Solo"], "reason": "only one name"},
	    {"items": ["A", "B"], "reason": "ok"}
	  ],
	  "questions": []
	}`)
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())
	require.Len(t, res.PossibleDuplicates, 1)
	assert.Equal(t, []string{"A", "B"}, res.PossibleDuplicates[0].Items)
}

func TestReasoner_EmptyGenreDefaults(t *testing.T) {
	gw := gateway.NewStubGateway(`{"genreGuess": "  ", "possibleDuplicates": [], "questions": []}`)
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	res := r.Consolidate(context.Background(), testAggregate())
	assert.Equal(t, "Fiction", res.Genre)
}

// TestReasoner_DigestInPrompt verifies the prompt carries the aggregated
// view the model is asked to reason over.
func TestReasoner_DigestInPrompt(t *testing.T) {
	gw := gateway.NewStubGateway(validConsolidateResponse)
	r := consolidate.NewReasoner(gw, "claude-haiku-4-5-20251001", testLogger())

	r.Consolidate(context.Background(), testAggregate())

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]

	assert.InDelta(t, 0.3, req.Temperature, 0.001)
	assert.Equal(t, int64(2048), req.MaxTokens)
	assert.Contains(t, req.UserPrompt, "Kat: 12")
	assert.Contains(t, req.UserPrompt, "The Archive: 7")
	assert.Contains(t, req.UserPrompt, "Total words: 3200")
	assert.Contains(t, req.UserPrompt, "chapter 1: 3000 words")
}
