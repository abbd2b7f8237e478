package dialogue_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/storyloom/internal/dialogue"
	"github.com/storyloom/storyloom/internal/models"
)

func newController() *dialogue.Controller {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return dialogue.NewController(logger)
}

func threeQuestions() []models.ClarifyingQuestion {
	return []models.ClarifyingQuestion{
		{ID: "q1", Type: models.QuestionDuplicate, Question: "Are Kat and Katherine the same?", Options: []string{"yes", "no"}},
		{ID: "q2", Type: models.QuestionStructure, Question: "Is chapter 3 before or after the flashback?"},
		{ID: "q3", Type: models.QuestionCanon, Question: "Which draft of the ending is canon?"},
	}
}

func TestController_StartsIdle(t *testing.T) {
	c := newController()
	assert.Equal(t, dialogue.StateIdle, c.State())
	assert.False(t, c.Done())
	assert.Nil(t, c.Current())
}

// TestController_NoQuestionsDoneImmediately verifies an empty question
// list unlocks materialization with zero clarifications.
func TestController_NoQuestionsDoneImmediately(t *testing.T) {
	c := newController()
	c.Begin(nil)
	assert.Equal(t, dialogue.StateDone, c.State())
	assert.True(t, c.Done())
	assert.Empty(t, c.Answers())
}

func TestController_SequentialFlow(t *testing.T) {
	c := newController()
	c.Begin(threeQuestions())
	assert.Equal(t, dialogue.StateAsking, c.State())

	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "q1", cur.ID)

	require.NoError(t, c.Answer("q1", "yes"))
	cur = c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "q2", cur.ID, "questions advance in original order")

	require.NoError(t, c.Answer("q2", "after"))
	require.NoError(t, c.Answer("q3", "the second draft"))

	assert.True(t, c.Done())
	assert.Nil(t, c.Current())
	assert.Equal(t, map[string]string{
		"q1": "yes",
		"q2": "after",
		"q3": "the second draft",
	}, c.Answers())
}

// TestController_OutOfOrderAnswer verifies answering a later id is
// accepted, but presentation order never changes: the first unanswered
// question stays current.
func TestController_OutOfOrderAnswer(t *testing.T) {
	c := newController()
	c.Begin(threeQuestions())

	require.NoError(t, c.Answer("q2", "before"))

	cur := c.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "q1", cur.ID, "q1 is still the first unanswered question")

	remaining := c.Remaining()
	require.Len(t, remaining, 2)
	assert.Equal(t, "q1", remaining[0].ID)
	assert.Equal(t, "q3", remaining[1].ID)
}

func TestController_UnknownIDRejected(t *testing.T) {
	c := newController()
	c.Begin(threeQuestions())

	err := c.Answer("q99", "whatever")
	assert.Error(t, err)
	assert.Equal(t, dialogue.StateAsking, c.State())
}

// TestController_AnswersUnvalidated verifies free-text answers are stored
// verbatim even for questions with fixed options.
func TestController_AnswersUnvalidated(t *testing.T) {
	c := newController()
	c.Begin(threeQuestions())

	require.NoError(t, c.Answer("q1", "they are sisters, actually"))
	assert.Equal(t, "they are sisters, actually", c.Answers()["q1"])
}

func TestController_ReanswerOverwrites(t *testing.T) {
	c := newController()
	c.Begin(threeQuestions())

	require.NoError(t, c.Answer("q1", "yes"))
	require.NoError(t, c.Answer("q1", "no"))
	assert.Equal(t, "no", c.Answers()["q1"])
	assert.Len(t, c.Remaining(), 2, "re-answering does not consume another question")
}

func TestController_AnswerAfterDoneRejected(t *testing.T) {
	c := newController()
	c.Begin([]models.ClarifyingQuestion{{ID: "q1", Type: models.QuestionOther, Question: "Only one?"}})

	require.NoError(t, c.Answer("q1", "done"))
	assert.True(t, c.Done())
	assert.Error(t, c.Answer("q1", "again"))
}

func TestController_AnswerWhileIdleRejected(t *testing.T) {
	c := newController()
	assert.Error(t, c.Answer("q1", "too early"))
}

// TestController_AnswersReturnsCopy verifies mutating the returned map
// does not leak into controller state.
func TestController_AnswersReturnsCopy(t *testing.T) {
	c := newController()
	c.Begin(threeQuestions())
	require.NoError(t, c.Answer("q1", "yes"))

	got := c.Answers()
	got["q1"] = "tampered"
	assert.Equal(t, "yes", c.Answers()["q1"])
}
