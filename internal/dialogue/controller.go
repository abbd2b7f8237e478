// Package dialogue drives the clarification loop: a strictly sequential
// question/answer pass over the consolidation output.
package dialogue

import (
	"fmt"
	"log/slog"

	"github.com/storyloom/storyloom/internal/models"
)

// State is the controller's position in the question loop.
type State string

const (
	StateIdle   State = "idle"
	StateAsking State = "asking"
	StateDone   State = "done"
)

// Controller walks a fixed question list in order and records answers.
// It never loops, never skips, and never reprioritizes; the questions are
// presented exactly as the consolidation pass returned them. Answers are
// stored as plain strings without validation against option sets.
type Controller struct {
	questions []models.ClarifyingQuestion
	answers   map[string]string
	state     State
	logger    *slog.Logger
}

// NewController creates an idle controller.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		answers: make(map[string]string),
		state:   StateIdle,
		logger:  logger,
	}
}

// Begin loads the question list. With no questions the controller goes
// straight to done, unlocking materialization with zero clarifications.
func (c *Controller) Begin(questions []models.ClarifyingQuestion) {
	c.questions = append([]models.ClarifyingQuestion(nil), questions...)
	c.answers = make(map[string]string)
	if len(c.questions) == 0 {
		c.state = StateDone
		c.logger.Debug("dialogue: no questions, done immediately")
		return
	}
	c.state = StateAsking
	c.logger.Debug("dialogue: begin", "questions", len(c.questions))
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return c.state
}

// Current returns the question being asked: the first question, in
// original list order, whose id has no recorded answer. Returns nil when
// the controller is not asking.
func (c *Controller) Current() *models.ClarifyingQuestion {
	if c.state != StateAsking {
		return nil
	}
	remaining := c.Remaining()
	if len(remaining) == 0 {
		return nil
	}
	q := remaining[0]
	return &q
}

// Remaining returns the unanswered questions in original list order.
func (c *Controller) Remaining() []models.ClarifyingQuestion {
	var out []models.ClarifyingQuestion
	for _, q := range c.questions {
		if _, answered := c.answers[q.ID]; !answered {
			out = append(out, q)
		}
	}
	return out
}

// Answer records an answer for the given question id and advances.
// Re-answering an id overwrites the previous answer. The controller moves
// to done once every question id has an entry in the answer map.
func (c *Controller) Answer(id, text string) error {
	if c.state != StateAsking {
		return fmt.Errorf("dialogue: not asking (state %s)", c.state)
	}
	if !c.knownID(id) {
		return fmt.Errorf("dialogue: unknown question id %q", id)
	}

	c.answers[id] = text
	if len(c.Remaining()) == 0 {
		c.state = StateDone
		c.logger.Debug("dialogue: all questions answered")
	}
	return nil
}

// Done reports whether the dialogue has finished, unlocking materialization.
func (c *Controller) Done() bool {
	return c.state == StateDone
}

// Answers returns a copy of the answer map (question id → answer text).
func (c *Controller) Answers() map[string]string {
	out := make(map[string]string, len(c.answers))
	for k, v := range c.answers {
		out[k] = v
	}
	return out
}

func (c *Controller) knownID(id string) bool {
	for i := range c.questions {
		if c.questions[i].ID == id {
			return true
		}
	}
	return false
}
