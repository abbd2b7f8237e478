// Package codex holds post-ingestion codex maintenance operations.
package codex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/internal/store"
)

// Merger performs the manual duplicate-resolution action: folding one
// codex entry into another. Duplicates flagged during ingestion are never
// merged automatically; this is the explicit user-driven follow-up.
type Merger struct {
	st     store.Store
	logger *slog.Logger
}

// NewMerger creates a merger over the given store.
func NewMerger(st store.Store, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{st: st, logger: logger}
}

// Merge folds loserID into winnerID: the loser's name and aliases become
// winner aliases, its attributes fill gaps in the winner's, its
// relationships are carried over (dropping duplicate hints between the
// pair), and the loser is deleted. Both entries must belong to projectID
// and share a type.
func (m *Merger) Merge(ctx context.Context, projectID, winnerID, loserID string) (*models.CodexEntry, error) {
	if winnerID == loserID {
		return nil, fmt.Errorf("codex merge: winner and loser are the same entry")
	}

	winner, err := m.st.GetCodexEntry(ctx, winnerID)
	if err != nil {
		return nil, fmt.Errorf("codex merge: loading winner: %w", err)
	}
	loser, err := m.st.GetCodexEntry(ctx, loserID)
	if err != nil {
		return nil, fmt.Errorf("codex merge: loading loser: %w", err)
	}
	if winner.ProjectID != projectID || loser.ProjectID != projectID {
		return nil, fmt.Errorf("codex merge: entries do not belong to project %s", projectID)
	}
	if winner.Type != loser.Type {
		return nil, fmt.Errorf("codex merge: type mismatch (%s vs %s)", winner.Type, loser.Type)
	}

	winner.Aliases = mergeAliases(winner.Name, winner.Aliases, loser.Name, loser.Aliases)

	if winner.Description == "" {
		winner.Description = loser.Description
	}

	for k, v := range loser.Attributes {
		if _, ok := winner.Attributes[k]; !ok {
			if winner.Attributes == nil {
				winner.Attributes = make(map[string]string)
			}
			winner.Attributes[k] = v
		}
	}

	winner.Relationships = mergeRelationships(winner, loser)
	winner.Tags = mergeStrings(winner.Tags, loser.Tags)

	if err := m.st.PutCodexEntry(ctx, *winner); err != nil {
		return nil, fmt.Errorf("codex merge: saving winner: %w", err)
	}
	if err := m.st.DeleteCodexEntry(ctx, loserID); err != nil {
		return nil, fmt.Errorf("codex merge: deleting loser: %w", err)
	}

	m.logger.Info("merged codex entries",
		"project_id", projectID,
		"winner", winner.Name,
		"loser", loser.Name)
	return winner, nil
}

// mergeAliases adds the loser's name and aliases to the winner's alias
// list, deduplicated case-insensitively against the winner's own name.
func mergeAliases(winnerName string, existing []string, loserName string, loserAliases []string) []string {
	out := append([]string(nil), existing...)
	seen := make(map[string]bool, len(out)+1)
	seen[strings.ToLower(strings.TrimSpace(winnerName))] = true
	for _, a := range out {
		seen[strings.ToLower(a)] = true
	}
	for _, a := range append([]string{loserName}, loserAliases...) {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(a))
	}
	return out
}

// mergeRelationships combines both entries' relationships, dropping the
// resolved possible-duplicate hints between the merged pair.
func mergeRelationships(winner, loser *models.CodexEntry) []models.Relationship {
	var out []models.Relationship
	keep := func(r models.Relationship, otherName string) bool {
		return !(r.Kind == "possible-duplicate" && strings.EqualFold(r.Target, otherName))
	}
	for _, r := range winner.Relationships {
		if keep(r, loser.Name) {
			out = append(out, r)
		}
	}
	for _, r := range loser.Relationships {
		if keep(r, winner.Name) {
			out = append(out, r)
		}
	}
	return out
}

func mergeStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
