package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storyloom/storyloom/internal/codex"
	"github.com/storyloom/storyloom/internal/models"
)

func codexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codex",
		Short: "Browse and maintain a project's codex",
	}
	cmd.AddCommand(codexListCmd(), codexMergeCmd())
	return cmd
}

func codexListCmd() *cobra.Command {
	var (
		projectID string
		typ       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's codex entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("codex list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			var ct models.CodexType
			if typ != "" {
				ct = models.CodexType(typ)
				if !ct.IsValid() {
					return fmt.Errorf("codex list: invalid type %q", typ)
				}
			}

			entries, err := st.QueryCodexEntries(cmd.Context(), projectID, ct)
			if err != nil {
				return fmt.Errorf("codex list: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No codex entries.")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-10s  %s", e.ID, e.Type, e.Name)
				if len(e.Aliases) > 0 {
					line += fmt.Sprintf(" (aka %s)", strings.Join(e.Aliases, ", "))
				}
				if role, ok := e.Attributes["role"]; ok && role != string(models.RoleUnknown) {
					line += fmt.Sprintf(" [%s]", role)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project ID")
	cmd.Flags().StringVar(&typ, "type", "", "filter by type: character, location, concept, item")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func codexMergeCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "merge <winner-id> <loser-id>",
		Short: "Merge two codex entries that refer to the same entity",
		Long: `Folds the loser entry into the winner: the loser's name and aliases
become winner aliases, attributes fill gaps, and the loser is deleted.
Duplicates flagged during ingestion are never merged automatically;
this is the explicit manual resolution.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("codex merge: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			merger := codex.NewMerger(st, logger)
			winner, err := merger.Merge(cmd.Context(), projectID, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Merged into %s", winner.Name)
			if len(winner.Aliases) > 0 {
				fmt.Printf(" (aka %s)", strings.Join(winner.Aliases, ", "))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
