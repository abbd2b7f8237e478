package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("stats: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("Projects:      %d\n", stats.TotalProjects)
			fmt.Printf("Codex entries: %d\n", stats.TotalCodex)
			if len(stats.CodexByType) > 0 {
				types := make([]string, 0, len(stats.CodexByType))
				for t := range stats.CodexByType {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Printf("  %-12s %d\n", t+":", stats.CodexByType[t])
				}
			}
			fmt.Printf("Chapters:      %d\n", stats.TotalChapters)
			fmt.Printf("Scenes:        %d\n", stats.TotalScenes)
			return nil
		},
	}
}
