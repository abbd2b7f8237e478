package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func chaptersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters",
		Short: "Inspect a project's chapter structure",
	}
	cmd.AddCommand(chaptersListCmd())
	return cmd
}

func chaptersListCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's chapters with scene and word counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("chapters list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			chapters, err := st.QueryChapters(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("chapters list: %w", err)
			}
			if len(chapters) == 0 {
				fmt.Println("No chapters.")
				return nil
			}
			for _, ch := range chapters {
				scenes, err := st.QueryScenes(cmd.Context(), projectID, ch.ID)
				if err != nil {
					return fmt.Errorf("chapters list: scenes for %s: %w", ch.ID, err)
				}
				words := 0
				drafted := 0
				for _, sc := range scenes {
					words += sc.WordCount
					if sc.Status != "planned" {
						drafted++
					}
				}
				fmt.Printf("%-3d %-30s  %d scene(s), %d drafted, %d words\n",
					ch.Number, ch.Title, len(scenes), drafted, words)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
