package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Browse and manage local projects",
	}
	cmd.AddCommand(projectsListCmd(), projectsShowCmd(), projectsDeleteCmd())
	return cmd
}

func projectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("projects list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			projects, err := st.ListProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("projects list: %w", err)
			}
			if len(projects) == 0 {
				fmt.Println("No projects yet. Run `storyloom ingest <folder>` to create one.")
				return nil
			}
			for _, p := range projects {
				fmt.Printf("%s  %-30s  %-12s  %s\n",
					p.ID, truncate(p.Name, 30), p.Genre, p.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func projectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project with its chapters and codex counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("projects show: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			p, err := st.GetProject(ctx, args[0])
			if err != nil {
				return fmt.Errorf("projects show: %w", err)
			}
			chapters, err := st.QueryChapters(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("projects show: %w", err)
			}
			codex, err := st.QueryCodexEntries(ctx, p.ID, "")
			if err != nil {
				return fmt.Errorf("projects show: %w", err)
			}

			fmt.Printf("%s (%s)\n", p.Name, p.ID)
			fmt.Printf("Genre: %s  Status: %s  Created: %s\n",
				p.Genre, p.Status, p.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Printf("Codex entries: %d\n", len(codex))
			fmt.Printf("Chapters: %d\n", len(chapters))
			for _, c := range chapters {
				title := c.Title
				if title == "" {
					title = "(unplaced)"
				}
				fmt.Printf("  %2d  %-30s  %d scene(s)\n", c.Number, truncate(title, 30), len(c.SceneIDs))
			}
			return nil
		},
	}
}

func projectsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and all its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("projects delete: refusing without --force")
			}
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("projects delete: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if err := st.DeleteProject(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("projects delete: %w", err)
			}
			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}
