package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storyloom/storyloom/internal/classify"
	"github.com/storyloom/storyloom/internal/consolidate"
	"github.com/storyloom/storyloom/internal/dialogue"
	"github.com/storyloom/storyloom/internal/ingest"
	"github.com/storyloom/storyloom/internal/loader"
	"github.com/storyloom/storyloom/internal/materialize"
	"github.com/storyloom/storyloom/internal/metrics"
	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/internal/store"
)

func ingestCmd() *cobra.Command {
	var (
		projectName string
		concurrency int
		yes         bool
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <folder>",
		Short: "Ingest a folder of manuscript files into a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			dir := args[0]

			if cfg.Claude.APIKey == "" {
				slog.Error("ANTHROPIC_API_KEY is not set; cannot call Claude API")
				os.Exit(1)
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("ingest: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if concurrency <= 0 {
				concurrency = cfg.Ingest.Concurrency
			}
			name := projectName
			if name == "" {
				name = filepath.Base(filepath.Clean(dir))
			}

			if err := runIngestion(ctx, st, logger, dir, name, concurrency, yes); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			w, err := loader.NewWatcher(dir, logger)
			if err != nil {
				return fmt.Errorf("ingest: starting watcher: %w", err)
			}
			defer func() { _ = w.Close() }()

			fmt.Println("Watching for changes. Ctrl-C to stop.")
			for range w.Changes(ctx) {
				if err := runIngestion(ctx, st, logger, dir, name, concurrency, yes); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					logger.Error("re-ingestion failed", "error", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "", "name for the created project (default: folder name)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "files classified at once (default: from config)")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip clarifying questions, accepting empty answers")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep watching the folder and re-ingest on changes")
	return cmd
}

// runIngestion executes one full pipeline pass over dir and materializes
// the result.
func runIngestion(ctx context.Context, st store.Store, logger *slog.Logger, dir, projectName string, concurrency int, yes bool) error {
	ld := loader.NewLoader(logger)
	files, err := ld.ReadFolder(dir)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	gw := newGateway(logger)
	classifier := classify.NewClassifier(gw, cfg.Claude.Model, cfg.Ingest.ContentBudget, logger)
	reasoner := consolidate.NewReasoner(gw, cfg.Claude.Model, logger)
	pipeline := ingest.NewPipeline(classifier, reasoner, concurrency, logger)

	analysis, err := pipeline.Run(ctx, files, func(done, total int, name string) {
		fmt.Printf("Analyzing file %d of %d: %s\n", done, total, name)
	})
	if errors.Is(err, ingest.ErrNoTextFiles) {
		fmt.Printf("No text files found in %s — nothing to ingest.\n", dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	printAnalysisSummary(analysis)

	ctrl := dialogue.NewController(logger)
	ctrl.Begin(analysis.Questions)
	if !yes {
		if err := askQuestions(ctrl); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	} else {
		for _, q := range ctrl.Remaining() {
			_ = ctrl.Answer(q.ID, "")
		}
	}

	mat := materialize.NewMaterializer(st, cfg.Ingest.CharacterCap, cfg.Ingest.LocationCap, logger)
	runID := materialize.RunID(cfg.Store.DataDir, projectName)
	projectID, err := mat.Materialize(ctx, *analysis, ctrl.Answers(), projectName, runID)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	metrics.Inc(metrics.ProjectsMaterialized)

	fmt.Printf("Created project %s (%s)\n", projectName, projectID)
	return nil
}

// askQuestions walks the dialogue controller over stdin. Closed-form
// questions render their options as numbered choices; a number selects the
// literal option string, anything else is stored as typed.
func askQuestions(ctrl *dialogue.Controller) error {
	if ctrl.Done() {
		return nil
	}
	reader := bufio.NewReader(os.Stdin)

	for !ctrl.Done() {
		q := ctrl.Current()
		if q == nil {
			break
		}

		fmt.Printf("\n[%s] %s\n", q.Type, q.Question)
		if q.Context != "" {
			fmt.Printf("  (%s)\n", q.Context)
		}
		for i, opt := range q.Options {
			fmt.Printf("  %d) %s\n", i+1, opt)
		}
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading answer: %w", err)
		}
		answer := strings.TrimSpace(line)

		if len(q.Options) > 0 {
			if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(q.Options) {
				answer = q.Options[n-1]
			}
		}

		if err := ctrl.Answer(q.ID, answer); err != nil {
			return err
		}
	}
	return nil
}

func printAnalysisSummary(analysis *models.IngestionAnalysis) {
	fmt.Printf("\nGenre guess: %s\n", analysis.Genre)
	fmt.Printf("Total words: %d (~%d%% of a novel)\n",
		analysis.TotalWords, analysis.Structure.EstimatedCompletion)
	fmt.Printf("Files: %d, characters: %d, locations: %d, concepts: %d, chapters: %d\n",
		len(analysis.Files), len(analysis.Characters), len(analysis.Locations),
		len(analysis.Concepts), len(analysis.Structure.Chapters))
	for _, d := range analysis.PossibleDuplicates {
		fmt.Printf("Possible duplicate: %s — %s\n",
			strings.Join(d.Items, " / "), truncate(d.Reason, 100))
	}
}
