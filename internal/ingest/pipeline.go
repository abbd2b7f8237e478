// Package ingest orchestrates one ingestion run: classification across all
// files, local aggregation, and the consolidation pass. Data flows strictly
// forward; no stage re-enters an earlier one.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/storyloom/storyloom/internal/aggregate"
	"github.com/storyloom/storyloom/internal/classify"
	"github.com/storyloom/storyloom/internal/consolidate"
	"github.com/storyloom/storyloom/internal/metrics"
	"github.com/storyloom/storyloom/internal/models"
)

// ErrNoTextFiles is returned when the drop folder yields nothing readable.
// A user-facing condition, not a crash.
var ErrNoTextFiles = errors.New("no text files found to ingest")

// Progress is invoked once per file as classification begins. Calls are
// monotonic in done (1..total) but may arrive out of file order when the
// pool is wider than one.
type Progress func(done, total int, name string)

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	classifier  *classify.Classifier
	reasoner    *consolidate.Reasoner
	concurrency int
	logger      *slog.Logger
}

// NewPipeline creates a pipeline. concurrency bounds how many files are
// classified at once; 1 reproduces the original strictly sequential
// behavior and is the default for anything non-positive.
func NewPipeline(classifier *classify.Classifier, reasoner *consolidate.Reasoner, concurrency int, logger *slog.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:  classifier,
		reasoner:    reasoner,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run executes classification, aggregation, and consolidation over the
// dropped files and returns the completed analysis. Per-file classification
// failures degrade inside the classifier and never abort the run; only
// context cancellation stops it early. The result slice preserves input
// file order regardless of pool width.
func (p *Pipeline) Run(ctx context.Context, files []models.DroppedFile, progress Progress) (*models.IngestionAnalysis, error) {
	if len(files) == 0 {
		return nil, ErrNoTextFiles
	}

	metrics.Inc(metrics.IngestRuns)
	p.logger.Info("ingestion run starting", "files", len(files), "concurrency", p.concurrency)

	classified, err := p.classifyAll(ctx, files, progress)
	if err != nil {
		return nil, err
	}

	agg := aggregate.Aggregate(classified)
	p.logger.Info("aggregation complete",
		"characters", len(agg.Characters),
		"locations", len(agg.Locations),
		"concepts", len(agg.Concepts),
		"chapters", len(agg.Structure.Chapters),
		"total_words", agg.TotalWords)

	cons := p.reasoner.Consolidate(ctx, agg)

	return &models.IngestionAnalysis{
		Genre:              cons.Genre,
		TotalWords:         agg.TotalWords,
		Files:              classified,
		Characters:         agg.Characters,
		Locations:          agg.Locations,
		Concepts:           agg.Concepts,
		PossibleDuplicates: cons.PossibleDuplicates,
		Structure:          agg.Structure,
		Questions:          cons.Questions,
	}, nil
}

// classifyAll runs the classifier over every file with a bounded worker
// pool, writing results into a slice indexed by input position so ordering
// stays deterministic.
func (p *Pipeline) classifyAll(ctx context.Context, files []models.DroppedFile, progress Progress) ([]models.ClassifiedFile, error) {
	classified := make([]models.ClassifiedFile, len(files))
	var started atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := int(started.Add(1))
			if progress != nil {
				progress(n, len(files), files[i].Name)
			}

			cf := p.classifier.Classify(gctx, files[i])
			classified[i] = cf

			metrics.Inc(metrics.FilesClassified)
			if cf.Classification == models.FileClassUnknown && cf.Confidence == 0 {
				metrics.Inc(metrics.FilesDegraded)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classification interrupted: %w", err)
	}
	return classified, nil
}
