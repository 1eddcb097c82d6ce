// Package pipeline orchestrates one end-to-end run: acquire the three source
// datasets, normalize them, resolve missing boroughs, aggregate per borough,
// persist the results, and optionally publish the combined summaries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stoopdata/nyc-collision-etl/internal/adapter/opendata"
	"github.com/stoopdata/nyc-collision-etl/internal/config"
	"github.com/stoopdata/nyc-collision-etl/internal/domain"
	"github.com/stoopdata/nyc-collision-etl/internal/observability"
)

// Fetcher retrieves a raw source table, downloading it if not already cached.
type Fetcher interface {
	Fetch(ctx context.Context, src opendata.Source) (*domain.RawTable, error)
}

// Store replaces whole tables in the relational store.
type Store interface {
	ReplaceCollisions(ctx context.Context, records []domain.CollisionRecord) error
	ReplacePopulation(ctx context.Context, records []domain.PopulationRecord) error
	ReplaceSummary(ctx context.Context, summaries []domain.CombinedSummary) error
}

// SummaryPublisher emits the combined summaries to a downstream consumer.
type SummaryPublisher interface {
	PublishSummaries(ctx context.Context, summaries []domain.CombinedSummary) error
}

// Pipeline wires the acquisition, transformation, and persistence stages.
type Pipeline struct {
	cfg       *config.Config
	fetcher   Fetcher
	store     Store
	publisher SummaryPublisher // nil when publishing is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability. publisher
// may be nil, in which case the publish stage is skipped.
func New(cfg *config.Config, f Fetcher, s Store, p SummaryPublisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		store:     s,
		publisher: p,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed a run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one complete ETL pass. It returns the first error from any
// stage; the relational store is only written after every upstream stage
// succeeded, so a failed run never leaves partial tables behind.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline run started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	err := p.run(ctx)
	if err != nil {
		p.metrics.Runs.WithLabelValues("failure").Inc()
		return err
	}
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.ready.Store(true)
	p.logger.Info("pipeline run finished")
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	collisions, population, streets, err := p.acquire(ctx)
	if err != nil {
		return err
	}

	collisionRecords, populationRecords, err := p.normalize(collisions, population)
	if err != nil {
		return err
	}

	if err := p.resolve(collisionRecords, streets); err != nil {
		return err
	}

	combined := p.aggregate(collisionRecords, populationRecords)

	if err := p.persist(ctx, collisionRecords, populationRecords, combined); err != nil {
		return err
	}

	return p.publish(ctx, combined)
}

// acquire fetches the three source tables concurrently. The first error wins;
// remaining fetches are cancelled through the shared context.
func (p *Pipeline) acquire(ctx context.Context) (collisions, population, streets *domain.RawTable, err error) {
	defer p.observeStage("acquire")()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sources := []struct {
		src  opendata.Source
		dest **domain.RawTable
	}{
		{opendata.Source{Name: "collisions", URL: p.cfg.CollisionsURL, Filename: "collisions.csv"}, &collisions},
		{opendata.Source{Name: "population", URL: p.cfg.PopulationURL, Filename: "population.csv"}, &population},
		{opendata.Source{Name: "streets", URL: p.cfg.StreetsURL, Filename: "streets.zip", ZipMember: p.cfg.StreetsZipMember}, &streets},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, s := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, fetchErr := p.fetcher.Fetch(ctx, s.src)
			mu.Lock()
			defer mu.Unlock()
			if fetchErr != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("fetch %s: %w", s.src.Name, fetchErr)
					cancel()
				}
				return
			}
			*s.dest = table
			p.metrics.RowsExtracted.WithLabelValues(s.src.Name).Add(float64(len(table.Rows)))
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, nil, nil, firstErr
	}
	return collisions, population, streets, nil
}

func (p *Pipeline) normalize(collisions, population *domain.RawTable) ([]domain.CollisionRecord, []domain.PopulationRecord, error) {
	defer p.observeStage("normalize")()

	collisionRecords, cStats, err := domain.CleanCollisions(collisions, p.cfg.KilledColumns, p.cfg.InjuredColumns, p.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("clean collisions: %w", err)
	}
	p.metrics.RowsDropped.WithLabelValues("collisions", "duplicate").Add(float64(cStats.Duplicates))
	p.metrics.RowsDropped.WithLabelValues("collisions", "invalid_date").Add(float64(cStats.InvalidDates))
	p.logger.Info("collisions normalized",
		"input", cStats.Input,
		"duplicates", cStats.Duplicates,
		"invalid_dates", cStats.InvalidDates,
		"kept", cStats.Kept,
	)

	populationRecords, pStats, err := domain.CleanPopulation(population)
	if err != nil {
		return nil, nil, fmt.Errorf("clean population: %w", err)
	}
	p.metrics.RowsDropped.WithLabelValues("population", "duplicate").Add(float64(pStats.Duplicates))
	p.metrics.RowsDropped.WithLabelValues("population", "invalid_value").Add(float64(pStats.InvalidValues + pStats.UnknownBorough))
	p.logger.Info("population normalized",
		"input", pStats.Input,
		"duplicates", pStats.Duplicates,
		"invalid_values", pStats.InvalidValues,
		"unknown_boroughs", pStats.UnknownBorough,
		"kept", pStats.Kept,
	)

	return collisionRecords, populationRecords, nil
}

func (p *Pipeline) resolve(records []domain.CollisionRecord, streets *domain.RawTable) error {
	defer p.observeStage("resolve")()

	index, err := domain.BuildStreetIndex(streets, p.cfg.StreetNameColumn, p.cfg.StreetBoroughColumn)
	if err != nil {
		return fmt.Errorf("build street index: %w", err)
	}

	stats := domain.ResolveBoroughs(records, index)
	p.metrics.BoroughsResolved.WithLabelValues("source").Add(float64(stats.Source))
	p.metrics.BoroughsResolved.WithLabelValues("direct").Add(float64(stats.Direct))
	p.metrics.BoroughsResolved.WithLabelValues("inferred").Add(float64(stats.Inferred))
	p.metrics.UnresolvedBoroughs.Set(float64(stats.Unresolved))

	p.logger.Info("boroughs resolved",
		"streets_indexed", index.Len(),
		"from_source", stats.Source,
		"direct", stats.Direct,
		"inferred", stats.Inferred,
		"unresolved", stats.Unresolved,
	)
	if stats.Unresolved > 0 {
		p.logger.Warn("collision rows remain without a borough", "count", stats.Unresolved)
	}
	return nil
}

func (p *Pipeline) aggregate(collisions []domain.CollisionRecord, population []domain.PopulationRecord) []domain.CombinedSummary {
	defer p.observeStage("aggregate")()

	summaries := domain.SummarizeCollisions(collisions)
	combined := domain.Combine(population, summaries)
	p.logger.Info("summaries aggregated", "boroughs", len(combined))
	return combined
}

func (p *Pipeline) persist(ctx context.Context, collisions []domain.CollisionRecord, population []domain.PopulationRecord, combined []domain.CombinedSummary) error {
	defer p.observeStage("persist")()

	if err := p.store.ReplaceCollisions(ctx, collisions); err != nil {
		return fmt.Errorf("store collisions: %w", err)
	}
	p.metrics.RowsLoaded.WithLabelValues("collisions").Add(float64(len(collisions)))

	if err := p.store.ReplacePopulation(ctx, population); err != nil {
		return fmt.Errorf("store population: %w", err)
	}
	p.metrics.RowsLoaded.WithLabelValues("population").Add(float64(len(population)))

	if err := p.store.ReplaceSummary(ctx, combined); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	p.metrics.RowsLoaded.WithLabelValues("borough_summary").Add(float64(len(combined)))

	return nil
}

func (p *Pipeline) publish(ctx context.Context, combined []domain.CombinedSummary) error {
	if p.publisher == nil {
		return nil
	}
	defer p.observeStage("publish")()

	if err := p.publisher.PublishSummaries(ctx, combined); err != nil {
		return fmt.Errorf("publish summaries: %w", err)
	}
	p.logger.Info("summaries published", "count", len(combined))
	return nil
}

// observeStage records the stage duration histogram when the returned func runs.
func (p *Pipeline) observeStage(stage string) func() {
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
