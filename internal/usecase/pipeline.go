package usecase

import (
	"context"
	"errors"
	"log/slog"
)

// RunReport lists the ids each stage touched during a combined run.
type RunReport struct {
	Ingested []int64 `json:"ingested"`
	Scraped  []int64 `json:"scraped"`
	Enriched []int64 `json:"enriched"`
}

// Pipeline runs ingest, scrape and enrich one after another.
type Pipeline struct {
	ingest Stage
	scrape Stage
	enrich Stage
	logger *slog.Logger
}

// NewPipeline runs ingest, scrape and enrich in that order.
func NewPipeline(ingest, scrape, enrich Stage, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{ingest: ingest, scrape: scrape, enrich: enrich, logger: logger}
}

// Run executes every stage even when an earlier one fails. The returned
// error joins the stage failures.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	var (
		report RunReport
		errs   []error
	)
	for _, step := range []struct {
		stage Stage
		out   *[]int64
	}{
		{p.ingest, &report.Ingested},
		{p.scrape, &report.Scraped},
		{p.enrich, &report.Enriched},
	} {
		if step.stage == nil {
			continue
		}
		ids, err := step.stage.Run(ctx)
		if err != nil {
			p.logger.Error("stage failed", "stage", step.stage.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		*step.out = ids
	}

	p.logger.Info("pipeline finished",
		"ingested", len(report.Ingested),
		"scraped", len(report.Scraped),
		"enriched", len(report.Enriched))
	return report, errors.Join(errs...)
}
