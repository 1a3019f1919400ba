// Package pipeline orchestrates the ingestion and submission phases.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"routerwatch/internal/metrics"
	"routerwatch/internal/news"
)

// noSummary is the placeholder stored when no usable summary exists.
const noSummary = "無摘要"

// snippetPrefix marks descriptions that fell back to the search snippet.
const snippetPrefix = "[Google摘要] "

// Capture timestamps are wall-clock time in the dataset's home zone.
var captureZone = time.FixedZone("UTC+8", 8*60*60)

// Harvester runs one search task.
type Harvester interface {
	Harvest(ctx context.Context, task news.SearchTask) ([]news.Candidate, error)
}

// ContentReader loads one candidate URL.
type ContentReader interface {
	Read(ctx context.Context, url string) (string, error)
}

// DateNormalizer canonicalizes raw date text.
type DateNormalizer interface {
	Normalize(raw string) string
}

// IngestConfig tunes the ingestion phase.
type IngestConfig struct {
	Tasks          []news.SearchTask
	PerSourceLimit int
	SourcePause    time.Duration
}

// Ingestion discovers, enriches and persists candidate items.
type Ingestion struct {
	harvester Harvester
	reader    ContentReader
	dates     DateNormalizer
	repo      news.Repository
	clock     news.Clock
	logger    *zap.Logger
	cfg       IngestConfig

	capturedAt string
}

// NewIngestion wires the ingestion phase.
func NewIngestion(
	harvester Harvester,
	reader ContentReader,
	dates DateNormalizer,
	repo news.Repository,
	clock news.Clock,
	logger *zap.Logger,
	cfg IngestConfig,
) *Ingestion {
	if cfg.PerSourceLimit <= 0 {
		cfg.PerSourceLimit = 5
	}
	return &Ingestion{
		harvester: harvester,
		reader:    reader,
		dates:     dates,
		repo:      repo,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes every configured search task, enriches the surviving
// candidates and hands the cleaned batch to persistence. A failing
// source is logged and skipped; only a storage failure aborts the run.
func (p *Ingestion) Run(ctx context.Context) error {
	var candidates []news.Candidate
	for i, task := range p.cfg.Tasks {
		batch, err := p.harvester.Harvest(ctx, task)
		if err != nil {
			p.logger.Error("harvest failed",
				zap.String("category", task.Category), zap.Error(err))
		} else {
			if len(batch) > p.cfg.PerSourceLimit {
				batch = batch[:p.cfg.PerSourceLimit]
			}
			metrics.AddCandidates(task.Category, len(batch))
			candidates = append(candidates, batch...)
		}
		if i < len(p.cfg.Tasks)-1 {
			if err := pause(ctx, p.cfg.SourcePause); err != nil {
				return err
			}
		}
	}

	if len(candidates) == 0 {
		p.logger.Warn("no candidates found")
		return nil
	}
	p.logger.Info("harvest complete, reading article contents",
		zap.Int("candidates", len(candidates)))

	p.capturedAt = captureTimestamp(p.clock.Now())
	items := make([]news.Item, 0, len(candidates))
	for _, candidate := range candidates {
		item, ok := p.enrich(ctx, candidate)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		p.logger.Warn("every candidate was excluded during enrichment")
		return nil
	}

	inserted, err := p.repo.Insert(ctx, items)
	if err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}
	metrics.AddInserted(inserted)
	p.logger.Info("ingestion finished",
		zap.Int("cleaned", len(items)),
		zap.Int("inserted", inserted),
	)
	return nil
}

// CapturedAt returns the shared capture timestamp of the last harvested
// batch, or empty when no batch has been ingested yet. The timestamp is
// never persisted; a same-run submission sweep carries it to the form.
func (p *Ingestion) CapturedAt() string {
	return p.capturedAt
}

// enrich turns a candidate into a persistable item. Reader skip
// signals exclude the candidate entirely.
func (p *Ingestion) enrich(ctx context.Context, candidate news.Candidate) (news.Item, bool) {
	text, err := p.reader.Read(ctx, candidate.URL)
	if err != nil {
		p.logger.Info("candidate excluded",
			zap.String("url", candidate.URL), zap.Error(err))
		return news.Item{}, false
	}

	description := noSummary
	switch {
	case utf8.RuneCountInString(text) > 30:
		description = text
	case candidate.Snippet != "":
		description = snippetPrefix + candidate.Snippet
	}

	return news.Item{
		Title:       strings.TrimSpace(candidate.Title),
		URL:         candidate.URL,
		PublishDate: p.dates.Normalize(candidate.DateRaw),
		Source:      candidate.Category,
		Description: description,
		Status:      news.StatusNew,
	}, true
}

func captureTimestamp(t time.Time) string {
	return t.In(captureZone).Format("2006-01-02 15:04:05")
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
