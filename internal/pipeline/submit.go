package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"routerwatch/internal/browser"
	"routerwatch/internal/form"
	"routerwatch/internal/metrics"
	"routerwatch/internal/news"
)

// FormDriver submits one item to the intake form.
type FormDriver interface {
	Submit(ctx context.Context, sub form.Submission) error
}

// SubmitConfig tunes the submission phase.
type SubmitConfig struct {
	ItemPause time.Duration
	Topic     string
	// CapturedAt is the shared capture timestamp of a batch harvested
	// earlier in the same run. When empty, each item is stamped with
	// the submission moment instead.
	CapturedAt string
}

// Submission drains pending items through the intake form, one
// browser session per item.
type Submission struct {
	repo      news.Repository
	factory   browser.Factory
	newDriver func(browser.Session) FormDriver
	publisher news.Publisher
	clock     news.Clock
	logger    *zap.Logger
	cfg       SubmitConfig
}

// NewSubmission wires the submission phase. publisher may be nil when
// no event topic is configured.
func NewSubmission(
	repo news.Repository,
	factory browser.Factory,
	newDriver func(browser.Session) FormDriver,
	publisher news.Publisher,
	clock news.Clock,
	logger *zap.Logger,
	cfg SubmitConfig,
) *Submission {
	return &Submission{
		repo:      repo,
		factory:   factory,
		newDriver: newDriver,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run submits every pending item in order. Individual failures are
// recorded against the item and never stop the sweep; only losing the
// database or the context aborts.
func (p *Submission) Run(ctx context.Context) error {
	items, err := p.repo.Pending(ctx)
	if err != nil {
		return fmt.Errorf("load pending items: %w", err)
	}
	if len(items) == 0 {
		p.logger.Info("nothing pending")
		return nil
	}
	p.logger.Info("starting submissions", zap.Int("pending", len(items)))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.submitOne(ctx, item); err != nil {
			return err
		}
		if i < len(items)-1 {
			if err := pause(ctx, p.cfg.ItemPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Submission) submitOne(ctx context.Context, item news.Item) error {
	sess, err := p.factory.NewSession(ctx)
	if err != nil {
		// The session belongs to this item alone, so losing it counts
		// against this item, not the sweep.
		return p.recordFailure(ctx, item, fmt.Errorf("open browser session: %w", err))
	}
	defer sess.Close()

	capturedAt := p.cfg.CapturedAt
	if capturedAt == "" {
		capturedAt = captureTimestamp(p.clock.Now())
	}

	submitErr := p.newDriver(sess).Submit(ctx, form.Submission{
		Title:       item.Title,
		URL:         item.URL,
		PublishDate: item.PublishDate,
		Source:      item.Source,
		Description: item.Description,
		CapturedAt:  capturedAt,
	})
	if submitErr != nil {
		return p.recordFailure(ctx, item, submitErr)
	}

	if err := p.repo.MarkSubmitted(ctx, item.ID); err != nil {
		return fmt.Errorf("mark item %d submitted: %w", item.ID, err)
	}
	metrics.ObserveSubmission("ok")
	p.logger.Info("item submitted",
		zap.Int64("id", item.ID), zap.String("title", item.Title))
	p.publish(ctx, item, news.StatusSubmitted)
	return nil
}

func (p *Submission) recordFailure(ctx context.Context, item news.Item, cause error) error {
	metrics.ObserveSubmission("failed")
	result, err := p.repo.RecordFailure(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("record failure for item %d: %w", item.ID, err)
	}
	if result.Status == news.StatusError {
		p.logger.Error("item abandoned after repeated failures",
			zap.Int64("id", item.ID),
			zap.Int("fail_count", result.FailCount),
			zap.Error(cause),
		)
		p.publish(ctx, item, news.StatusError)
		return nil
	}
	p.logger.Warn("submission failed, will retry next run",
		zap.Int64("id", item.ID),
		zap.Int("fail_count", result.FailCount),
		zap.Error(cause),
	)
	return nil
}

// publish emits a status event for downstream consumers. Event
// delivery is best effort and never fails the run.
func (p *Submission) publish(ctx context.Context, item news.Item, status news.Status) {
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"id":           item.ID,
		"title":        item.Title,
		"url":          item.URL,
		"status":       string(status),
		"submitted_at": captureTimestamp(p.clock.Now()),
	}
	id, err := p.publisher.Publish(ctx, p.cfg.Topic, payload)
	if err != nil {
		p.logger.Warn("event publish failed",
			zap.Int64("id", item.ID), zap.Error(err))
		return
	}
	p.logger.Debug("event published", zap.String("message_id", id))
}
