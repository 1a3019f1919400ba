package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"routerwatch/internal/api"
	"routerwatch/internal/browser"
	"routerwatch/internal/clock/system"
	"routerwatch/internal/config"
	"routerwatch/internal/dates"
	"routerwatch/internal/form"
	"routerwatch/internal/harvest"
	"routerwatch/internal/metrics"
	"routerwatch/internal/news"
	"routerwatch/internal/notify"
	"routerwatch/internal/pipeline"
	"routerwatch/internal/reader"
	"routerwatch/internal/relevance"
	"routerwatch/internal/store"
	"routerwatch/internal/storage/gcs"
	"routerwatch/internal/storage/local"
	"routerwatch/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full cycle: ingest new items, then submit pending ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		app, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.close()

		sup := supervisor.New(cfg.Deadline(), logger)
		runErr := sup.Run(cmd.Context(), func(ctx context.Context) error {
			if err := app.ingest(ctx); err != nil {
				return err
			}
			return app.submit(ctx)
		})
		if runErr != nil {
			metrics.ObserveRun("failed")
			return runErr
		}
		metrics.ObserveRun("ok")
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Harvest, enrich and persist new items without submitting",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		app, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.close()

		sup := supervisor.New(cfg.Deadline(), logger)
		return sup.Run(cmd.Context(), app.ingest)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit pending items to the intake form",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		app, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.close()

		sup := supervisor.New(cfg.Deadline(), logger)
		return sup.Run(cmd.Context(), app.submit)
	},
}

func init() {
	rootCmd.AddCommand(runCmd, ingestCmd, submitCmd)
}

// app holds the long-lived collaborators one CLI invocation shares.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    string
	repo     *store.Repository
	factory  *browser.ChromeFactory
	clock    *system.Clock
	blobs    news.BlobStore
	pub      news.Publisher
	cleanups []func()

	// batchCapturedAt is set by a same-run ingest phase so the
	// submission phase stamps the form with the harvest moment.
	batchCapturedAt string
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	runID := uuid.NewString()
	a := &app{
		cfg:    cfg,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
		clock:  system.New(),
		factory: browser.NewChromeFactory(browser.Config{
			UserAgent:  cfg.Browser.UserAgent,
			NavTimeout: cfg.NavTimeout(),
		}),
	}

	repo, err := store.New(ctx, store.Config{
		DSN:           cfg.DB.DSN,
		Table:         cfg.DB.Table,
		FailThreshold: cfg.Submit.FailThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.repo = repo
	a.cleanups = append(a.cleanups, repo.Close)

	if err := a.buildBlobStore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildPublisher(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.startServer()
	return a, nil
}

func (a *app) buildBlobStore(ctx context.Context) error {
	switch a.cfg.Screenshot.Backend {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("build storage client: %w", err)
		}
		a.cleanups = append(a.cleanups, func() { client.Close() }) //nolint:errcheck
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Screenshot.GCSBucket})
		if err != nil {
			return err
		}
		a.blobs = blobs
	default:
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Screenshot.LocalDir})
		if err != nil {
			return err
		}
		a.blobs = blobs
	}
	return nil
}

func (a *app) buildPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("build pubsub client: %w", err)
	}
	a.cleanups = append(a.cleanups, func() { client.Close() }) //nolint:errcheck
	pub, err := notify.NewPubSub(client)
	if err != nil {
		return err
	}
	a.pub = pub
	return nil
}

// startServer exposes /healthz and /metrics while the run lasts. The
// listener dies with the process, so there is no graceful shutdown.
func (a *app) startServer() {
	if !a.cfg.Server.Enabled {
		return
	}
	srv := api.NewServer(a.logger)
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	go func() {
		a.logger.Info("debug server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
			a.logger.Warn("debug server stopped", zap.Error(err))
		}
	}()
}

func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func (a *app) ingest(ctx context.Context) error {
	sess, err := a.factory.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}

	filter := relevance.New(
		a.cfg.Relevance.BrandTerms,
		a.cfg.Relevance.ProductTerms,
		a.cfg.Relevance.SecurityTerms,
	)
	harvester := harvest.New(a.factory, sess, filter, a.logger, a.cfg.NavTimeout())
	rd := reader.New(a.factory, sess, a.logger, a.cfg.NavTimeout())
	// Either collaborator may replace the shared session after a crash;
	// close whatever each holds at the end. Closing a session twice is
	// harmless.
	defer func() {
		harvester.Session().Close()
		rd.Session().Close()
	}()

	p := pipeline.NewIngestion(harvester, rd, dates.New(a.clock), a.repo, a.clock, a.logger,
		pipeline.IngestConfig{
			Tasks:          a.cfg.Search.Tasks,
			PerSourceLimit: a.cfg.Search.PerSourceLimit,
			SourcePause:    time.Duration(a.cfg.Search.SourcePauseSeconds) * time.Second,
		})
	if err := p.Run(ctx); err != nil {
		return err
	}
	a.batchCapturedAt = p.CapturedAt()
	return nil
}

func (a *app) submit(ctx context.Context) error {
	formCfg := form.Config{
		URL:              a.cfg.Form.URL,
		LenientSuccess:   a.cfg.Form.LenientSuccess,
		SubmitWait:       time.Duration(a.cfg.Form.SubmitWaitSeconds) * time.Second,
		NavTimeout:       a.cfg.NavTimeout(),
		ScreenshotPrefix: "run-" + a.runID,
	}
	newDriver := func(sess browser.Session) pipeline.FormDriver {
		return form.New(sess, a.blobs, a.clock, a.logger, formCfg)
	}

	p := pipeline.NewSubmission(a.repo, a.factory, newDriver, a.pub, a.clock, a.logger,
		pipeline.SubmitConfig{
			ItemPause:  time.Duration(a.cfg.Submit.ItemPauseSeconds) * time.Second,
			Topic:      a.cfg.PubSub.TopicName,
			CapturedAt: a.batchCapturedAt,
		})
	return p.Run(ctx)
}
