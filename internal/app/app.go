// Package app initializes and holds long-lived harvester services, acting as a
// dependency injection container for a single batch run.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/doc-harvester/internal/clock/system"
	"github.com/JakeFAU/doc-harvester/internal/config"
	"github.com/JakeFAU/doc-harvester/internal/crawler"
	"github.com/JakeFAU/doc-harvester/internal/delta"
	"github.com/JakeFAU/doc-harvester/internal/extract/ocr"
	pdfextract "github.com/JakeFAU/doc-harvester/internal/extract/pdf"
	collyfetcher "github.com/JakeFAU/doc-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/doc-harvester/internal/fingerprint"
	"github.com/JakeFAU/doc-harvester/internal/harvest"
	"github.com/JakeFAU/doc-harvester/internal/id/uuid"
	"github.com/JakeFAU/doc-harvester/internal/metadata"
	"github.com/JakeFAU/doc-harvester/internal/metrics"
	"github.com/JakeFAU/doc-harvester/internal/policy"
	"github.com/JakeFAU/doc-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/doc-harvester/internal/policy/robots"
	pubsubpublisher "github.com/JakeFAU/doc-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/doc-harvester/internal/record"
	"github.com/JakeFAU/doc-harvester/internal/storage"
	"github.com/JakeFAU/doc-harvester/internal/storage/gcs"
	"github.com/JakeFAU/doc-harvester/internal/storage/local"
	"github.com/JakeFAU/doc-harvester/internal/storage/postgres"
)

const shutdownTimeout = 5 * time.Second

// App holds the services of one harvest run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	index     *delta.Index
	harvester *harvest.Harvester
	metrics   *metrics.Server
	closers   []func()
}

// RunID returns the identifier attached to every log line of this run.
func (a *App) RunID() string {
	return a.runID
}

// Index exposes the delta index loaded from the records directory.
func (a *App) Index() *delta.Index {
	return a.index
}

// MetricsAddr returns the bound metrics address, or "" when the endpoint is disabled.
func (a *App) MetricsAddr() string {
	if a.metrics == nil {
		return ""
	}
	return a.metrics.Addr()
}

// New wires every service from cfg. Optional mirrors (GCS, Postgres, Pub/Sub)
// are only dialed when configured; a configured mirror that cannot be reached
// fails startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("Initializing harvester services...")

	a := &App{cfg: cfg, logger: logger, runID: runID}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	format, err := record.ParseFormat(cfg.Storage.RecordFormat)
	if err != nil {
		return nil, err
	}

	// 1. Output directories
	records, err := a.prepareOutputs()
	if err != nil {
		return nil, err
	}
	index, err := delta.Load(cfg.Storage.RecordsDir, logger.Named("delta"))
	if err != nil {
		return nil, fmt.Errorf("load delta index: %w", err)
	}
	a.index = index
	logger.Info("delta index loaded", zap.Int("known_documents", index.Len()))

	// 2. Crawl stack
	frontier, err := a.buildFrontier()
	if err != nil {
		return nil, err
	}

	// 3. Metadata extraction
	pipeline := a.buildPipeline()

	// 4. Optional mirrors
	deps := harvest.Deps{
		Hasher:    fingerprint.New(),
		Index:     index,
		Extractor: pipeline,
		Records:   records,
		Clock:     system.New(),
	}
	if err := a.attachMirrors(ctx, &deps); err != nil {
		return nil, err
	}

	processor, err := harvest.NewProcessor(harvest.ProcessorConfig{
		Format: format,
		Topic:  cfg.PubSub.Topic,
	}, deps, logger.Named("processor"))
	if err != nil {
		return nil, err
	}
	a.harvester, err = harvest.NewHarvester(frontier, processor, sources(cfg.Sources), runID, logger.Named("harvest"))
	if err != nil {
		return nil, err
	}

	// 5. Metrics endpoint
	if cfg.Metrics.ListenAddr != "" {
		a.metrics, err = metrics.Serve(cfg.Metrics.ListenAddr, logger.Named("metrics"))
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Harvester services initialized successfully.")
	return a, nil
}

func (a *App) prepareOutputs() (*local.BlobStore, error) {
	raw, err := local.New(local.Config{BaseDir: a.cfg.Storage.RawDir})
	if err != nil {
		return nil, fmt.Errorf("prepare raw dir: %w", err)
	}
	records, err := local.New(local.Config{BaseDir: a.cfg.Storage.RecordsDir})
	if err != nil {
		return nil, fmt.Errorf("prepare records dir: %w", err)
	}
	if a.cfg.Storage.CleanOnStart {
		a.logger.Warn("clearing output directories",
			zap.String("raw_dir", raw.BaseDir()),
			zap.String("records_dir", records.BaseDir()),
		)
		for _, store := range []*local.BlobStore{raw, records} {
			if err := store.Reset(); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

func (a *App) buildFrontier() (*crawler.Frontier, error) {
	cc := a.cfg.Crawler
	scope, err := ratelimit.ParseScope(cc.RateScope)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(ratelimit.Config{Delay: cc.Delay, Scope: scope})

	var robotsPolicy policy.RobotsPolicy = robots.AllowAll{}
	if cc.RespectRobots {
		robotsPolicy = robots.New(robots.Config{
			UserAgent:      cc.UserAgent,
			ConnectTimeout: cc.ConnectTimeout,
			ReadTimeout:    cc.ReadTimeout,
			FailOpen:       cc.RobotsFailOpen,
		}, limiter, a.logger.Named("robots"))
	} else {
		a.logger.Warn("robots.txt enforcement disabled")
	}
	gate := policy.NewGate(robotsPolicy, limiter, cc.DenyDomains, a.logger.Named("policy"))

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cc.UserAgent,
		ConnectTimeout: cc.ConnectTimeout,
		ReadTimeout:    cc.ReadTimeout,
		RequestTimeout: cc.RequestTimeout,
		MaxBodyBytes:   cc.MaxBodyBytes,
	})
	sink, err := crawler.NewFileSystemSink(a.cfg.Storage.RawDir, a.logger.Named("sink"))
	if err != nil {
		return nil, err
	}

	frontierCfg := crawler.Config{
		MaxDepth:            cc.MaxDepth,
		SameHostOnly:        cc.SameHostOnly,
		Concurrency:         cc.Concurrency,
		DocumentExtensions:  cc.DocumentExtensions,
		DocumentPathMarkers: cc.DocumentPathMarkers,
		DocumentMediaTypes:  cc.DocumentMediaTypes,
		ForbiddenThreshold:  cc.ForbiddenThreshold,
	}
	if cc.MaxRetries > 0 {
		frontierCfg.RetryPolicy = crawler.NewExponentialRetryPolicy(cc.MaxRetries)
	}
	frontier, err := crawler.New(frontierCfg, fetcher, gate, sink, a.logger.Named("crawler"))
	if err != nil {
		return nil, fmt.Errorf("build frontier: %w", err)
	}
	return frontier, nil
}

func (a *App) buildPipeline() *metadata.Pipeline {
	ec := a.cfg.Extract
	var recognizer metadata.OCR
	if ec.OCREnabled {
		engine := ocr.New(ocr.Config{
			PdftoppmBin:  ec.PdftoppmBin,
			TesseractBin: ec.TesseractBin,
			Languages:    ec.OCRLanguages,
			DPI:          ec.OCRDPI,
			Timeout:      ec.OCRTimeout,
		}, a.logger.Named("ocr"))
		if engine.Available() {
			recognizer = engine
		} else {
			a.logger.Warn("OCR binaries not found; scanned documents fall back to filename titles",
				zap.String("pdftoppm", ec.PdftoppmBin),
				zap.String("tesseract", ec.TesseractBin),
			)
		}
	}
	return metadata.NewPipeline(metadata.Config{
		MinTextChars:   ec.MinTextChars,
		TitleMinLen:    ec.TitleMinLen,
		TitleMaxLen:    ec.TitleMaxLen,
		SanskritRatio:  ec.SanskritRatio,
		KeywordMinHits: ec.KeywordMinHits,
	}, pdfextract.New(), recognizer, a.logger.Named("metadata"))
}

func (a *App) attachMirrors(ctx context.Context, deps *harvest.Deps) error {
	if bucket := a.cfg.Storage.GCSBucket; bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("Error closing GCS client", zap.Error(err))
			}
		})
		var mirror storage.BlobStore
		mirror, err = gcs.New(client, gcs.Config{Bucket: bucket, Prefix: a.cfg.Storage.GCSPrefix})
		if err != nil {
			return err
		}
		deps.Mirror = mirror
		a.logger.Info("Using GCS raw mirror", zap.String("bucket", bucket))
	}

	if dsn := a.cfg.DB.DSN; dsn != "" {
		catalog, err := postgres.NewCatalogStore(ctx, postgres.CatalogStoreConfig{
			DSN:      dsn,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, catalog.Close)
		if err := catalog.EnsureSchema(ctx); err != nil {
			return err
		}
		deps.Catalog = catalog
		a.logger.Info("Using Postgres record catalog", zap.String("table", a.cfg.DB.Table))
	}

	if project := a.cfg.PubSub.ProjectID; project != "" {
		publisher, err := pubsubpublisher.New(ctx, project)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				a.logger.Warn("Error closing Pub/Sub client", zap.Error(err))
			}
		})
		deps.Notifier = publisher
		a.logger.Info("Publishing new records to Pub/Sub", zap.String("topic", a.cfg.PubSub.Topic))
	}
	return nil
}

// Run executes one harvest and pushes metrics to the Pushgateway when configured.
func (a *App) Run(ctx context.Context) (harvest.Summary, error) {
	if a == nil || a.harvester == nil {
		return harvest.Summary{}, errors.New("app is not initialized")
	}
	summary, err := a.harvester.Run(ctx)
	if gateway := a.cfg.Metrics.PushgatewayURL; gateway != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if pushErr := metrics.Push(pushCtx, gateway, a.cfg.Metrics.Job); pushErr != nil {
			a.logger.Warn("Error pushing metrics", zap.Error(pushErr))
		}
	}
	return summary, err
}

// Close shuts down every service in reverse order of construction.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.logger.Info("Shutting down harvester services...")
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("Error stopping metrics server", zap.Error(err))
		}
		cancel()
		a.metrics = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// Best effort; syncing stderr commonly fails with EINVAL.
	_ = a.logger.Sync()
}

func sources(in []config.SourceConfig) []crawler.Source {
	out := make([]crawler.Source, 0, len(in))
	for _, src := range in {
		out = append(out, crawler.Source{
			Name:      src.Name,
			StartURLs: append([]string(nil), src.StartURLs...),
			MaxDocs:   src.MaxDocs,
		})
	}
	return out
}
