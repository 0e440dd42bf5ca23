package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/de-tools/pivot-reports/pkg/httpclient"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/server"
	"github.com/de-tools/pivot-reports/pkg/services/archive"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/lifecycle"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/de-tools/pivot-reports/pkg/services/reports"
	"github.com/de-tools/pivot-reports/pkg/services/requester"
	"github.com/de-tools/pivot-reports/pkg/services/token"
	"github.com/de-tools/pivot-reports/pkg/storage/local"
	"github.com/de-tools/pivot-reports/pkg/storage/s3"
	"github.com/de-tools/pivot-reports/pkg/store/backends"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App holds the wired services shared by the web server and the CLI.
type App struct {
	config    *config.Config
	logger    zerolog.Logger
	store     storereports.Store
	profiles  config.Registry
	lifecycle lifecycle.Manager
	service   reports.Service
	scheduler *lifecycle.Scheduler
	api       *server.WebAPI
}

// NewLogger builds the base logger from the log settings.
func NewLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	profiles, err := config.NewRegistry(cfg.Profiles.Path, cfg.Profiles.Default, domain.Credentials{
		APIKey:    cfg.Profiles.APIKey,
		APISecret: cfg.Profiles.APISecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile registry: %w", err)
	}

	store, err := backends.NewRegistry().Open(ctx, cfg.Store.Backend, storeDSN(cfg.Store))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s report store: %w", cfg.Store.Backend, err)
	}

	a := &App{
		config:   cfg,
		logger:   logger,
		store:    store,
		profiles: profiles,
	}
	if err := a.wire(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.config

	manager, err := lifecycle.NewManager(a.store, lifecycle.Config{
		PollInterval: cfg.Reports.PollInterval,
		PollBudget:   cfg.Reports.PollBudget,
	})
	if err != nil {
		return fmt.Errorf("failed to create lifecycle manager: %w", err)
	}
	a.lifecycle = manager

	secret := cfg.Reports.TokenSecret
	if secret == "" {
		secret = uuid.NewString()
		a.logger.Warn().Msg("reports.token_secret is not set, callbacks issued by this process die with it")
	}
	signer, err := token.NewSigner(secret, cfg.Reports.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}

	root, err := local.NewRoot(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("failed to prepare storage root: %w", err)
	}

	var mirror s3.Mirror
	if cfg.Storage.S3.Bucket != "" {
		mirror, err = s3.NewMirror(ctx, s3.Settings{
			Bucket:  cfg.Storage.S3.Bucket,
			Prefix:  cfg.Storage.S3.Prefix,
			Profile: cfg.Storage.S3.Profile,
			Region:  cfg.Storage.S3.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 mirror: %w", err)
		}
	}

	client := httpclient.New(httpclient.Options{
		Timeout:  cfg.Reports.RequestTimeout,
		RetryMax: cfg.Reports.RetryMax,
		Logger:   &a.logger,
	})

	a.service, err = reports.NewService(reports.Dependencies{
		Profiles:  a.profiles,
		Requester: requester.New(cfg.Reports.APIURL, client),
		Fetcher:   archive.NewFetcher(client, cfg.Storage.MaxArchiveBytes, cfg.Reports.TrustedDownloadHosts()...),
		Extractor: archive.NewExtractor(cfg.Storage.MaxEntryBytes),
		Signer:    signer,
		Lifecycle: manager,
		Analyser:  pivot.NewAnalyser(),
		Root:      root,
		Mirror:    mirror,
		PublicURL: cfg.Server.PublicURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create report service: %w", err)
	}

	a.scheduler, err = lifecycle.NewScheduler(manager, lifecycle.SchedulerConfig{
		Schedule: cfg.Cleanup.Schedule,
		MaxAge:   cfg.Cleanup.MaxAge,
	})
	if err != nil {
		return err
	}

	a.api = server.NewWebAPI(server.Config{
		Addr:            net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Dependencies: server.Dependencies{
			Reports: a.service,
			Logger:  a.logger,
		},
	})
	return nil
}

func (a *App) Service() reports.Service {
	return a.service
}

func (a *App) Profiles() config.Registry {
	return a.profiles
}

// Serve runs the HTTP API and the cleanup scheduler until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(a.withLogger(ctx))

	g.Go(func() error {
		return a.api.Start(gctx)
	})
	g.Go(func() error {
		if err := a.scheduler.Start(gctx); err != nil {
			return err
		}
		a.scheduler.RunOnce(gctx)
		<-gctx.Done()
		a.scheduler.Stop()
		return nil
	})

	return g.Wait()
}

// RunReport serves the callback endpoint only for as long as one report takes
// to be requested, delivered and analysed.
func (a *App) RunReport(
	ctx context.Context,
	profile string,
	params domain.ReportParameters,
) (*reports.PivotResult, error) {
	g, gctx := errgroup.WithContext(a.withLogger(ctx))
	serveCtx, stop := context.WithCancel(gctx)
	defer stop()

	var result *reports.PivotResult
	g.Go(func() error {
		return a.api.Start(serveCtx)
	})
	g.Go(func() error {
		defer stop()
		res, err := a.service.Run(gctx, profile, params)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// withLogger attaches the app logger unless ctx already carries one.
func (a *App) withLogger(ctx context.Context) context.Context {
	if zerolog.Ctx(ctx).GetLevel() != zerolog.Disabled {
		return ctx
	}
	return a.logger.WithContext(ctx)
}

func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func storeDSN(cfg config.StoreConfig) string {
	switch cfg.Backend {
	case backends.DuckDB:
		return cfg.DuckDB.Path
	case backends.Redis:
		return cfg.Redis.URL
	default:
		return ""
	}
}
