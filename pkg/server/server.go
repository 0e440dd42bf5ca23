package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	handlers "github.com/de-tools/pivot-reports/pkg/handlers/reports"
	pivotmiddleware "github.com/de-tools/pivot-reports/pkg/server/middleware"
	"github.com/de-tools/pivot-reports/pkg/services/reports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

type WebAPI struct {
	router          *chi.Mux
	logger          *zerolog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

type Dependencies struct {
	Reports reports.Service
	Logger  zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func ConfigureRouter(config Config) *chi.Mux {
	reportsHandler := handlers.NewHandler(config.Dependencies.Reports)
	logger := config.Dependencies.Logger

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(pivotmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Get("/_/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api/v1", reportsHandler.Routes)

	return router
}

func NewWebAPI(config Config) *WebAPI {
	router := ConfigureRouter(config)
	logger := config.Dependencies.Logger

	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()

		err := w.server.Shutdown(shutdownCtx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
