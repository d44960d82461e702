// Command fluxly runs the weather-alert demo workflow either as a
// one-shot CLI invocation or as a long-lived HTTP server: with no
// subcommand on argv it serves HTTP, otherwise it dispatches to cobra
// and exits with the run's terminal status code.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShaharBand/fluxly/examples/weatheralert"
	"github.com/ShaharBand/fluxly/internal/audit"
	"github.com/ShaharBand/fluxly/internal/clicmd"
	"github.com/ShaharBand/fluxly/internal/httpapi"
	"github.com/ShaharBand/fluxly/internal/registry"
	"github.com/ShaharBand/fluxly/internal/telemetry"
	"github.com/ShaharBand/fluxly/internal/workflow"
)

func main() {
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(logHandler))

	ctx := context.Background()

	if endpoint := os.Getenv("FLUXLY_OTLP_ENDPOINT"); endpoint != "" {
		shutdownTracer, err := telemetry.InitTracer(ctx, "fluxly", endpoint)
		if err != nil {
			slog.Warn("tracer initialization failed, continuing without tracing", "error", err)
		} else {
			defer shutdownTracer(ctx)
		}
	}

	sink := auditSink(ctx)
	reg := registry.New(sink)

	endpoints := buildEndpoints()

	if len(os.Args) > 1 {
		runCLI(endpoints)
		return
	}
	runHTTPServer(reg, endpoints)
}

// buildEndpoints constructs the workflow templates this binary exposes.
// A production deployment would register one entry per tenant workflow
// definition; the demo registers the single weather-alert workflow.
func buildEndpoints() map[string]*workflow.Workflow {
	in := workflow.DefaultInput()
	in.TimeoutSeconds = 30

	wf, err := weatheralert.New(weatheralert.DefaultClients(), in)
	if err != nil {
		slog.Error("failed to build weather-alert workflow", "error", err)
		os.Exit(1)
	}
	return map[string]*workflow.Workflow{"weather-alert": wf}
}

func runCLI(endpoints map[string]*workflow.Workflow) {
	root := clicmd.BuildRootCommand("fluxly", endpoints)
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func runHTTPServer(reg *registry.Registry, endpoints map[string]*workflow.Workflow) {
	server := httpapi.NewServer(reg, nil)
	for name, tmpl := range endpoints {
		server.RegisterEndpoint(name, tmpl)
	}

	mainRouter := mux.NewRouter()
	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	server.LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(mainRouter)

	addr := ":8080"
	if v := os.Getenv("FLUXLY_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{Addr: addr, Handler: corsHandler}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting fluxly server", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
}

// auditSink builds a best-effort Postgres audit sink when AUDIT_DATABASE_URL
// is set, falling back to a no-op sink otherwise — the run registry itself
// remains the source of truth regardless.
func auditSink(ctx context.Context) audit.Sink {
	dbURL := os.Getenv("AUDIT_DATABASE_URL")
	if dbURL == "" {
		return audit.NoopSink{}
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		slog.Warn("audit database unavailable, continuing without audit logging", "error", err)
		return audit.NoopSink{}
	}

	sink, err := audit.NewPostgresSink(ctx, pool)
	if err != nil {
		slog.Warn("audit sink initialization failed, continuing without audit logging", "error", err)
		pool.Close()
		return audit.NoopSink{}
	}
	return sink
}
