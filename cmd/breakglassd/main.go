// Command breakglassd runs the policy exception engine: it loads the
// declarative rule file, restores persisted exceptions, starts the expiry
// sweeper, and serves the admission and exception endpoints over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/breakglass-dev/breakglass/application/admission"
	"github.com/breakglass-dev/breakglass/application/config"
	"github.com/breakglass-dev/breakglass/application/lifecycle"
	"github.com/breakglass-dev/breakglass/application/schema"
	"github.com/breakglass-dev/breakglass/application/sweeper"
	"github.com/breakglass-dev/breakglass/domain/entities"
	"github.com/breakglass-dev/breakglass/infrastructure/auditlog"
	"github.com/breakglass-dev/breakglass/infrastructure/httpserver"
	"github.com/breakglass-dev/breakglass/infrastructure/memstore"
	"github.com/breakglass-dev/breakglass/infrastructure/snapshot"
	"github.com/breakglass-dev/breakglass/infrastructure/wasmpred"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the YAML configuration file")
		listenAddr  = flag.String("listen", "", "override the configured listen address")
		logLevel    = flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
		printSchema = flag.Bool("print-rule-schema", false, "print the rule file JSON schema and exit")
	)
	flag.Parse()

	if *printSchema {
		data, err := schema.RuleFileSchema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	if err := run(*configPath, *listenAddr, *logLevel); err != nil {
		slog.Error("breakglassd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath, listenOverride, levelOverride string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listenOverride != "" {
		cfg.ListenAddr = listenOverride
	}
	if levelOverride != "" {
		cfg.LogLevel = levelOverride
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := auditlog.NewFileSink(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer sink.Close()

	ruleStore := memstore.NewRuleStore()
	if cfg.RuleFile != "" {
		if err := loadRules(ctx, cfg.RuleFile, ruleStore, logger); err != nil {
			return err
		}
	}

	exceptionStore := memstore.NewExceptionStore()
	var snap *snapshot.FileStore
	if cfg.SnapshotPath != "" {
		snap = snapshot.NewFileStore(snapshot.WithPath(cfg.SnapshotPath))
		restored, err := snap.Load()
		if err != nil {
			return err
		}
		for _, ex := range restored {
			if err := exceptionStore.Put(ex); err != nil {
				return err
			}
		}
		if len(restored) > 0 {
			logger.Info("restored exceptions from snapshot", "count", len(restored), "path", snap.Path())
		}
	}

	manager := lifecycle.NewManager(exceptionStore, sink,
		lifecycle.WithMaxLifetime(cfg.MaxExceptionLifetime.Std()),
		lifecycle.WithLogger(logger),
	)
	evaluator := admission.NewEvaluator(ruleStore, manager, sink,
		admission.WithLogger(logger),
		admission.WithDenialHandler(&admission.SlogDenialHandler{Logger: logger}),
	)

	sw := sweeper.NewSweeper(exceptionStore, sink,
		sweeper.WithInterval(cfg.SweepInterval.Std()),
		sweeper.WithLogger(logger),
	)
	go sw.Run(ctx)

	server := httpserver.NewServer(evaluator, manager, sink, httpserver.WithLogger(logger))
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	if snap != nil {
		if err := snap.Save(exceptionStore.List()); err != nil {
			return err
		}
		logger.Info("saved exception snapshot", "path", snap.Path())
	}
	return nil
}

func loadRules(ctx context.Context, path string, store *memstore.RuleStore, logger *slog.Logger) error {
	file, err := config.LoadRuleFile(path)
	if err != nil {
		return err
	}

	var opts []config.BuildOption
	needsWasm := false
	for _, spec := range file.Rules {
		if spec.WasmModule != "" {
			needsWasm = true
			break
		}
	}
	if needsWasm {
		engine, err := wasmpred.NewEngine(ctx)
		if err != nil {
			return err
		}
		// The engine lives for the process; predicates stay loaded until
		// shutdown tears the runtime down with the process.
		opts = append(opts, config.WithPredicateLoader(func(modulePath string) (entities.Predicate, error) {
			return engine.LoadFile(ctx, modulePath)
		}))
	}

	rules, err := config.BuildRules(file.Rules, opts...)
	if err != nil {
		return err
	}
	for _, rule := range rules {
		if err := store.Register(rule); err != nil {
			return err
		}
	}
	logger.Info("registered rules", "count", len(rules), "path", path)
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
