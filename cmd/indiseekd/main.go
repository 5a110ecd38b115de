// Command indiseekd runs indiseek's HTTP API server: it loads
// configuration from the environment, opens every store, and serves
// spec.md §6's routes until the process receives an interrupt.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/breeze4/indiseek/internal/agent"
	"github.com/breeze4/indiseek/internal/cache"
	"github.com/breeze4/indiseek/internal/config"
	"github.com/breeze4/indiseek/internal/httpapi"
	"github.com/breeze4/indiseek/internal/lexstore"
	"github.com/breeze4/indiseek/internal/logging"
	"github.com/breeze4/indiseek/internal/parse"
	"github.com/breeze4/indiseek/internal/provider"
	"github.com/breeze4/indiseek/internal/repolife"
	"github.com/breeze4/indiseek/internal/retrieval"
	"github.com/breeze4/indiseek/internal/store"
	"github.com/breeze4/indiseek/internal/task"
	"github.com/breeze4/indiseek/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "indiseekd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.FilePath = cfg.LogFilePath
	logger, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Paths.ReposDir, 0o755); err != nil {
		return fmt.Errorf("create repos dir: %w", err)
	}

	db, err := store.Open(filepath.Join(cfg.Paths.DataDir, "indiseek.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	ctx := context.Background()
	chat, err := provider.NewChatProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build chat provider: %w", err)
	}
	embedder, err := provider.NewEmbeddingProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build embedding provider: %w", err)
	}

	vectors := vectorstore.NewManager(cfg.Paths.DataDir)
	lexical := lexstore.NewManager(cfg.Paths.DataDir)
	chunker := parse.NewChunker()
	defer chunker.Close()

	if err := reopenActiveRepos(db, vectors, lexical, embedder.Dimensions()); err != nil {
		return fmt.Errorf("reopen repo indexes: %w", err)
	}

	repolifeMgr := repolife.NewManager(db, vectors, lexical, cfg.Paths.ReposDir)
	tasks := task.NewManager()
	queryCache := cache.New(db)

	tools := retrieval.New(db, vectors, lexical)
	registry := retrieval.NewRegistry(tools, embedder)
	strategies := agent.DefaultRegistry()
	prices := agent.LoadPriceTable(cfg.PriceTablePath)

	srv := &httpapi.Server{
		Config:     cfg,
		DB:         db,
		Vectors:    vectors,
		Lexical:    lexical,
		Chunker:    chunker,
		Repolife:   repolifeMgr,
		Tasks:      tasks,
		Cache:      queryCache,
		Chat:       chat,
		Embedder:   embedder,
		Tools:      tools,
		Registry:   registry,
		Strategies: strategies,
		Prices:     prices,
		Log:        logger,
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Routes(),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-sigCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// reopenActiveRepos opens the vector and lexical indexes for every active
// repo so handlers never hit a "repo not open" error on the first request
// after a restart.
func reopenActiveRepos(db *store.DB, vectors *vectorstore.Manager, lexical *lexstore.Manager, embedDims int) error {
	repos, err := db.ListRepos(false)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		if err := vectors.Open(repo.ID, embedDims); err != nil {
			return fmt.Errorf("repo %d: open vector index: %w", repo.ID, err)
		}
		if err := lexical.Open(repo.ID); err != nil {
			return fmt.Errorf("repo %d: open lexical index: %w", repo.ID, err)
		}
	}
	return nil
}
