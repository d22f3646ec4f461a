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

	"github.com/dgallion1/pagequiz/internal/api"
	"github.com/dgallion1/pagequiz/internal/config"
	"github.com/dgallion1/pagequiz/internal/model"
	"github.com/dgallion1/pagequiz/internal/prompt"
	"github.com/dgallion1/pagequiz/internal/session"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port string
	var pdfPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			if pdfPath != "" {
				cfg.DefaultPDFPath = pdfPath
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "default PDF opened for every session (overrides DEFAULT_PDF_PATH)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats := model.NewLLMStats(cfg.StatsWindow)
	modelCfg := model.Config{
		Provider:      cfg.ModelProvider,
		Model:         cfg.ModelName,
		MaxTokens:     cfg.ModelMaxTokens,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	// Sessions.
	store := session.NewStore(cfg.SessionTTL, log)
	store.Start(ctx, 5*time.Minute)

	ctrl := session.NewController(session.Options{
		Builder:         prompt.Builder{Role: cfg.TutorRole, Language: cfg.TutorLanguage},
		Scale:           cfg.RenderScale,
		IncludePageText: cfg.IncludePageText,
		DefaultPDFPath:  cfg.DefaultPDFPath,
		NewClient: func(ctx context.Context, apiKey string) (model.Client, error) {
			c, err := model.New(ctx, modelCfg, apiKey)
			if err != nil {
				return nil, err
			}
			return model.WithRetry(model.WithStats(c, stats, log), cfg.ModelRetries, log), nil
		},
		Log: log,
	})

	// HTTP server. Model calls are slow, so the write timeout is generous.
	srv := api.NewServer(store, ctrl, stats, log, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		store.Stop()
	}()

	if _, err := os.Stat(cfg.DefaultPDFPath); err != nil {
		log.Warn("default document not found, sessions will ask for an upload", "path", cfg.DefaultPDFPath)
	}

	log.Info("starting pagequiz",
		"port", cfg.Port,
		"provider", cfg.ModelProvider,
		"model", cfg.ModelName,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
