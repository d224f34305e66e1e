package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/tutorportal/internal/autocorrect"
	"github.com/pavelanni/tutorportal/internal/handler"
	appI18n "github.com/pavelanni/tutorportal/internal/i18n"
	"github.com/pavelanni/tutorportal/internal/llm"
	"github.com/pavelanni/tutorportal/internal/llm/prompts"
	"github.com/pavelanni/tutorportal/internal/model"
	"github.com/pavelanni/tutorportal/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "tutorportal.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Questions JSON files to import at startup (repeatable)")
	f.String("jwt-secret", "", "HMAC secret for bearer tokens (required)")
	f.Duration("token-ttl", 12*time.Hour, "Bearer token lifetime")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables suggestions)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Suggestion prompt variant (strict, standard, lenient)")
	f.String("autocorrect-schedule", "@every 1m", "Cron schedule for multiple-choice auto-correction (empty disables)")
	f.Duration("autocorrect-timeout", 2*time.Minute, "Time limit for one auto-correction sweep")
	f.String("admin-password", "", "Initial admin password (or set TUTORPORTAL_ADMIN_PASSWORD)")
	addCommonFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return err
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}

	// Suggestions are optional; without an endpoint the API answers 503.
	var suggester handler.Suggester
	if url := v.GetString("llm-url"); url != "" {
		llmClient, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), promptVariant)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = llmClient.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
		suggester = llmClient
	}

	cfg := model.PortalConfig{
		Lang:          lang,
		Location:      loc,
		PromptVariant: promptVariant,
		JWTSecret:     v.GetString("jwt-secret"),
		TokenTTL:      v.GetDuration("token-ttl"),
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(db, suggester, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	sched, err := autocorrect.Schedule(autocorrect.New(db), v.GetString("autocorrect-schedule"), v.GetDuration("autocorrect-timeout"))
	if err != nil {
		return fmt.Errorf("schedule auto-correction: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"timezone", loc.String(),
			"suggestions", suggester != nil,
			"autocorrect_schedule", v.GetString("autocorrect-schedule"),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
