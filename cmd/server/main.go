package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	chatapp "github.com/set-night/chatapp"
	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/handler"
	"github.com/set-night/chatapp/internal/llm"
	"github.com/set-night/chatapp/internal/metrics"
	"github.com/set-night/chatapp/internal/middleware"
	"github.com/set-night/chatapp/internal/repository"
	"github.com/set-night/chatapp/internal/service"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatapp",
		Short: "Conversation API with streaming completions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; the environment may already be set.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, store, err := setup(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
				slog.Info("migrations applied", "driver", cfg.DBDriver)
				return nil
			},
		},
		&cobra.Command{
			Use:   "bootstrap",
			Short: "Apply migrations and create the default user",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, store, err := setup(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
				users := service.NewUserService(repository.NewUserRepository(store), cfg.DefaultUserID)
				u, err := users.EnsureDefault(cmd.Context())
				if err != nil {
					return err
				}
				slog.Info("default user ready", "user_id", u.ID)
				return nil
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration, installs the logger, opens the store and
// applies migrations.
func setup(ctx context.Context) (*config.Config, *repository.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(chatapp.MigrationsFS); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, store, nil
}

func serve(ctx context.Context) error {
	cfg, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// Repositories
	conversations := repository.NewConversationRepository(store, cfg.DefaultModel)
	messages := repository.NewMessageRepository(store)
	usage := repository.NewUsageRepository(store)
	users := service.NewUserService(repository.NewUserRepository(store), cfg.DefaultUserID)

	if _, err := users.EnsureDefault(ctx); err != nil {
		return fmt.Errorf("ensure default user: %w", err)
	}

	// Services
	provider := llm.New(cfg)
	if provider == nil {
		slog.Warn("no API key configured, message sending is disabled", "provider", cfg.LLMProvider)
	}
	m := metrics.New()
	catalog := service.NewCatalog(provider, usage)
	relay := service.NewRelay(service.RelayDeps{
		Provider:      provider,
		Conversations: conversations,
		Messages:      messages,
		Usage:         usage,
		Models:        catalog,
		Metrics:       m,
		DefaultModel:  cfg.DefaultModel,
	})

	h := handler.New(handler.Deps{
		Cfg:           cfg,
		Store:         store,
		Conversations: conversations,
		Messages:      messages,
		Usage:         usage,
		Users:         users,
		Relay:         relay,
		Catalog:       catalog,
		Metrics:       m,
		Limiter:       middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr, "driver", cfg.DBDriver, "provider", cfg.LLMProvider,
			"api_key_configured", cfg.HasAPIKey())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}
