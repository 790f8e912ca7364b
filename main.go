// Command drysense-push is the DrySense push notification dispatch service.
//
// Usage:
//
//	drysense-push serve
//	drysense-push sweep reminders
//	drysense-push sweep climate
//	drysense-push vapid generate
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"drysense-push-go/internal/auth"
	"drysense-push-go/internal/config"
	"drysense-push-go/internal/handlers"
	"drysense-push-go/internal/metrics"
	"drysense-push-go/internal/push"
	"drysense-push-go/internal/store"
	"drysense-push-go/internal/sweep"
	"drysense-push-go/internal/vapid"
	"drysense-push-go/internal/weather"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "drysense-push",
		Short: "DrySense push notification dispatch service",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(vapidCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP dispatch service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, cfg *config.Config, svc *service) error {
				metrics.MustRegister()
				router := handlers.NewRouter(svc.handler, cfg.CORSAllowOrigins)

				srv := &http.Server{
					Addr:              fmt.Sprintf(":%d", cfg.Port),
					Handler:           router,
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() { errCh <- srv.ListenAndServe() }()
				logger.Info("listening", "port", cfg.Port)

				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				case err := <-errCh:
					return err
				}
			})
		},
	}
}

// --------------------------------------------------------------------------
// sweep commands (one-shot, for external schedulers)
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one scheduled sweep and exit",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reminders",
		Short: "Run the logging reminder sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(func(ctx context.Context, s *sweep.Sweeper) (sweep.Result, error) {
				return s.Reminders(ctx)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "climate",
		Short: "Run the climate alert sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(func(ctx context.Context, s *sweep.Sweeper) (sweep.Result, error) {
				return s.Climate(ctx)
			})
		},
	})
	return cmd
}

func runSweep(fn func(ctx context.Context, s *sweep.Sweeper) (sweep.Result, error)) error {
	return withService(func(ctx context.Context, cfg *config.Config, svc *service) error {
		start := time.Now()
		res, err := fn(ctx, svc.sweeper)
		if err != nil {
			return err
		}
		logger.Info("sweep finished",
			"sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed, "total", res.Total,
			"duration", time.Since(start).Round(time.Millisecond))
		return json.NewEncoder(os.Stdout).Encode(res)
	})
}

// --------------------------------------------------------------------------
// vapid commands
// --------------------------------------------------------------------------

func vapidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vapid",
		Short: "VAPID key utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh VAPID key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
			fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
			return nil
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

type service struct {
	handler *handlers.Handler
	sweeper *sweep.Sweeper
}

// withService handles config loading, storage setup and context cancellation.
func withService(fn func(ctx context.Context, cfg *config.Config, svc *service) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pg, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pg.Close()

	if err := pg.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	cache := weather.NewCache(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.WeatherCacheTTL)
	wc := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherRequestsPerMin, cache, logger)

	// A bad key configuration degrades the service rather than killing it:
	// the public-key endpoint keeps answering so clients can still register.
	app, err := vapid.NewApplicationServer(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	if err != nil {
		logger.Error("VAPID key material rejected, push sends disabled", "error", err)
		app = nil
	}

	if len(cfg.CronSecret) < config.MinCronSecretLength {
		logger.Warn("cron secret shorter than minimum, sweep actions will refuse to run",
			"min_length", config.MinCronSecretLength)
	}

	sender := push.NewSender(app)
	sweeper := sweep.New(pg, sender, wc, logger)
	sweeper.JitterMax = cfg.ClimateJitterMax

	svc := &service{
		sweeper: sweeper,
		handler: &handlers.Handler{
			Store:        pg,
			Sender:       sender,
			App:          app,
			RawPublicKey: cfg.VAPIDPublicKey,
			Verifier:     auth.NewVerifier(cfg.JWTSecret),
			CronSecret:   cfg.CronSecret,
			Sweeper:      sweeper,
			Logger:       logger,
		},
	}
	return fn(ctx, cfg, svc)
}
