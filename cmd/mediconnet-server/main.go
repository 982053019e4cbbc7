package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediconnet/mediconnet/internal/config"
	"github.com/mediconnet/mediconnet/internal/domain/chart"
	"github.com/mediconnet/mediconnet/internal/domain/encounter"
	"github.com/mediconnet/mediconnet/internal/domain/history"
	"github.com/mediconnet/mediconnet/internal/domain/orders"
	"github.com/mediconnet/mediconnet/internal/domain/patientreg"
	"github.com/mediconnet/mediconnet/internal/platform/auth"
	"github.com/mediconnet/mediconnet/internal/platform/db"
	"github.com/mediconnet/mediconnet/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediconnet-server",
		Short: "Multi-facility clinical records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(facilityCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// facilityCmd seeds facility credentials from the operator's side. The key is
// printed once at creation; only its hash is stored.
func facilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facility",
		Short: "Manage facility credentials",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an approved facility credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			raw, hash, err := auth.GenerateKey()
			if err != nil {
				return err
			}
			cred := &auth.FacilityCredential{Name: name, KeyHash: hash, Approved: true}
			if err := auth.NewCredentialStorePG(pool).Create(ctx, cred); err != nil {
				return err
			}

			fmt.Printf("Facility %s created (id %s).\n", name, cred.ID)
			fmt.Printf("API key (shown once, store it now): %s\n", raw)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Facility display name")
	cmd.AddCommand(createCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Central aggregation plane: facility API keys on writes, open reads.
	credStore := auth.NewCredentialStorePG(pool)
	facilityMW := auth.FacilityAuthMiddleware(credStore)
	central := apiV1.Group("/central")

	withinTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithinTx(ctx, pool, fn)
	}

	historyRepo := history.NewRepo(pool)
	historySvc := history.NewService(historyRepo, withinTx)
	history.NewHandler(historySvc).RegisterRoutes(central, facilityMW)

	// Facility plane: staff JWTs (dev bypass in development).
	staff := apiV1.Group("")
	if cfg.IsDev() {
		staff.Use(auth.DevAuthMiddleware())
	} else {
		staff.Use(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.AuthSigningKey)}))
	}

	patientRepo := patientreg.NewRepo(pool)
	patientSvc := patientreg.NewService(patientRepo)
	patientreg.NewHandler(patientSvc).RegisterRoutes(staff)

	encounterRepo := encounter.NewRepo(pool)
	encounterSvc := encounter.NewService(encounterRepo, patientRepo)
	encounter.NewHandler(encounterSvc).RegisterRoutes(staff)

	ordersRepo := orders.NewRepo(pool)
	ordersSvc := orders.NewService(ordersRepo, encounterSvc, withinTx)
	orders.NewHandler(ordersSvc).RegisterRoutes(staff)

	projector := chart.NewProjector(patientRepo, encounterSvc, ordersSvc)
	chart.NewHandler(projector, encounterSvc).RegisterRoutes(staff)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
