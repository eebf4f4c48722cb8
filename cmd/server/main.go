package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"canteen-backend/internal/agent"
	"canteen-backend/internal/auth"
	"canteen-backend/internal/backup"
	"canteen-backend/internal/cache"
	"canteen-backend/internal/config"
	"canteen-backend/internal/database"
	"canteen-backend/internal/db"
	"canteen-backend/internal/handlers"
	"canteen-backend/internal/health"
	h "canteen-backend/internal/http"
	"canteen-backend/internal/middleware"
	"canteen-backend/internal/models"
	"canteen-backend/internal/monitoring"
	"canteen-backend/internal/repositories"
	"canteen-backend/internal/services"
)

// runAgent is the subprocess entry point. The supervisor re-execs this same
// binary with --agent and the AGENT_* environment set.
func runAgent() {
	runner, err := agent.NewRunnerFromEnv()
	if err != nil {
		log.Fatalf("agent startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("agent exited with error: %v", err)
	}
}

func main() {
	agentMode := flag.Bool("agent", false, "Run as a theater print agent (spawned by the supervisor)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	if *agentMode {
		runAgent()
		return
	}

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer store.Close()

	waitCtx, waitCancel := context.WithTimeout(ctx, cfg.Database.ConnectBudget)
	if err := store.WaitReady(waitCtx); err != nil {
		waitCancel()
		log.Fatalf("database not ready: %v", err)
	}
	waitCancel()
	pool := store.Pool

	// Redis is optional; limiter and balance cache degrade gracefully
	if err := cache.Init(cfg); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (falling back to in-process counters)", err)
	} else {
		log.Println("[Redis] Cache connected successfully")
	}

	migrator := database.NewMigrator(pool)
	migCtx, migCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := migrator.RunMigrations(migCtx); err != nil {
		migCancel()
		log.Fatalf("failed to run migrations: %v", err)
	}
	migCancel()

	jwtManager := auth.NewJWTManager(cfg)

	// Repositories
	userRepo := repositories.NewUserRepository(pool)
	theaterRepo := repositories.NewTheaterRepository(pool)
	categoryRepo := repositories.NewCategoryRepository(pool)
	productRepo := repositories.NewProductRepository(pool)
	comboRepo := repositories.NewComboRepository(pool)
	kioskTypeRepo := repositories.NewKioskTypeRepository(pool)
	settingRepo := repositories.NewSystemSettingRepository(pool)
	stockRepo := repositories.NewStockRepository(pool)
	orderRepo := repositories.NewOrderRepository(pool)
	printJobRepo := repositories.NewPrintJobRepository(pool)
	paymentEventRepo := repositories.NewPaymentEventRepository(pool)
	roleRepo := repositories.NewRoleRepository(pool)
	loginLogRepo := repositories.NewLoginLogRepository(pool)
	totpRepo := repositories.NewTOTPRepository(pool)

	// Background task runner for chain repairs, auto-expiry and backups
	tasks := services.NewTaskRunner(256)

	// Services
	catalogService := services.NewCatalogService(productRepo, categoryRepo, comboRepo, kioskTypeRepo)
	ledgerService := services.NewLedgerService(stockRepo, productRepo)
	ledgerService.SetTaskRunner(tasks)
	orderService := services.NewOrderService(orderRepo, catalogService, ledgerService, settingRepo)
	userService := services.NewUserService(userRepo, loginLogRepo, totpRepo, jwtManager)
	theaterService := services.NewTheaterService(theaterRepo)
	razorpayService := services.NewRazorpayService(cfg)
	reportService := services.NewReportService(orderRepo, theaterRepo)

	// Agent plumbing: hub carries the websocket channel, the supervisor owns
	// the subprocesses, the dispatcher drains the durable queue.
	hub := agent.NewHub()
	supervisor := agent.NewSupervisor(cfg, jwtManager)
	dispatcher := services.NewPrintDispatcher(cfg, printJobRepo, hub, theaterRepo)

	orderService.SetPrintEnqueuer(dispatcher)
	if razorpayService.Enabled() {
		orderService.SetGateway(razorpayService)
		log.Println("[Razorpay] Online payments enabled")
	}
	theaterService.SetSupervisor(supervisor)

	// Nightly archives to the S3-compatible backup bucket
	archiver, err := backup.NewArchiver(cfg, theaterRepo, orderRepo, stockRepo)
	if err != nil {
		log.Fatalf("backup store misconfigured: %v", err)
	}
	if archiver.Enabled() {
		if err := archiver.Ping(ctx); err != nil {
			log.Printf("[Backup] bucket unreachable at boot: %v", err)
		}
		tasks.Every("nightly-backup", 24*time.Hour, func(taskCtx context.Context) {
			archiver.RunNightly(taskCtx)
		})
	}

	// Expiry sweep posts EXPIRED entries for past-date batches
	tasks.Every("auto-expire", time.Hour, func(taskCtx context.Context) {
		theaters, err := theaterRepo.List(taskCtx, true)
		if err != nil {
			log.Printf("[Tasks] auto-expire could not list theaters: %v", err)
			return
		}
		for _, t := range theaters {
			ledgerService.AutoExpire(taskCtx, t.ID, models.LedgerTheater)
			ledgerService.AutoExpire(taskCtx, t.ID, models.LedgerCafe)
		}
	})

	// Old 2FA attempt rows only matter inside the throttle window
	tasks.Every("totp-attempt-purge", time.Hour, func(taskCtx context.Context) {
		if err := totpRepo.Purge(taskCtx); err != nil {
			log.Printf("[Tasks] totp attempt purge failed: %v", err)
		}
	})

	tasks.Start()
	defer tasks.Stop()

	supervisor.Run()
	dispatcher.Start()
	defer dispatcher.Stop()

	// Bring enabled agents back up after a restart
	theaterService.StartProvisionedAgents(ctx)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, userRepo)
	limiter := middleware.NewRateLimiter(cfg, jwtManager)
	corsMiddleware := middleware.NewCORS(cfg)

	// Handlers
	healthChecker := health.NewHealthChecker(pool)
	healthHandler := handlers.NewHealthHandler(healthChecker)
	authHandler := handlers.NewAuthHandler(userService, limiter)
	userHandler := handlers.NewUserHandler(userService)
	theaterHandler := handlers.NewTheaterHandler(theaterService, userService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	orderHandler := handlers.NewOrderHandler(orderService)
	stockHandler := handlers.NewStockHandler(ledgerService)
	printHandler := handlers.NewPrintHandler(dispatcher, orderService)
	agentHandler := handlers.NewAgentHandler(hub, supervisor, theaterService)
	paymentHandler := handlers.NewPaymentHandler(razorpayService, orderService, paymentEventRepo)
	settingHandler := handlers.NewSettingHandler(settingRepo)
	reportHandler := handlers.NewReportHandler(reportService)
	roleHandler := handlers.NewRoleHandler(roleRepo)

	router := h.NewRouter(
		authHandler, userHandler, theaterHandler, catalogHandler,
		orderHandler, stockHandler, printHandler, agentHandler,
		paymentHandler, settingHandler, reportHandler, roleHandler, healthHandler,
		authMiddleware, limiter,
	)

	handler := middleware.PanicRecovery(middleware.MetricsMiddleware(corsMiddleware(router)))

	// Ops dashboard on its own port
	go monitoring.NewMonitoringServer(pool, supervisor, 9090).Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop taking requests, then take the agents down
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	supervisor.Shutdown()
	log.Println("Shutdown complete")
}
