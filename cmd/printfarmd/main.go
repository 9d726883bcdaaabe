package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfarm/internal/api/handlers"
	"github.com/orrn/printfarm/internal/api/middleware"
	"github.com/orrn/printfarm/internal/config"
	"github.com/orrn/printfarm/internal/core"
	"github.com/orrn/printfarm/internal/db"
	"github.com/orrn/printfarm/internal/metrics"
	"github.com/orrn/printfarm/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer conn.Close()

	store := db.NewStore(conn)

	collector := metrics.NewCollector()
	sender := webhook.NewSender(store, webhook.Config{
		QueueSize: cfg.Webhooks.QueueSize,
		Timeout:   cfg.Webhooks.DeliveryTimeout,
	})
	sender.SetRecorder(collector)
	sender.Start()
	defer sender.Stop()

	jobs := core.NewManager(store, collector, sender)
	printers := core.NewPrinterManager(store, jobs, collector, sender)

	// Any state reported before the restart is stale; printers must
	// report in again before the matcher counts them.
	if err := printers.InitializePrinterStates(context.Background()); err != nil {
		log.Fatalf("failed to initialize printer states: %v", err)
	}

	auth, err := middleware.NewAuthMiddleware(store)
	if err != nil {
		log.Fatalf("failed to initialize auth: %v", err)
	}

	router := gin.Default()

	router.POST("/api/auth/login", auth.LoginHandler)
	router.POST("/api/auth/logout", auth.LogoutHandler)
	router.GET("/api/auth/status", auth.StatusHandler)
	router.POST("/api/auth/setup", auth.SetupHandler)
	router.POST("/api/auth/password", auth.RequireAuth(), auth.ChangePasswordHandler)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api", auth.RequireAuth())
	handlers.NewJobHandler(store, jobs, collector).RegisterRoutes(api)
	handlers.NewPrinterHandler(store, printers).RegisterRoutes(api)
	handlers.NewFileHandler(store).RegisterRoutes(api)
	handlers.NewWebhookHandler(store).RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
