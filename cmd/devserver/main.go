package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/lfarias/mensageiro/internal/config"
	"github.com/lfarias/mensageiro/internal/devserver"
	"github.com/lfarias/mensageiro/internal/devserver/store"
	"github.com/lfarias/mensageiro/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logFile, err := os.OpenFile("devserver.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()
	logger.SetOutput(io.MultiWriter(os.Stdout, logFile))

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.Open(store.Kind(cfg.Devserver.Store), cfg.Devserver.DSN)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Devserver.Store, err)
	}
	defer st.Close()
	log.Printf("Using %s store", cfg.Devserver.Store)

	srv := devserver.New(devserver.Config{
		JWTSecret:      cfg.Devserver.JWTSecret,
		TokenTTL:       cfg.Devserver.TokenTTL.Std(),
		Autoconfirm:    cfg.Devserver.Autoconfirm,
		AllowedOrigins: cfg.Devserver.AllowedOrigins,
		MaxObjectSize:  cfg.Devserver.MaxObjectSize,
		LoginRPS:       cfg.Devserver.LoginRPS,
		LoginBurst:     cfg.Devserver.LoginBurst,
	}, st)

	server := &http.Server{
		Addr:    cfg.Devserver.Addr,
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("Devserver listening on %s", cfg.Devserver.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down devserver...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Devserver exited properly")
}
