package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sujalbistaa/driftbottle/internal/auth"
	"github.com/sujalbistaa/driftbottle/internal/config"
	"github.com/sujalbistaa/driftbottle/internal/db"
	routes "github.com/sujalbistaa/driftbottle/internal/http"
	"github.com/sujalbistaa/driftbottle/internal/keys"
	"github.com/sujalbistaa/driftbottle/internal/media"
	"github.com/sujalbistaa/driftbottle/internal/store"
	"github.com/sujalbistaa/driftbottle/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()

	database, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	log.Println("Running database migrations...")
	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := db.Seed(database); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	locker, err := media.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to prepare upload directory: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	env := &routes.Env{
		Records:  store.NewRecords(database, locker),
		Comments: store.NewComments(database),
		Keys:     keys.NewIssuer(database),
		Admin:    auth.New(database, cfg.JWTSecret),
		Hub:      hub,
	}

	router := gin.New()
	routes.SetupRoutes(router, env, locker.Dir(), cfg.CORSOrigin)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server exiting")
}
