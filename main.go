package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/kshivamiitk/classboard/api"
	"github.com/kshivamiitk/classboard/cache/redis"
	"github.com/kshivamiitk/classboard/mq/sqsmq"
	"github.com/kshivamiitk/classboard/store/dynamo"
)

const (
	DynamoDBTable        = "Classboard"
	SQSClearStrokesQueue = "ClearStrokesQueue"
)

func main() {
	// .env is optional; in containers everything comes from real env vars
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	classStore, err := dynamo.NewDynamoClassStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	clearStrokesQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSClearStrokesQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	classCache, err := redis.NewRedisClassCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	classboardApi := api.NewClassboardAPI(classStore, clearStrokesQueue, classCache, uploadDir, shutdownCtx)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	classboardApi.RegisterRoutes(router, os.Getenv("REQUIRED_ORIGIN"))

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, router))
}
