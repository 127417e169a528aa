package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"clubportal/internal/adapter/api"
	"clubportal/internal/adapter/api/handler"
	apimiddleware "clubportal/internal/adapter/api/middleware"
	"clubportal/internal/adapter/api/router"
	"clubportal/internal/adapter/repository"
	"clubportal/internal/infrastructure/firebase"
	"clubportal/internal/infrastructure/ratelimit"
	"clubportal/internal/infrastructure/storage"
	"clubportal/internal/infrastructure/websocket"
	"clubportal/internal/usecase"
	"clubportal/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	uploader, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, serviceAccountPath)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer uploader.Close()

	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	directory := usecase.NewDirectory(userRepo)
	composer := usecase.NewComposer(messageRepo, uploader, ratelimit.NewRateLimiter())
	messagingService := usecase.NewMessagingService(messageRepo, directory, composer, uploader)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(firebase.NewFirebaseAuthClient(authClient))
	staffMiddleware := apimiddleware.NewStaffMiddleware(userRepo)

	messagingHandler := handler.NewMessagingHandler(messagingService, wsManager, cfg.MaxUploadBytes)
	wsHandler := handler.NewWebSocketHandler(wsManager, messageRepo, directory)
	healthHandler := handler.NewHealthHandler()

	router.SetupHealthRouter(e, healthHandler)
	router.SetupMessagingRouter(e, messagingHandler, authMiddleware, staffMiddleware)
	router.SetupWebSocketRouter(e, wsHandler, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
