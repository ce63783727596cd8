package main

import (
	"context"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"fanlink/internal/adapter/api"
	"fanlink/internal/adapter/api/handler"
	apimiddleware "fanlink/internal/adapter/api/middleware"
	"fanlink/internal/adapter/api/router"
	"fanlink/internal/adapter/repository"
	"fanlink/internal/infrastructure/firebase"
	"fanlink/internal/infrastructure/presence"
	"fanlink/internal/infrastructure/ratelimit"
	"fanlink/internal/infrastructure/storage"
	"fanlink/internal/infrastructure/websocket"
	"fanlink/internal/usecase"
	"fanlink/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
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

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"))
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	redisClient := presence.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	walletRepo := repository.NewFirestoreWalletRepository(firestoreClient)
	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	messageRepo := repository.NewFirestoreMessageRepository(firestoreClient)
	streamRepo := repository.NewFirestoreStreamRepository(firestoreClient)
	unlockRepairRepo := repository.NewFirestoreUnlockRepairRepository(firestoreClient)

	// Realtime plumbing
	presenceService := presence.NewService(
		presence.NewRedisStore(redisClient),
		time.Duration(cfg.TypingTTLMillis)*time.Millisecond,
	)
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	wsManager := websocket.NewManager(presenceService, rateLimiter)
	wsManager.Start(ctx)

	// Use cases
	userUseCase := usecase.NewUserUseCase(userRepo)
	walletUseCase := usecase.NewWalletUseCase(walletRepo, userRepo)
	conversationUseCase := usecase.NewConversationUseCase(conversationRepo, userRepo, wsManager)
	messageUseCase := usecase.NewMessageUseCase(messageRepo, conversationRepo, userRepo, storageClient, wsManager, rateLimiter)
	unlockUseCase := usecase.NewUnlockUseCase(walletRepo, messageRepo, conversationRepo, unlockRepairRepo, wsManager, rateLimiter)
	liveChatUseCase := usecase.NewLiveChatUseCase(streamRepo, walletRepo, userRepo, wsManager, rateLimiter)

	// Background reconciliation for charged-but-not-granted unlocks.
	go unlockUseCase.StartReconciliationJob(ctx, time.Minute)

	var devIssuer *firebase.DevTokenIssuer
	if cfg.Environment == "development" {
		devIssuer = firebase.NewDevTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	}
	authMiddleware := apimiddleware.NewAuthMiddleware(firebase.NewFirebaseAuthClient(authClient), devIssuer)

	// Handlers
	userHandler := handler.NewUserHandler(userUseCase, presenceService)
	conversationHandler := handler.NewConversationHandler(conversationUseCase, messageUseCase, unlockUseCase)
	walletHandler := handler.NewWalletHandler(walletUseCase, cfg.WebhookSecret)
	streamHandler := handler.NewStreamHandler(liveChatUseCase, wsManager)
	mediaHandler := handler.NewMediaHandler(storageClient, conversationUseCase)
	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware)
	healthHandler := handler.NewHealthHandler()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Validator = api.NewValidator()

	router.Setup(e, authMiddleware, userHandler, conversationHandler, walletHandler, streamHandler, mediaHandler, wsHandler, healthHandler)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if devIssuer != nil {
		devTokenHandler := handler.NewDevTokenHandler(devIssuer)
		router.SetupDevRouter(e, devTokenHandler)
		log.Printf("Development token endpoint enabled")
	}

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
