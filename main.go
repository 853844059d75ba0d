package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"critiQuestAPI/handlers"
	"critiQuestAPI/internal/notification"
	"critiQuestAPI/middleware"
	"critiQuestAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	philosopherService  *services.PhilosopherService
	gachaService        *services.GachaService
	achievementService  *services.AchievementService
	progressionService  *services.ProgressionService
	notificationService *services.NotificationService
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	// Seed the static catalogs before anything reads them.
	if err := services.NewSeedService(dbPool).SeedAll(ctx); err != nil {
		log.Fatal("Failed to seed catalogs:", err)
	}

	notificationService = services.NewNotificationService(dbPool)
	userService = services.NewUserService(dbPool)

	// The philosopher catalog is validated on load; a catalog that cannot
	// back the draw fallback rule refuses to start.
	philosopherService, err = services.NewPhilosopherService(ctx, dbPool)
	if err != nil {
		log.Fatal("Failed to load philosopher catalog:", err)
	}

	gachaService, err = services.NewGachaService(dbPool, philosopherService.Catalog())
	if err != nil {
		log.Fatal("Failed to configure gacha engine:", err)
	}

	achievementService, err = services.NewAchievementService(ctx, dbPool)
	if err != nil {
		log.Fatal("Failed to load achievements:", err)
	}

	progressionService = services.NewProgressionService(dbPool, achievementService)
	progressionService.SetNotificationService(notificationService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		notificationService.Stop()
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	philosopherHandler := handlers.NewPhilosopherHandler(philosopherService)
	gachaHandler := handlers.NewGachaHandler(gachaService, philosopherService)
	progressionHandler := handlers.NewProgressionHandler(progressionService, achievementService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webhookHandler := handlers.NewWebhookHandler(userService)
	adminHandler := handlers.NewAdminHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "critiQuest-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/gacha/rates", gachaHandler.GetGachaRates).Methods("GET")
	api.HandleFunc("/admin/grant-tickets", adminHandler.GrantTickets).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")

	protected.HandleFunc("/philosophers", philosopherHandler.GetPhilosophers).Methods("GET")
	protected.HandleFunc("/collection", philosopherHandler.GetCollection).Methods("GET")

	protected.HandleFunc("/gacha/summon", gachaHandler.PerformSummon).Methods("POST")
	protected.HandleFunc("/gacha/preview", gachaHandler.GetGachaPreview).Methods("GET")

	protected.HandleFunc("/progression", progressionHandler.GetProgressionSummary).Methods("GET")
	protected.HandleFunc("/progression/experience", progressionHandler.AddExperience).Methods("POST")
	protected.HandleFunc("/progression/quiz", progressionHandler.CompleteQuiz).Methods("POST")
	protected.HandleFunc("/progression/lesson", progressionHandler.CompleteLesson).Methods("POST")
	protected.HandleFunc("/progression/recalculate", progressionHandler.RecalculateLevel).Methods("POST")

	protected.HandleFunc("/achievements", progressionHandler.GetAchievements).Methods("GET")
	protected.HandleFunc("/achievements/check", progressionHandler.CheckAchievements).Methods("POST")
	protected.HandleFunc("/achievements/viewed", progressionHandler.MarkAchievementsViewed).Methods("PUT")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Admin-Key", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
