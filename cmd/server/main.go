package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/poof/backend/internal/config"
	"github.com/poof/backend/internal/handlers"
	appMiddleware "github.com/poof/backend/internal/middleware"
	"github.com/poof/backend/internal/services"
	"github.com/poof/backend/internal/store"
)

const maxUploadSizeMB = 10

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Firebase Auth (server-side verification of ID tokens + account deletion)
	authClient, err := appMiddleware.NewFirebaseAuthClient(ctx, appMiddleware.FirebaseAuthConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
		CredentialsFile: cfg.FirebaseCredentialsFile,
	})
	if err != nil {
		log.Printf("Warning: failed to initialize Firebase Auth client: %v", err)
	}

	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, credentialOptions(cfg)...)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore client: %v", err)
	}
	defer fsClient.Close()

	fsStore, err := store.NewFirestoreStore(fsClient)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore store: %v", err)
	}

	blobs := newBlobStore(ctx, cfg)

	// Redis is optional; the send rate limiter fails open without it.
	var rdb *redis.Client
	if cfg.RedisURI != "" {
		opt, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URI, rate limiting disabled: %v", err)
		} else {
			rdb = redis.NewClient(opt)
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				log.Printf("Warning: redis unreachable, rate limiting disabled: %v", err)
				rdb = nil
			}
			cancel()
		}
	}

	// Services
	groupService := services.NewGroupService(fsClient)
	messageService := services.NewMessageService(fsClient, groupService)
	userService := services.NewUserService(fsClient)
	inviteService := services.NewInviteService(cfg.InviteSecret, 7*24*time.Hour)

	// Handlers
	groupHandler := handlers.NewGroupHandler(groupService, inviteService, fsStore, blobs, maxUploadSizeMB)
	messageHandler := handlers.NewMessageHandler(messageService)
	userHandler := handlers.NewUserHandler(userService, blobs, maxUploadSizeMB)
	accountHandler := handlers.NewAccountHandler(authClient)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.FirebaseAuth(authClient))

			r.Route("/users", func(r chi.Router) {
				r.Post("/", userHandler.CreateProfile)
				r.Get("/me", userHandler.GetMe)
				r.Post("/avatar", userHandler.UploadAvatar)
			})
			r.Get("/usernames/{username}/available", userHandler.UsernameAvailable)

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", groupHandler.ListActive)
				r.Get("/archived", groupHandler.ListArchived)
				r.Post("/", groupHandler.CreateGroup)
				r.Post("/join", groupHandler.JoinGroup)
				r.Post("/join-link", groupHandler.JoinByLink)

				r.Route("/{groupId}", func(r chi.Router) {
					r.Get("/", groupHandler.GetGroup)
					r.Get("/watch", groupHandler.WatchGroup)
					r.Post("/leave", groupHandler.LeaveGroup)
					r.Put("/timer", groupHandler.UpdateTimer)
					r.Post("/poof", groupHandler.PoofNow)
					r.Post("/invite-link", groupHandler.InviteLink)
					r.Post("/avatar", groupHandler.UploadGroupAvatar)

					r.Get("/messages", messageHandler.ListMessages)
					r.With(appMiddleware.SendRateLimit(rdb)).Post("/messages", messageHandler.SendMessage)
					r.Post("/messages/{messageId}/reactions", messageHandler.ToggleReaction)
				})
			})

			r.Delete("/account", accountHandler.DeleteAccount)
		})
	})

	log.Printf("Poof API server starting on %s", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func credentialOptions(cfg *config.Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.FirebaseCredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
	} else if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	return opts
}

// newBlobStore returns the Firebase Storage bucket when configured, falling
// back to a local directory for development.
func newBlobStore(ctx context.Context, cfg *config.Config) store.BlobStore {
	if cfg.StorageBucket != "" {
		client, err := storage.NewClient(ctx, credentialOptions(cfg)...)
		if err != nil {
			log.Fatalf("Failed to initialize storage client: %v", err)
		}
		blobs, err := store.NewGCSBlobStore(client, cfg.StorageBucket)
		if err != nil {
			log.Fatalf("Failed to initialize blob store: %v", err)
		}
		return blobs
	}

	log.Printf("Warning: FIREBASE_STORAGE_BUCKET not set, storing blobs under %s", cfg.BlobDir)
	blobs, err := store.NewLocalBlobStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Failed to initialize local blob store: %v", err)
	}
	return blobs
}
