package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"PulseMessenger/server/internal/appMiddleware"
	"PulseMessenger/server/internal/config"
	"PulseMessenger/server/internal/crypto"
	"PulseMessenger/server/internal/db"
	"PulseMessenger/server/internal/email"
	"PulseMessenger/server/internal/handlers"
	"PulseMessenger/server/internal/media"
	"PulseMessenger/server/internal/pool"
	"PulseMessenger/server/internal/services"
	"PulseMessenger/server/internal/storage/pgstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	ctx := context.Background()

	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer dbPool.Close()

	if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
		log.Fatalf("Error running migrations: %v", err)
	}

	cipher, err := crypto.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Error initializing cipher: %v", err)
	}

	mediaStore, err := media.NewStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Error initializing media store: %v", err)
	}

	store := pgstore.New(dbPool)
	connPool := pool.New()
	clock := clockwork.NewRealClock()
	mailer := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	auth := appMiddleware.NewAuth(cfg.JWTSecret)

	userService := services.NewUserService(store, cipher, mailer, clock)
	membershipService := services.NewMembershipService(store, connPool, cipher, clock)
	messageService := services.NewMessageService(store, connPool, cipher, clock)

	authHandler := &handlers.AuthHandler{Users: userService, Auth: auth}
	userHandler := &handlers.UserHandler{Users: userService, Media: mediaStore}
	inviteHandler := &handlers.InviteHandler{Members: membershipService}
	chatHandler := &handlers.ChatHandler{Messages: messageService, Members: membershipService}
	mediaHandler := &handlers.MediaHandler{Media: mediaStore}
	wsHandler := &handlers.WebSocketHandler{Pool: connPool, Auth: auth, Messages: messageService}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appMiddleware.CorsMiddleware)

	r.Post("/register", authHandler.Register)
	r.Post("/verify-registration", authHandler.VerifyRegistration)
	r.Post("/login", authHandler.Login)
	r.Post("/forgot-password", authHandler.ForgotPassword)
	r.Post("/reset-password", authHandler.ResetPassword)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/change-password", authHandler.ChangePassword)

		r.Get("/users/search", userHandler.Search)
		r.Get("/profile", userHandler.GetProfile)
		r.Put("/profile", userHandler.UpdateProfile)

		r.Post("/media", mediaHandler.Upload)

		r.Get("/invites", inviteHandler.List)
		r.Post("/invites", inviteHandler.Create)
		r.Put("/invites/{id}", inviteHandler.Respond)

		r.Get("/chats", chatHandler.List)
		r.Post("/chats/direct", chatHandler.CreateDirect)
		r.Post("/chats/group", chatHandler.CreateGroup)
		r.Get("/chats/{chat_id}/messages", chatHandler.GetMessages)
		r.Post("/chats/{chat_id}/messages", chatHandler.SendMessage)
		r.Put("/chats/{chat_id}/messages/{message_id}", chatHandler.EditMessage)
		r.Delete("/chats/{chat_id}/messages/{message_id}", chatHandler.DeleteMessage)
		r.Put("/chats/{chat_id}/read", chatHandler.MarkRead)
		r.Put("/chats/{chat_id}/archive", chatHandler.Archive)
		r.Put("/chats/{chat_id}/unarchive", chatHandler.Unarchive)
		r.Put("/chats/{chat_id}/delete", chatHandler.DeleteForMe)
	})

	r.Get("/ws", wsHandler.Serve)

	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Error shutting down server: %v", err)
	}

	log.Println("Server stopped")
}
