package main

import (
	"fmt"
	"net/http"

	"github.com/nexusai/nexus/internal/auth"
	"github.com/nexusai/nexus/internal/chat"
	"github.com/nexusai/nexus/internal/config"
	"github.com/nexusai/nexus/internal/database"
	"github.com/nexusai/nexus/internal/email"
	"github.com/nexusai/nexus/internal/middleware"
	"github.com/nexusai/nexus/internal/token"
	"github.com/nexusai/nexus/internal/user"
	"github.com/sirupsen/logrus"
	"goji.io"
	"goji.io/pat"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// charger la config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erreur lors du chargement de la configuration: %v", err)
	}

	// initialiser la DB
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Erreur lors de la connexion à la base de données: %v", err)
	}
	defer db.Close()

	// exec les migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Erreur lors de l'exécution des migrations: %v", err)
	}

	// init les services
	userRepo := user.NewPostgresRepository(db)
	emailService := email.NewService(cfg.SMTP, log)

	tokenService, err := token.NewService(cfg.Auth)
	if err != nil {
		// secret de signature absent: condition fatale, pas de bypass
		log.Fatalf("Erreur de configuration des tokens: %v", err)
	}

	authService := auth.NewService(userRepo, emailService, cfg.ClientURL, log)
	chatService := chat.NewService(cfg.Inference, log)

	// init les handlers
	authHandlers := auth.NewHandlers(authService, tokenService, log)
	chatHandlers := chat.NewHandlers(chatService, log)

	// init les middlewares
	authMiddleware := middleware.NewAuthMiddleware(tokenService, userRepo, log)

	// creation multiplexeur goji
	mux := goji.NewMux()
	mux.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigin))
	mux.Use(middleware.LoggingMiddleware(log))

	// route de santé
	mux.HandleFunc(pat.Get("/"), func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "API is working")
	})

	// API d'authentification
	mux.HandleFunc(pat.Post("/api/v1/signup"), authHandlers.SignupHandler)
	mux.HandleFunc(pat.Post("/api/v1/verify-email"), authHandlers.VerifyEmailHandler)
	mux.HandleFunc(pat.Post("/api/v1/signin"), authHandlers.SigninHandler)
	mux.HandleFunc(pat.Post("/api/v1/signout"), authHandlers.SignoutHandler)
	mux.HandleFunc(pat.Post("/api/v1/forgot-password"), authHandlers.ForgotPasswordHandler)
	mux.HandleFunc(pat.Post("/api/v1/reset-password/:token"), authHandlers.ResetPasswordHandler)

	// routes protegees
	mux.Handle(pat.Get("/api/v1/check-auth"),
		authMiddleware.RequireAuth(http.HandlerFunc(authHandlers.CheckAuthHandler)))
	mux.Handle(pat.Post("/api/chat"),
		authMiddleware.RequireAuth(http.HandlerFunc(chatHandlers.SendMessageHandler)))

	// start le serv
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Infof("Serveur démarré sur http://localhost%s", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, mux))
}
