// Package api serves the read-only web view of the ledger: Discord OAuth
// login, then JWT-protected endpoints for the caller's balances.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/avoevodin/debtbot/internal/config"
	"github.com/avoevodin/debtbot/internal/ledger"
)

type API struct {
	router      *mux.Router
	ledger      *ledger.Service
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	log         zerolog.Logger
}

func New(cfg *config.Config, svc *ledger.Service, log zerolog.Logger) *API {
	api := &API{
		router:    mux.NewRouter(),
		ledger:    svc,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		log:       log.With().Str("component", "api").Logger(),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/me", a.handleMe).Methods("GET")
	protected.HandleFunc("/me/borrowers", a.handleMyBorrowers).Methods("GET")
	protected.HandleFunc("/me/debts", a.handleMyDebts).Methods("GET")
	protected.HandleFunc("/events/{name}/balances", a.handleEventBalances).Methods("GET")
}

func (a *API) Start() error {
	// Setup CORS - allow all origins for development, restrict in production
	// Note: When AllowedOrigins is "*", AllowCredentials must be false for security
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}

	handler := cors.New(corsOptions).Handler(a.router)

	a.log.Info().Str("bind", a.config.WebBind).Msg("api server listening")
	return http.ListenAndServe(a.config.WebBind, handler)
}
