package api

import (
	"net/http"

	"github.com/socialx/agent/internal/auth"
)

// SetupRoutes configures all API routes. Mutating routes require a valid
// JWT; read-only routes are open.
func SetupRoutes(mux *http.ServeMux, handler *Handler, authConfig auth.Config) {
	authHandler := NewAuthHandler(authConfig, handler.logger)
	authMiddleware := auth.AuthMiddleware(authConfig)

	// Authentication (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)

	// Agent status (public)
	mux.HandleFunc("/api/agent/status", handler.AgentStatusHandler)

	// Action queue
	mux.HandleFunc("/api/actions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListActionsHandler(w, r)
		case http.MethodPost:
			authMiddleware(http.HandlerFunc(handler.CreateActionHandler)).ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/actions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/actions/" {
			http.NotFound(w, r)
			return
		}
		authMiddleware(http.HandlerFunc(handler.CancelActionHandler)).ServeHTTP(w, r)
	})

	// Manual post (auth)
	mux.HandleFunc("/api/tweet", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(handler.ManualTweetHandler)).ServeHTTP(w, r)
	})

	// Activity log (public)
	mux.HandleFunc("/api/activity", handler.ListActivityHandler)

	// Personality
	mux.HandleFunc("/api/personality", handler.GetPersonalityHandler)
	mux.HandleFunc("/api/personality/learn", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(handler.LearnPersonalityHandler)).ServeHTTP(w, r)
	})
}
