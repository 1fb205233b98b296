package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chathub-backend/internal/handlers"
	"chathub-backend/internal/middleware"
	"chathub-backend/internal/session"
	"chathub-backend/internal/websocket"
)

func New(
	sessions *session.Store,
	authHandler *handlers.AuthHandler,
	hubHandler *handlers.HubHandler,
	chatHandler *handlers.ChatHandler,
	dashboardHandler *handlers.DashboardHandler,
	wsHub *websocket.Hub,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Websocket auth is the token, not the cookie
	r.Get("/ws", wsHub.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)

		// ──── Auth (public) ────
		r.Get("/login", authHandler.LoginPage)
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)

		// ──── Pages ────
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", hubHandler.Index)
			r.Get("/chat/{bot}", chatHandler.Page)
			r.Post("/chat/{bot}", chatHandler.Send)
			r.Post("/chat/{bot}/clear", chatHandler.Clear)
			r.Get("/dashboard", dashboardHandler.Page)
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.APILogin)
				r.Post("/logout", authHandler.APILogout)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAPIAuth)

				// ──── Chat Routes ────
				r.Route("/chat/{bot}/messages", func(r chi.Router) {
					r.Get("/", chatHandler.Messages)
					r.Post("/", chatHandler.PostMessage)
					r.Delete("/", chatHandler.ClearMessages)
				})

				// ──── Dashboard Routes ────
				r.Route("/dashboard", func(r chi.Router) {
					r.Get("/status", dashboardHandler.APIStatus)
					r.Get("/overview", dashboardHandler.APIOverview)
					r.Get("/zips", dashboardHandler.APIZips)
					r.Get("/listings", dashboardHandler.APIListings)
					r.Get("/trends", dashboardHandler.APITrends)
				})
			})
		})
	})

	return r
}
