package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"code-assistant/internal/handlers"
	"code-assistant/internal/middleware"
	"code-assistant/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	conversationHandler *handlers.ConversationHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	chatLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/modes", handlers.ListModes)

		// ──── Conversation Routes ────
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create) // Public, issues the token

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/{id}", conversationHandler.Get)

				r.With(chatLimiter.Middleware).Post("/{id}/messages", chatHandler.SendMessage)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
