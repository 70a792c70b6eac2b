package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"wandernest-backend/internal/handlers"
	"wandernest-backend/internal/middleware"
	"wandernest-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	chatLimiter middleware.Limiter,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Get("/health", chatHandler.Health)
		r.Get("/ws", wsHub.HandleWebSocket)

		// ──── Authenticated Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.With(middleware.RateLimit(chatLimiter)).Post("/chat", chatHandler.Chat)
			r.Get("/usage", chatHandler.Usage)
		})
	})

	return r
}
