package routes

import (
	"net/http"

	"github.com/Dosada05/stage-engine/handlers"
	"github.com/Dosada05/stage-engine/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes wires the HTTP surface. Reads and the subscription stream are
// public; everything that mutates a stage requires an organizer token.
func SetupRoutes(
	router *chi.Mux,
	stageHandler *handlers.StageHandler,
	matchHandler *handlers.MatchHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
	corsAllowedOrigins []string,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Route("/stages/{stageID}", func(r chi.Router) {
		r.Get("/", stageHandler.GetByIDHandler)
		r.Get("/matches", matchHandler.ListByStageHandler)
		r.Get("/leaderboard", stageHandler.LeaderboardHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("organizer"))

			r.Patch("/", stageHandler.UpdateHandler)
			r.Post("/matches/generate", stageHandler.GenerateMatchesHandler)
			r.Put("/matches/{matchID}", matchHandler.UpdateHandler)
		})
	})

	router.Get("/ws/stages/{stageID}", webSocketHandler.ServeWs)
}
