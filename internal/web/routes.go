package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/mhrabal/photovault/internal/web/handlers"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(s.deps.Users, sessionManager)
	assetsHandler := handlers.NewAssetsHandler(s.deps.Assets, s.deps.Albums, s.deps.Embeddings)
	albumsHandler := handlers.NewAlbumsHandler(s.deps.Albums, s.deps.Assets)
	searchHandler := handlers.NewSearchHandler(s.deps.Search)
	duplicatesHandler := handlers.NewDuplicatesHandler(s.deps.Duplicates, s.deps.Assets, s.deps.Dedupe)
	statsHandler := handlers.NewStatsHandler(s.deps.Assets, s.deps.Albums, s.deps.Embeddings, s.deps.Duplicates)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes (login must work without a session)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// All other routes require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			r.Get("/auth/me", authHandler.Me)

			// Assets
			r.Get("/assets", assetsHandler.List)
			r.Get("/assets/{id}", assetsHandler.Get)
			r.Put("/assets/{id}/favorite", assetsHandler.Favorite)
			r.Put("/assets/{id}/archive", assetsHandler.Archive)
			r.Delete("/assets/{id}", assetsHandler.Delete)

			// Albums
			r.Get("/albums", albumsHandler.List)
			r.Post("/albums", albumsHandler.Create)
			r.Get("/albums/{id}", albumsHandler.Get)
			r.Put("/albums/{id}", albumsHandler.Update)
			r.Delete("/albums/{id}", albumsHandler.Delete)
			r.Get("/albums/{id}/assets", albumsHandler.GetAssets)
			r.Post("/albums/{id}/assets", albumsHandler.AddAssets)
			r.Delete("/albums/{id}/assets", albumsHandler.RemoveAssets)
			r.Delete("/albums/{id}/assets/all", albumsHandler.ClearAssets)
			r.Post("/albums/{id}/share", albumsHandler.Share)
			r.Delete("/albums/{id}/share/{userId}", albumsHandler.Unshare)

			// Search
			r.Post("/search/metadata", searchHandler.Metadata)
			r.Post("/search/smart", searchHandler.Smart)
			r.Get("/search/suggestions", searchHandler.Suggestions)

			// Duplicates
			r.Get("/duplicates", duplicatesHandler.List)
			r.Post("/duplicates/{id}/resolve", duplicatesHandler.Resolve)
			r.Delete("/duplicates/{id}", duplicatesHandler.Dismiss)
			r.Post("/duplicates/detect", duplicatesHandler.StartDetection)
			r.Get("/duplicates/detect/{jobId}", duplicatesHandler.DetectionStatus)
			r.Get("/duplicates/detect/{jobId}/events", duplicatesHandler.DetectionEvents)
			r.Delete("/duplicates/detect/{jobId}", duplicatesHandler.CancelDetection)

			// Stats
			r.Get("/stats", statsHandler.Get)
		})
	})
}
