package handlers

import (
	"net/http"

	"taskmanager/blob"
	"taskmanager/middleware"
	"taskmanager/store"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Store          *store.Store
	Blobs          blob.Store
	Tokens         *middleware.Tokens
	DB             *gorm.DB
	Log            *zap.Logger
	MaxUploadBytes int64
}

// NewRouter mounts the JSON API under /api and the health check at /health.
// Trailing slashes are optional.
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Store, d.Tokens, d.Blobs, d.Log)
	projectHandler := NewProjectHandler(d.Store, d.Blobs, d.Log)
	taskHandler := NewTaskHandler(d.Store, d.Blobs, d.Log)
	tagHandler := NewTagHandler(d.Store, d.Log)
	commentHandler := NewCommentHandler(d.Store, d.Log)
	attachmentHandler := NewAttachmentHandler(d.Store, d.Blobs, d.MaxUploadBytes, d.Log)
	healthHandler := NewHealthHandler(d.DB, d.Log)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.StripSlashes)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found."})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method \"" + r.Method + "\" not allowed."})
	})

	requireAuth := middleware.AuthMiddleware(d.Tokens, d.Store)

	router.Get("/health", healthHandler.Check)

	router.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			// Public routes
			r.Post("/register", authHandler.Register)
			r.Post("/token", authHandler.Token)
			r.Post("/token/refresh", authHandler.Refresh)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", authHandler.ListUsers)
				r.Post("/logout", authHandler.Logout)
				r.Get("/profile", authHandler.Profile)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Patch("/profile", authHandler.UpdateProfile)
				r.Delete("/profile", authHandler.DeleteProfile)
				r.Post("/change-password", authHandler.ChangePassword)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", projectHandler.List)
			r.Post("/", projectHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Put("/", projectHandler.Update)
				r.Patch("/", projectHandler.PartialUpdate)
				r.Delete("/", projectHandler.Delete)
				r.Post("/add_member", projectHandler.AddMember)
				r.Post("/remove_member", projectHandler.RemoveMember)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(requireAuth)
			r.Route("/tags", func(r chi.Router) {
				r.Get("/", tagHandler.List)
				r.Post("/", tagHandler.Create)
				r.Get("/{id}", tagHandler.Get)
				r.Put("/{id}", tagHandler.Update)
				r.Patch("/{id}", tagHandler.PartialUpdate)
				r.Delete("/{id}", tagHandler.Delete)
			})
			r.Route("/comments", func(r chi.Router) {
				r.Get("/", commentHandler.List)
				r.Post("/", commentHandler.Create)
				r.Get("/{id}", commentHandler.Get)
				r.Put("/{id}", commentHandler.Update)
				r.Patch("/{id}", commentHandler.PartialUpdate)
				r.Delete("/{id}", commentHandler.Delete)
			})
			r.Route("/attachments", func(r chi.Router) {
				r.Get("/", attachmentHandler.List)
				r.Post("/", attachmentHandler.Create)
				r.Get("/{id}", attachmentHandler.Get)
				r.Get("/{id}/download", attachmentHandler.Download)
				r.Put("/{id}", attachmentHandler.Update)
				r.Patch("/{id}", attachmentHandler.Update)
				r.Delete("/{id}", attachmentHandler.Delete)
			})

			r.Get("/", taskHandler.List)
			r.Post("/", taskHandler.Create)
			r.Get("/{id}", taskHandler.Get)
			r.Put("/{id}", taskHandler.Update)
			r.Patch("/{id}", taskHandler.PartialUpdate)
			r.Delete("/{id}", taskHandler.Delete)
		})
	})

	return router
}
