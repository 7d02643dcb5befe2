package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/rndhub/go-rnd-hub/internal/api/auth"
	"github.com/rndhub/go-rnd-hub/internal/api/notification"
	"github.com/rndhub/go-rnd-hub/internal/api/oauth"
	"github.com/rndhub/go-rnd-hub/internal/api/session"
	"github.com/rndhub/go-rnd-hub/internal/types"
)

// Config carries the handlers and middleware the router mounts.
type Config struct {
	AuthHandler         *auth.HandlerImpl
	NotificationHandler *notification.HandlerImpl
	OAuthHandler        *oauth.HandlerImpl
	SessionMW           *session.Middleware
}

// SetupRouter mounts the full HTTP surface on the given router.
func SetupRouter(r chi.Router, cfg Config) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	// Public surface.
	r.Group(func(r chi.Router) {
		r.Post("/auth/register", cfg.AuthHandler.Register)
		r.Post("/auth/login", cfg.AuthHandler.Login)
		r.Post("/auth/reset-password", cfg.AuthHandler.ResetPassword)
		r.Get("/auth/{provider}", cfg.OAuthHandler.Begin)
		r.Get("/auth/{provider}/callback", cfg.OAuthHandler.Callback)
	})

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(cfg.SessionMW.RequireAuth)

		r.Get("/auth/me", cfg.AuthHandler.Me)
		r.Post("/auth/logout", cfg.AuthHandler.Logout)
		r.Post("/auth/change-password", cfg.AuthHandler.ChangePassword)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Delete("/", cfg.NotificationHandler.DeleteAll)
			r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllAsRead)
			r.Get("/{notificationID}/related", cfg.NotificationHandler.Related)
			r.Post("/{notificationID}/read", cfg.NotificationHandler.MarkAsRead)
			r.Delete("/{notificationID}", cfg.NotificationHandler.Delete)
		})

		// Administrative surface.
		r.Group(func(r chi.Router) {
			r.Use(cfg.SessionMW.RequireRole(types.RoleAdmin))

			r.Post("/admin/users/set-password", cfg.AuthHandler.AdminSetPassword)
			r.Post("/admin/users/initiate-reset", cfg.AuthHandler.AdminInitiateReset)
			r.Post("/admin/users/{userID}/deactivate", cfg.AuthHandler.AdminDeactivateUser)
			r.Post("/admin/users/{userID}/reactivate", cfg.AuthHandler.AdminReactivateUser)
			r.Post("/admin/notifications", cfg.NotificationHandler.AdminCreate)
		})
	})
}
