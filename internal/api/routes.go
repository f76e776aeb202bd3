package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the public router.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.HealthCheck)

	// Action links from outgoing mail.
	r.Get("/message/mailcommand/{type}/{action}/{token}/", h.MailCommandPrompt)
	r.Post("/message/mailcommand/{type}/{action}/{token}/complete/", h.MailCommandComplete)

	// Shortened links.
	r.Get("/r/{code}", h.Redirect)

	r.Post("/api/mailinglist/subscribe", h.Subscribe)

	return r
}
