package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter assembles the route table. Every route is also reachable
// under an /api prefix for clients behind the standard proxy config.
func NewRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(stripAPIPrefix)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	// Ingest authenticates by app name + token in the path.
	r.Post("/ingest/{appName}/{token}", h.ingest)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Route("/mailboxes", func(r chi.Router) {
			// The static /me segment wins over {recipient}: "me" is
			// never a send target.
			r.Get("/me/messages", h.listMessages)
			r.Post("/me/messages", h.listMessages)
			r.Get("/me/messages/search", h.searchMessages)
			r.Post("/me/messages/ack", h.batchAckMessages)
			r.Get("/me/messages/{id}", h.getMessage)
			r.Post("/me/messages/{id}/ack", h.ackMessage)
			r.Post("/me/messages/{id}/reply", h.replyMessage)
			r.Post("/me/messages/{id}/waiting", h.markWaiting)
			r.Delete("/me/messages/{id}/waiting", h.clearWaiting)
			r.Get("/me/counts", h.myCounts)
			r.Get("/me/waiting", h.listWaiting)
			r.Get("/me/waiting-on-others", h.listWaitingOnOthers)
			r.Get("/me/stream", h.mailboxStream)
			r.Post("/{recipient}/messages", h.sendMessage)
		})
		r.Get("/waiting/counts", h.waitingCounts)
		r.Get("/presence", h.getPresence)

		r.Route("/broadcast", func(r chi.Router) {
			r.Post("/webhooks", h.createWebhook)
			r.Get("/webhooks", h.listWebhooks)
			r.Get("/webhooks/{id}", h.getWebhook)
			r.Post("/webhooks/{id}/enable", h.setWebhookEnabled(true))
			r.Post("/webhooks/{id}/disable", h.setWebhookEnabled(false))
			r.Delete("/webhooks/{id}", h.deleteWebhook)
			r.Get("/events", h.listEvents)
		})
		r.Get("/buzz", h.listEvents)
		r.Get("/buzz/stream", h.buzzStream)

		r.Route("/swarm", func(r chi.Router) {
			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.listProjects)
				r.Post("/", h.createProject)
				r.Get("/{id}", h.getProject)
				r.Patch("/{id}", h.updateProject)
				r.Post("/{id}/archive", h.setProjectArchived(true))
				r.Delete("/{id}/archive", h.setProjectArchived(false))
			})
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.listTasks)
				r.Post("/", h.createTask)
				r.Get("/{id}", h.getTask)
				r.Patch("/{id}", h.updateTask)
				r.Post("/{id}/claim", h.claimTask)
				r.Post("/{id}/status", h.setTaskStatus)
				r.Post("/{id}/reorder", h.reorderTask)
				r.Get("/{id}/events", h.taskEvents)
			})
			r.Route("/recurring", func(r chi.Router) {
				r.Post("/run", h.runGenerator)
				r.Route("/templates", func(r chi.Router) {
					r.Get("/", h.listTemplates)
					r.Post("/", h.createTemplate)
					r.Get("/{id}", h.getTemplate)
					r.Patch("/{id}", h.updateTemplate)
					r.Delete("/{id}", h.deleteTemplate)
					r.Post("/{id}/enable", h.setTemplateEnabled(true))
					r.Post("/{id}/disable", h.setTemplateEnabled(false))
				})
			})
		})
	})

	return r
}
