package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Chat           *handlers.ChatHandler
	Knowledge      *handlers.KnowledgeHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register-tenant", cfg.Users.RegisterTenant)
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	chat := app.Group("/chat", cfg.AuthMiddleware.Handle)
	chat.Post("/customer", auth.RequireRole(domain.RoleCustomer), cfg.Chat.CustomerMessage)
	chat.Get("/sessions/:session_id", auth.RequireRole(domain.RoleCustomer), cfg.Chat.SessionHistory)
	chat.Post("/assist", auth.RequireStaff(), cfg.Chat.Assist)

	kb := app.Group("/kb", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	kb.Post("/items", auth.RequireRole(domain.RoleAdmin), cfg.Knowledge.CreateItem)
	kb.Get("/items", cfg.Knowledge.ListItems)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleCustomer))
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/notes", cfg.Tickets.AddNote)

	staff := app.Group("/staff", cfg.AuthMiddleware.Handle, auth.RequireStaff())
	staff.Post("/agents", auth.RequireRole(domain.RoleAdmin), cfg.Users.CreateAgent)
	staff.Get("/agents", cfg.Users.ListAgents)
	staff.Get("/tickets", cfg.StaffTickets.ListTickets)
	staff.Get("/tickets/:id", cfg.StaffTickets.GetTicket)
	staff.Patch("/tickets/:id", cfg.StaffTickets.UpdateTicket)
	staff.Post("/tickets/:id/notes", cfg.StaffTickets.AddNote)
	staff.Get("/tickets/:id/suggestions", cfg.StaffTickets.Suggestions)
}
