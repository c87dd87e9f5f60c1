package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/invorya-gst/internal/application/recurring"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Scheduler  *recurring.Runner
	TemplateUC *recurring.TemplateUseCase
	JWTSecret  string
	AppName    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	register(app, deps.Scheduler, deps.TemplateUC, deps.JWTSecret, deps.AppName)
}

func register(app *fiber.App, scheduler schedulerControl, templateUC *recurring.TemplateUseCase, jwtSecret, appName string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":            "ok",
			"service":           appName,
			"scheduler_running": scheduler.Status().Running,
		})
	})

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(jwtSecret))

	// Programador (solo admin)
	sched := protected.Group("/scheduler", RequireRole(RoleAdmin))
	schedulerHandler := NewSchedulerHandler(scheduler)
	sched.Post("/start", schedulerHandler.Start)
	sched.Post("/stop", schedulerHandler.Stop)
	sched.Post("/trigger", schedulerHandler.Trigger)
	sched.Put("/config", schedulerHandler.UpdateConfig)
	sched.Get("/status", schedulerHandler.Status)

	// Plantillas: lectura para cualquier usuario autenticado, cambios para admin/billing
	templates := protected.Group("/recurring-templates")
	templateHandler := NewRecurringTemplateHandler(templateUC)
	writers := RequireRole(RoleAdmin, RoleBilling)
	templates.Get("/", templateHandler.List)
	templates.Get("/:id", templateHandler.Get)
	templates.Get("/:id/invoices", templateHandler.Invoices)
	templates.Post("/", writers, templateHandler.Create)
	templates.Put("/:id", writers, templateHandler.Update)
	templates.Delete("/:id", writers, templateHandler.Delete)
	templates.Post("/:id/pause", writers, templateHandler.Pause)
	templates.Post("/:id/resume", writers, templateHandler.Resume)
	templates.Post("/:id/generate", writers, templateHandler.Generate)
}
