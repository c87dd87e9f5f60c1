package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/invorya-gst/internal/application/dto"
	"github.com/jhoicas/invorya-gst/internal/application/recurring"
)

// schedulerControl contrato que necesita el handler; lo implementa *recurring.Runner.
type schedulerControl interface {
	Start(intervalMinutes int) error
	Stop()
	ForceCheck(ctx context.Context) recurring.TaskExecutionResult
	UpdateConfig(cfg recurring.CronJobConfig) error
	Status() recurring.RunnerStatus
}

// SchedulerHandler superficie de operador del programador de facturas recurrentes.
type SchedulerHandler struct {
	runner schedulerControl
}

// NewSchedulerHandler construye el handler.
func NewSchedulerHandler(runner schedulerControl) *SchedulerHandler {
	return &SchedulerHandler{runner: runner}
}

// Start godoc
// @Summary      Iniciar programador
// @Tags         scheduler
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StartSchedulerRequest  false  "interval_minutes (opcional)"
// @Success      200   {object}  recurring.RunnerStatus
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/scheduler/start [post]
func (h *SchedulerHandler) Start(c *fiber.Ctx) error {
	var in dto.StartSchedulerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	if in.IntervalMinutes < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "interval_minutes no puede ser negativo"})
	}
	if err := h.runner.Start(in.IntervalMinutes); err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.runner.Status())
}

// Stop godoc
// @Summary      Detener programador
// @Tags         scheduler
// @Security     Bearer
// @Produce      json
// @Success      200   {object}  recurring.RunnerStatus
// @Router       /api/scheduler/stop [post]
func (h *SchedulerHandler) Stop(c *fiber.Ctx) error {
	h.runner.Stop()
	return c.JSON(h.runner.Status())
}

// Trigger godoc
// @Summary      Ejecutar el lote ahora
// @Description  Si ya hay un lote en curso responde 409 con errors=["Task is already running"].
// @Tags         scheduler
// @Security     Bearer
// @Produce      json
// @Success      200   {object}  recurring.TaskExecutionResult
// @Failure      409   {object}  recurring.TaskExecutionResult
// @Router       /api/scheduler/trigger [post]
func (h *SchedulerHandler) Trigger(c *fiber.Ctx) error {
	res := h.runner.ForceCheck(c.Context())
	if res.AlreadyRunning() {
		return c.Status(fiber.StatusConflict).JSON(res)
	}
	return c.JSON(res)
}

// UpdateConfig godoc
// @Summary      Actualizar configuración del programador
// @Tags         scheduler
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.UpdateSchedulerConfigRequest  true  "enabled, schedule (cron), timezone (IANA)"
// @Success      200   {object}  recurring.RunnerStatus
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/scheduler/config [put]
func (h *SchedulerHandler) UpdateConfig(c *fiber.Ctx) error {
	var in dto.UpdateSchedulerConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	cfg := recurring.CronJobConfig{Enabled: in.Enabled, Schedule: in.Schedule, Timezone: in.Timezone}
	if err := h.runner.UpdateConfig(cfg); err != nil {
		return writeError(c, err)
	}
	return c.JSON(h.runner.Status())
}

// Status godoc
// @Summary      Estado del programador
// @Tags         scheduler
// @Security     Bearer
// @Produce      json
// @Success      200   {object}  recurring.RunnerStatus
// @Router       /api/scheduler/status [get]
func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.runner.Status())
}
