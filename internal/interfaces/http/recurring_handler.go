package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/invorya-gst/internal/application/dto"
	"github.com/jhoicas/invorya-gst/internal/application/recurring"
)

// RecurringTemplateHandler administración de plantillas de facturas recurrentes.
type RecurringTemplateHandler struct {
	uc *recurring.TemplateUseCase
}

// NewRecurringTemplateHandler construye el handler.
func NewRecurringTemplateHandler(uc *recurring.TemplateUseCase) *RecurringTemplateHandler {
	return &RecurringTemplateHandler{uc: uc}
}

// Create godoc
// @Summary      Crear plantilla recurrente
// @Tags         recurring-templates
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateTemplateRequest  true  "factura base y recurrencia"
// @Success      201   {object}  dto.TemplateResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/recurring-templates [post]
func (h *RecurringTemplateHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTemplateRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar plantillas
// @Tags         recurring-templates
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "límite (por defecto 20)"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200  {array}  dto.TemplateResponse
// @Router       /api/recurring-templates [get]
func (h *RecurringTemplateHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.uc.List(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": list,
		"page":  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Count: len(list)},
	})
}

// Get godoc
// @Summary      Obtener plantilla
// @Tags         recurring-templates
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la plantilla"
// @Success      200  {object}  dto.TemplateResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/recurring-templates/{id} [get]
func (h *RecurringTemplateHandler) Get(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Actualizar plantilla (parcial)
// @Tags         recurring-templates
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la plantilla"
// @Param        body  body  dto.UpdateTemplateRequest  true  "campos a cambiar"
// @Success      200  {object}  dto.TemplateResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/recurring-templates/{id} [put]
func (h *RecurringTemplateHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateTemplateRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Update(c.Context(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar plantilla
// @Tags         recurring-templates
// @Security     Bearer
// @Param        id  path  string  true  "ID de la plantilla"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/recurring-templates/{id} [delete]
func (h *RecurringTemplateHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Pause POST /api/recurring-templates/:id/pause
func (h *RecurringTemplateHandler) Pause(c *fiber.Ctx) error {
	out, err := h.uc.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Resume POST /api/recurring-templates/:id/resume
func (h *RecurringTemplateHandler) Resume(c *fiber.Ctx) error {
	out, err := h.uc.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Invoices GET /api/recurring-templates/:id/invoices
func (h *RecurringTemplateHandler) Invoices(c *fiber.Ctx) error {
	list, err := h.uc.ListInvoices(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// Generate godoc
// @Summary      Generar factura ahora
// @Description  Genera la siguiente factura si la plantilla está debida. Sin reintentos.
// @Tags         recurring-templates
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la plantilla"
// @Success      201  {object}  entity.Invoice
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/recurring-templates/{id}/generate [post]
func (h *RecurringTemplateHandler) Generate(c *fiber.Ctx) error {
	inv, err := h.uc.GenerateNow(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}
