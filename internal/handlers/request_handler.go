package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/requests"
)

type RequestHandler struct {
	Requests *requests.Service
}

func NewRequestHandler(svc *requests.Service) *RequestHandler {
	return &RequestHandler{Requests: svc}
}

type JobRefReq struct {
	JobKind string `json:"tipoTrabajo" validate:"required"`
	JobID   uint   `json:"idTrabajo" validate:"required,gt=0"`
}

func (r JobRefReq) ref() (models.JobRef, error) {
	kind, okKind := models.ParseJobKind(r.JobKind)
	if !okKind {
		return models.JobRef{}, apperr.InvalidFields("Error de validación", FieldErrors{"tipoTrabajo": {"Debe ser corto o largo"}})
	}
	return models.JobRef{Kind: kind, ID: r.JobID}, nil
}

func (h *RequestHandler) Apply(c *fiber.Ctx) error {
	var req JobRefReq
	if err := bind(c, &req); err != nil {
		return err
	}
	job, err := req.ref()
	if err != nil {
		return err
	}
	res, err := h.Requests.Apply(c.UserContext(), middleware.Email(c), job)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Solicitud enviada", res)
}

func (h *RequestHandler) PendingCount(c *fiber.Ctx) error {
	res, err := h.Requests.PendingCount(c.UserContext(), middleware.Email(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", res)
}

func (h *RequestHandler) ActiveApplications(c *fiber.Ctx) error {
	refs, err := h.Requests.ActiveApplications(c.UserContext(), middleware.Email(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", refs)
}

func (h *RequestHandler) Pending(c *fiber.Ctx) error {
	req, err := h.Requests.PendingRequest(c.UserContext(), middleware.Email(c))
	if err != nil {
		return err
	}
	// null data when nothing is pending
	return c.JSON(fiber.Map{"success": true, "data": req})
}
