package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/assignments"
)

type AssignmentHandler struct {
	Assignments *assignments.Service
}

func NewAssignmentHandler(svc *assignments.Service) *AssignmentHandler {
	return &AssignmentHandler{Assignments: svc}
}

type AssignReq struct {
	JobRefReq
	WorkerEmail string `json:"emailTrabajador" validate:"required,email"`
	RequestID   *uint  `json:"idSolicitud" validate:"omitempty,gt=0"`
}

func (h *AssignmentHandler) Assign(c *fiber.Ctx) error {
	var req AssignReq
	if err := bind(c, &req); err != nil {
		return err
	}
	job, err := req.ref()
	if err != nil {
		return err
	}
	res, err := h.Assignments.Assign(c.UserContext(), assignments.AssignInput{
		ContractorEmail: middleware.Email(c),
		WorkerEmail:     req.WorkerEmail,
		Job:             job,
		RequestID:       req.RequestID,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Trabajador asignado", res)
}

type CancelReq struct {
	// the other party: a worker when a contractor cancels and vice versa
	Email                   string `json:"email" validate:"required,email"`
	SkipDefaultNotification bool   `json:"omitirNotificacion"`
}

// Cancel is shared by both roles; the caller's role decides who initiated it.
func (h *AssignmentHandler) Cancel(c *fiber.Ctx) error {
	var req CancelReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in := assignments.CancelInput{SkipDefaultNotification: req.SkipDefaultNotification}
	if middleware.Role(c) == models.RoleWorker {
		in.WorkerEmail = middleware.Email(c)
		in.ContractorEmail = req.Email
		in.InitiatedByWorker = true
	} else {
		in.ContractorEmail = middleware.Email(c)
		in.WorkerEmail = req.Email
	}
	res, err := h.Assignments.Cancel(c.UserContext(), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Asignación cancelada", res)
}

type ratingItem struct {
	AssignmentID uint    `json:"idAsignacion" validate:"required,gt=0"`
	WorkerEmail  string  `json:"emailTrabajador" validate:"required,email"`
	Stars        int     `json:"estrellas" validate:"required,gte=1,lte=5"`
	Review       *string `json:"resena" validate:"omitempty,max=1000"`
}

type FinalizeReq struct {
	JobRefReq
	Ratings []ratingItem `json:"calificaciones" validate:"required,min=1,dive"`
}

func (h *AssignmentHandler) Finalize(c *fiber.Ctx) error {
	var req FinalizeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	job, err := req.ref()
	if err != nil {
		return err
	}
	items := make([]assignments.RatingInput, 0, len(req.Ratings))
	for _, r := range req.Ratings {
		items = append(items, assignments.RatingInput(r))
	}
	res, err := h.Assignments.Finalize(c.UserContext(), assignments.FinalizeInput{
		ContractorEmail: middleware.Email(c),
		Job:             job,
		Ratings:         items,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Trabajo finalizado", res)
}

func (h *AssignmentHandler) ListForContractor(c *fiber.Ctx) error {
	list, err := h.Assignments.ListForContractor(c.UserContext(), middleware.Email(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", list)
}

func jobRefFromPath(c *fiber.Ctx) (models.JobRef, error) {
	kind, okKind := models.ParseJobKind(c.Params("tipo"))
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if !okKind || err != nil || id == 0 {
		return models.JobRef{}, apperr.Validation("Tipo o id de trabajo inválido")
	}
	return models.JobRef{Kind: kind, ID: uint(id)}, nil
}

func (h *AssignmentHandler) WorkersForJob(c *fiber.Ctx) error {
	job, err := jobRefFromPath(c)
	if err != nil {
		return err
	}
	list, err := h.Assignments.WorkersForJob(c.UserContext(), middleware.Email(c), job)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", list)
}

func (h *AssignmentHandler) Current(c *fiber.Ctx) error {
	cur, err := h.Assignments.CurrentForWorker(c.UserContext(), middleware.Email(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cur})
}

type NoticeReq struct {
	JobRefReq
	WorkerEmail string `json:"emailTrabajador" validate:"required,email"`
}

func (h *AssignmentHandler) NotifyInterest(c *fiber.Ctx) error {
	var req NoticeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	job, err := req.ref()
	if err != nil {
		return err
	}
	if err := h.Assignments.NotifyInterest(c.UserContext(), middleware.Email(c), req.WorkerEmail, job); err != nil {
		return err
	}
	return ok(c, fiber.StatusAccepted, "Notificación enviada", nil)
}

func (h *AssignmentHandler) NotifyCancellation(c *fiber.Ctx) error {
	var req NoticeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	job, err := req.ref()
	if err != nil {
		return err
	}
	if err := h.Assignments.NotifyContractorCancellation(c.UserContext(), middleware.Email(c), req.WorkerEmail, job); err != nil {
		return err
	}
	return ok(c, fiber.StatusAccepted, "Notificación enviada", nil)
}
