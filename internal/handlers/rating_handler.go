package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/ratings"
)

type RatingHandler struct {
	Ratings *ratings.Service
}

func NewRatingHandler(svc *ratings.Service) *RatingHandler {
	return &RatingHandler{Ratings: svc}
}

type RateReq struct {
	AssignmentID uint    `json:"idAsignacion" validate:"required,gt=0"`
	WorkerEmail  string  `json:"emailTrabajador" validate:"required,email"`
	Stars        int     `json:"estrellas" validate:"required,gte=1,lte=5"`
	Review       *string `json:"resena" validate:"omitempty,max=1000"`
}

func (h *RatingHandler) Rate(c *fiber.Ctx) error {
	var req RateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.Ratings.Rate(c.UserContext(), ratings.RateInput{
		ContractorEmail: middleware.Email(c),
		WorkerEmail:     req.WorkerEmail,
		AssignmentID:    req.AssignmentID,
		Stars:           req.Stars,
		Review:          req.Review,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Calificación registrada", res)
}

func (h *RatingHandler) ListForWorker(c *fiber.Ctx) error {
	email := strings.ToLower(strings.TrimSpace(c.Params("email")))
	if email == "" {
		return apperr.Validation("El email es requerido")
	}
	list, err := h.Ratings.ListForWorker(c.UserContext(), email, c.QueryInt("limite", 0))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", list)
}
