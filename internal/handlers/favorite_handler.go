package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

type FavoriteHandler struct {
	DB *gorm.DB
}

type FavoriteReq struct {
	WorkerEmail string `json:"emailTrabajador" validate:"required,email"`
}

// Add is idempotent: favoriting the same worker twice is not an error.
func (h *FavoriteHandler) Add(c *fiber.Ctx) error {
	var req FavoriteReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	worker := strings.ToLower(strings.TrimSpace(req.WorkerEmail))

	var n int64
	if err := h.DB.WithContext(ctx).Model(&models.Worker{}).Where("email = ?", worker).Count(&n).Error; err != nil {
		return apperr.FromDB(err, "No se pudo verificar el trabajador")
	}
	if n == 0 {
		return apperr.NotFound("Trabajador no encontrado")
	}

	fav := models.Favorite{
		ContractorEmail: middleware.Email(c),
		WorkerEmail:     worker,
		CreatedAt:       time.Now().UTC(),
	}
	err := h.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
	if err != nil {
		return apperr.FromDB(err, "No se pudo guardar el favorito")
	}
	return ok(c, fiber.StatusOK, "Trabajador agregado a favoritos", nil)
}

func (h *FavoriteHandler) Remove(c *fiber.Ctx) error {
	worker := strings.ToLower(strings.TrimSpace(c.Params("email")))
	res := h.DB.WithContext(c.UserContext()).
		Where("email_contratista = ? AND email_trabajador = ?", middleware.Email(c), worker).
		Delete(&models.Favorite{})
	if res.Error != nil {
		return apperr.FromDB(res.Error, "No se pudo eliminar el favorito")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("El trabajador no está en favoritos")
	}
	return ok(c, fiber.StatusOK, "Trabajador eliminado de favoritos", nil)
}

type FavoriteWorker struct {
	Email         string    `json:"email"`
	Name          string    `json:"nombre"`
	Phone         string    `json:"telefono"`
	PhotoURL      string    `json:"foto_perfil"`
	CategoryID    uint      `json:"categoria"`
	AverageRating string    `json:"calificacion_promedio"`
	Available     bool      `json:"disponible"`
	AddedAt       time.Time `json:"agregado_en"`
}

func (h *FavoriteHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var favs []models.Favorite
	if err := h.DB.WithContext(ctx).
		Where("email_contratista = ?", middleware.Email(c)).
		Order("created_at DESC").
		Find(&favs).Error; err != nil {
		return apperr.Internal("No se pudieron obtener los favoritos", err)
	}

	emails := make([]string, 0, len(favs))
	for _, f := range favs {
		emails = append(emails, f.WorkerEmail)
	}
	byEmail := map[string]models.Worker{}
	if len(emails) > 0 {
		var workers []models.Worker
		if err := h.DB.WithContext(ctx).Where("email IN ?", emails).Find(&workers).Error; err != nil {
			return apperr.Internal("No se pudieron obtener los favoritos", err)
		}
		for _, w := range workers {
			byEmail[w.Email] = w
		}
	}

	out := make([]FavoriteWorker, 0, len(favs))
	for _, f := range favs {
		w, found := byEmail[f.WorkerEmail]
		if !found {
			continue
		}
		out = append(out, FavoriteWorker{
			Email:         w.Email,
			Name:          w.DisplayName(),
			Phone:         w.Phone,
			PhotoURL:      w.PhotoURL,
			CategoryID:    w.CategoryID,
			AverageRating: w.AverageRating.StringFixed(2),
			Available:     w.Available,
			AddedAt:       f.CreatedAt,
		})
	}
	return ok(c, fiber.StatusOK, "", out)
}

