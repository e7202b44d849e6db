package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

type CategoryHandler struct {
	DB *gorm.DB
}

func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{DB: db}
}

func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories := []models.Category{}
	if err := h.DB.WithContext(c.UserContext()).Order("nombre").Find(&categories).Error; err != nil {
		return apperr.FromDB(err, "No se pudieron obtener las categorías")
	}
	return ok(c, fiber.StatusOK, "", categories)
}
