package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/utils"
)

const maxPhotoBytes = 2 * 1024 * 1024

// ProfileHandler edits the caller's own account, whichever role it has.
type ProfileHandler struct {
	DB            *gorm.DB
	UploadDir     string
	PublicBaseURL string
	PhoneRegion   string
}

func accountModel(role models.Role) any {
	if role == models.RoleWorker {
		return &models.Worker{}
	}
	return &models.Contractor{}
}

func folderFor(role models.Role) string {
	if role == models.RoleWorker {
		return "trabajadores"
	}
	return "contratistas"
}

// UploadPhoto stores a jpg or png under UploadDir and points foto_perfil at it.
func (h *ProfileHandler) UploadPhoto(c *fiber.Ctx) error {
	email, role := middleware.Email(c), middleware.Role(c)

	file, err := c.FormFile("foto")
	if err != nil {
		return apperr.InvalidFields("Error de validación", FieldErrors{"foto": {"Campo requerido"}})
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return apperr.InvalidFields("Error de validación", FieldErrors{"foto": {"Solo jpg, jpeg o png"}})
	}
	if file.Size > maxPhotoBytes {
		return apperr.InvalidFields("Error de validación", FieldErrors{"foto": {"Tamaño máximo 2MB"}})
	}

	dir := filepath.Join(h.UploadDir, folderFor(role))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Internal("No se pudo guardar la foto", err)
	}
	filename := uuid.New().String() + ext
	if err := c.SaveFile(file, filepath.Join(dir, filename)); err != nil {
		return apperr.Internal("No se pudo guardar la foto", err)
	}

	publicURL := fmt.Sprintf("%s/uploads/%s/%s", strings.TrimRight(h.PublicBaseURL, "/"), folderFor(role), filename)
	res := h.DB.WithContext(c.UserContext()).Model(accountModel(role)).
		Where("email = ?", email).
		Update("foto_perfil", publicURL)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "No se pudo actualizar el perfil")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Usuario no encontrado")
	}
	return ok(c, fiber.StatusOK, "Foto actualizada", fiber.Map{"foto_perfil": publicURL})
}

type UpdateProfileReq struct {
	FirstName  *string `json:"nombre" validate:"omitempty,min=1,max=100"`
	LastName   *string `json:"apellido" validate:"omitempty,max=100"`
	Phone      *string `json:"telefono"`
	Experience *int    `json:"experiencia" validate:"omitempty,gte=0,lte=80"`
	CategoryID *uint   `json:"categoria" validate:"omitempty,gt=0"`
	Company    *string `json:"empresa" validate:"omitempty,max=150"`
}

// Update applies the fields present in the body. Worker-only fields sent by
// a contractor, and the reverse, are rejected.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var req UpdateProfileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.UserContext()
	role := middleware.Role(c)

	changes := map[string]any{}
	errs := FieldErrors{}
	if req.FirstName != nil {
		changes["nombre"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		changes["apellido"] = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		phone, err := utils.NormalizePhone(*req.Phone, h.PhoneRegion)
		if err != nil {
			errs.Add("telefono", "Número de teléfono inválido")
		} else {
			changes["telefono"] = phone
		}
	}
	if role == models.RoleWorker {
		if req.Company != nil {
			errs.Add("empresa", "Solo para contratistas")
		}
		if req.Experience != nil {
			changes["experiencia"] = *req.Experience
		}
		if req.CategoryID != nil {
			var n int64
			if err := h.DB.WithContext(ctx).Model(&models.Category{}).Where("id_categoria = ?", *req.CategoryID).Count(&n).Error; err != nil {
				return apperr.FromDB(err, "No se pudo verificar la categoría")
			}
			if n == 0 {
				errs.Add("categoria", "Categoría inexistente")
			} else {
				changes["categoria"] = *req.CategoryID
			}
		}
	} else {
		if req.Experience != nil {
			errs.Add("experiencia", "Solo para trabajadores")
		}
		if req.CategoryID != nil {
			errs.Add("categoria", "Solo para trabajadores")
		}
		if req.Company != nil {
			changes["empresa"] = strings.TrimSpace(*req.Company)
		}
	}
	if len(errs) > 0 {
		return apperr.InvalidFields("Error de validación", errs)
	}
	if len(changes) == 0 {
		return apperr.Validation("No hay cambios")
	}

	res := h.DB.WithContext(ctx).Model(accountModel(role)).Where("email = ?", middleware.Email(c)).Updates(changes)
	if res.Error != nil {
		return apperr.FromDB(res.Error, "No se pudo actualizar el perfil")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Usuario no encontrado")
	}
	return ok(c, fiber.StatusOK, "Perfil actualizado", nil)
}
