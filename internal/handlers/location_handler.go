package handlers

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/utils"
)

type LocationHandler struct {
	DB  *gorm.DB
	Now func() time.Time
}

type LocationReq struct {
	Latitude  *float64 `json:"latitud" validate:"required,latitude"`
	Longitude *float64 `json:"longitud" validate:"required,longitude"`
}

func (h *LocationHandler) update(c *fiber.Ctx, model any) error {
	var req LocationReq
	if err := bind(c, &req); err != nil {
		return err
	}
	now := h.Now()
	res := h.DB.WithContext(c.UserContext()).Model(model).
		Where("email = ?", middleware.Email(c)).
		Updates(map[string]any{
			"latitud":               *req.Latitude,
			"longitud":              *req.Longitude,
			"ubicacion_actualizada": now,
		})
	if res.Error != nil {
		return apperr.FromDB(res.Error, "No se pudo actualizar la ubicación")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Usuario no encontrado")
	}
	return ok(c, fiber.StatusOK, "Ubicación actualizada", fiber.Map{
		"latitud":               *req.Latitude,
		"longitud":              *req.Longitude,
		"ubicacion_actualizada": now,
	})
}

func (h *LocationHandler) UpdateWorker(c *fiber.Ctx) error {
	return h.update(c, &models.Worker{})
}

func (h *LocationHandler) UpdateContractor(c *fiber.Ctx) error {
	return h.update(c, &models.Contractor{})
}

type NearbyWorker struct {
	Email         string          `json:"email"`
	Name          string          `json:"nombre"`
	Phone         string          `json:"telefono"`
	PhotoURL      string          `json:"foto_perfil"`
	CategoryID    uint            `json:"categoria"`
	Experience    int             `json:"experiencia"`
	AverageRating decimal.Decimal `json:"calificacion_promedio"`
	DistanceKm    float64         `json:"distanciaKm"`
}

// NearbyWorkers lists available workers around the contractor. With a
// categoria filter every worker of that category in range is returned;
// without it only the closest worker of each category.
func (h *LocationHandler) NearbyWorkers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var me models.Contractor
	if err := h.DB.WithContext(ctx).First(&me, "email = ?", middleware.Email(c)).Error; err != nil {
		return apperr.FromDB(err, "Contratista no encontrado")
	}
	lat, lon, err := origin(c, me.Latitude, me.Longitude)
	if err != nil {
		return err
	}
	maxKm := radius(c)
	category := c.QueryInt("categoria", 0)

	q := h.DB.WithContext(ctx).
		Where("disponible = ?", true).
		Where("latitud IS NOT NULL AND longitud IS NOT NULL")
	if category > 0 {
		q = q.Where("categoria = ?", category)
	}
	var workers []models.Worker
	if err := q.Find(&workers).Error; err != nil {
		return apperr.Internal("No se pudieron obtener los trabajadores", err)
	}

	inRange := make([]NearbyWorker, 0, len(workers))
	for _, w := range workers {
		d := utils.DistanceKm(lat, lon, *w.Latitude, *w.Longitude)
		if d > maxKm {
			continue
		}
		inRange = append(inRange, NearbyWorker{
			Email:         w.Email,
			Name:          w.DisplayName(),
			Phone:         w.Phone,
			PhotoURL:      w.PhotoURL,
			CategoryID:    w.CategoryID,
			Experience:    w.Experience,
			AverageRating: w.AverageRating,
			DistanceKm:    roundKm(d),
		})
	}
	sort.SliceStable(inRange, func(i, j int) bool { return inRange[i].DistanceKm < inRange[j].DistanceKm })
	if category > 0 {
		return ok(c, fiber.StatusOK, "", inRange)
	}

	closest := make([]NearbyWorker, 0)
	seen := map[uint]bool{}
	for _, w := range inRange {
		if seen[w.CategoryID] {
			continue
		}
		seen[w.CategoryID] = true
		closest = append(closest, w)
	}
	return ok(c, fiber.StatusOK, "", closest)
}
