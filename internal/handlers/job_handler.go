package handlers

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/utils"
)

const defaultRadiusKm = 500.0

type JobHandler struct {
	DB   *gorm.DB
	Jobs *repository.Jobs
}

type jobBase struct {
	Title       string   `json:"titulo" validate:"required,max=200"`
	Description string   `json:"descripcion" validate:"max=5000"`
	Latitude    *float64 `json:"latitud" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitud" validate:"omitempty,longitude"`
	Address     string   `json:"direccion" validate:"max=255"`
	Vacancies   int      `json:"vacantes" validate:"required,gte=1,lte=100"`
}

func (b *jobBase) clean() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Description = strings.TrimSpace(b.Description)
	b.Address = strings.TrimSpace(b.Address)
	if (b.Latitude == nil) != (b.Longitude == nil) {
		return apperr.InvalidFields("Error de validación", FieldErrors{"latitud": {"Latitud y longitud van juntas"}})
	}
	return nil
}

type CreateShortJobReq struct {
	jobBase
	PayRange     string `json:"rangoPago" validate:"max=100"`
	Currency     string `json:"moneda" validate:"omitempty,len=3"`
	Availability string `json:"disponibilidad" validate:"max=100"`
	Specialty    string `json:"especialidad" validate:"max=100"`
}

func (h *JobHandler) CreateShort(c *fiber.Ctx) error {
	var req CreateShortJobReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.clean(); err != nil {
		return err
	}
	job := models.ShortTermJob{
		ContractorEmail: middleware.Email(c),
		Title:           req.Title,
		Description:     req.Description,
		PayRange:        req.PayRange,
		Currency:        strings.ToUpper(req.Currency),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Address:         req.Address,
		Availability:    req.Availability,
		Specialty:       req.Specialty,
		Vacancies:       req.Vacancies,
		State:           models.JobActive,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&job).Error; err != nil {
		return apperr.FromDB(err, "No se pudo publicar el trabajo")
	}
	return ok(c, fiber.StatusCreated, "Trabajo publicado", job.Snapshot())
}

type CreateLongJobReq struct {
	jobBase
	StartDate *time.Time      `json:"fechaInicio"`
	EndDate   *time.Time      `json:"fechaFin"`
	WorkType  string          `json:"tipoObra" validate:"max=100"`
	Frequency string          `json:"frecuencia" validate:"max=50"`
	Budget    decimal.Decimal `json:"presupuesto"`
}

func (h *JobHandler) CreateLong(c *fiber.Ctx) error {
	var req CreateLongJobReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.clean(); err != nil {
		return err
	}
	errs := FieldErrors{}
	if req.Budget.IsNegative() {
		errs.Add("presupuesto", "El presupuesto no puede ser negativo")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		errs.Add("fechaFin", "La fecha de fin es anterior al inicio")
	}
	if len(errs) > 0 {
		return apperr.InvalidFields("Error de validación", errs)
	}

	job := models.LongTermJob{
		ContractorEmail: middleware.Email(c),
		Title:           req.Title,
		Description:     req.Description,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Address:         req.Address,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		WorkType:        req.WorkType,
		Frequency:       req.Frequency,
		Budget:          req.Budget.Round(2),
		Vacancies:       req.Vacancies,
		State:           models.JobActive,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&job).Error; err != nil {
		return apperr.FromDB(err, "No se pudo publicar el trabajo")
	}
	return ok(c, fiber.StatusCreated, "Trabajo publicado", job.Snapshot())
}

// Mine lists the caller's postings of both kinds, newest first.
func (h *JobHandler) Mine(c *fiber.Ctx) error {
	email := middleware.Email(c)
	var out []models.JobSnapshot
	for _, repo := range h.Jobs.All() {
		list, err := repo.ListByContractor(c.UserContext(), h.DB, email)
		if err != nil {
			return apperr.Internal("No se pudieron obtener los trabajos", err)
		}
		out = append(out, list...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if out == nil {
		out = []models.JobSnapshot{}
	}
	return ok(c, fiber.StatusOK, "", out)
}

type NearbyJob struct {
	models.JobSnapshot
	DistanceKm float64 `json:"distanciaKm"`
}

// origin reads lat/lng from the query, falling back to the stored location.
func origin(c *fiber.Ctx, storedLat, storedLon *float64) (float64, float64, error) {
	lat, lon := c.QueryFloat("lat", 999), c.QueryFloat("lng", 999)
	if lat == 999 || lon == 999 {
		if storedLat == nil || storedLon == nil {
			return 0, 0, apperr.Validation("Ubicación no registrada")
		}
		lat, lon = *storedLat, *storedLon
	}
	if !utils.ValidCoordinates(lat, lon) {
		return 0, 0, apperr.Validation("Coordenadas inválidas")
	}
	return lat, lon, nil
}

func radius(c *fiber.Ctx) float64 {
	r := c.QueryFloat("radio", defaultRadiusKm)
	if r <= 0 {
		return defaultRadiusKm
	}
	return r
}

// Nearby lists open jobs around the calling worker, closest first.
func (h *JobHandler) Nearby(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var w models.Worker
	if err := h.DB.WithContext(ctx).First(&w, "email = ?", middleware.Email(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Trabajador no encontrado")
		}
		return apperr.FromDB(err, "No se pudo leer el trabajador")
	}
	lat, lon, err := origin(c, w.Latitude, w.Longitude)
	if err != nil {
		return err
	}
	maxKm := radius(c)

	out := []NearbyJob{}
	for _, repo := range h.Jobs.All() {
		list, err := repo.ListOpen(ctx, h.DB)
		if err != nil {
			return apperr.Internal("No se pudieron obtener los trabajos", err)
		}
		for _, j := range list {
			d := utils.DistanceKm(lat, lon, *j.Latitude, *j.Longitude)
			if d <= maxKm {
				out = append(out, NearbyJob{JobSnapshot: j, DistanceKm: roundKm(d)})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return ok(c, fiber.StatusOK, "", out)
}

func roundKm(d float64) float64 {
	f, _ := decimal.NewFromFloat(d).Round(2).Float64()
	return f
}
