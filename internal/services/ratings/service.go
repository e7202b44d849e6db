package ratings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
)

const (
	MinStars     = 1
	MaxStars     = 5
	defaultLimit = 5
)

func ValidStars(n int) bool { return n >= MinStars && n <= MaxStars }

// CleanReview trims a review and drops it when empty.
func CleanReview(r *string) *string {
	if r == nil {
		return nil
	}
	v := strings.TrimSpace(*r)
	if v == "" {
		return nil
	}
	return &v
}

type Service struct {
	DB       *gorm.DB
	Jobs     *repository.Jobs
	Notifier notifications.Notifier
	Tasks    notifications.Tasks
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

func NewService(db *gorm.DB, jobs *repository.Jobs, notifier notifications.Notifier, tasks notifications.Tasks, logger logrus.FieldLogger) *Service {
	return &Service{
		DB:       db,
		Jobs:     jobs,
		Notifier: notifier,
		Tasks:    tasks,
		Logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

type RateInput struct {
	ContractorEmail string
	WorkerEmail     string
	AssignmentID    uint
	Stars           int
	Review          *string
}

type RateResult struct {
	RatingID       uint            `json:"idCalificacion"`
	UpdatedAverage decimal.Decimal `json:"calificacionPromedio"`
}

// Rate records the single rating of an assignment. A second rating for the
// same assignment is a conflict.
func (s *Service) Rate(ctx context.Context, in RateInput) (*RateResult, error) {
	in.ContractorEmail = strings.ToLower(strings.TrimSpace(in.ContractorEmail))
	in.WorkerEmail = strings.ToLower(strings.TrimSpace(in.WorkerEmail))
	switch {
	case in.ContractorEmail == "" || in.WorkerEmail == "":
		return nil, apperr.Validation("El contratista y el trabajador son requeridos")
	case in.AssignmentID == 0:
		return nil, apperr.Validation("La asignación es requerida")
	case !ValidStars(in.Stars):
		return nil, apperr.Validation("Las estrellas deben estar entre 1 y 5")
	}
	review := CleanReview(in.Review)

	now := s.Now()
	var (
		rating     models.Rating
		assignment models.Assignment
		avg        decimal.Decimal
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.LockWorker(tx, in.WorkerEmail); err != nil {
			return apperr.FromDB(err, "Trabajador no encontrado")
		}

		if err := tx.First(&assignment, in.AssignmentID).Error; err != nil {
			return apperr.FromDB(err, "Asignación no encontrada")
		}
		if assignment.ContractorEmail != in.ContractorEmail || assignment.WorkerEmail != in.WorkerEmail {
			return apperr.Forbidden("La asignación no pertenece a este contratista y trabajador")
		}

		var existing int64
		if err := tx.Model(&models.Rating{}).
			Where("id_asignacion = ?", in.AssignmentID).
			Count(&existing).Error; err != nil {
			return apperr.FromDB(err, "No se pudo verificar la calificación")
		}
		if existing > 0 {
			return apperr.Conflict("La asignación ya fue calificada")
		}

		rating = models.Rating{
			ContractorEmail: in.ContractorEmail,
			WorkerEmail:     in.WorkerEmail,
			AssignmentID:    in.AssignmentID,
			Stars:           in.Stars,
			Review:          review,
			RatedAt:         now,
		}
		if err := tx.Create(&rating).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("La asignación ya fue calificada")
			}
			return apperr.FromDB(err, "No se pudo registrar la calificación")
		}

		var err error
		avg, err = RecomputeAverage(tx, in.WorkerEmail)
		if err != nil {
			return apperr.FromDB(err, "No se pudo actualizar el promedio")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudo registrar la calificación")
	}

	ctxState := models.AssignmentFinished
	if assignment.State == models.AssignmentCancelled {
		ctxState = models.AssignmentCancelled
	}
	contractor := in.ContractorEmail
	assignmentID := in.AssignmentID
	s.Tasks.Go("limpiar_cancelacion_calificada", func(ctx context.Context) error {
		return s.Notifier.DeleteCancellationForAssignment(ctx, contractor, assignmentID)
	})
	s.Tasks.Go(string(models.NotifWorkerRated), func(ctx context.Context) error {
		payload := notifications.WorkerRated{
			AssignmentID:    assignmentID,
			Job:             assignment.JobRef(),
			JobTitle:        s.Jobs.Title(ctx, s.DB, assignment.JobRef()),
			Stars:           rating.Stars,
			Average:         avg.StringFixed(2),
			Context:         ctxState,
			ContractorEmail: contractor,
			ContractorName:  repository.ContractorName(ctx, s.DB, contractor),
		}
		return s.Notifier.Notify(ctx, notifications.NewWorkerRated(rating.WorkerEmail, payload))
	})

	return &RateResult{RatingID: rating.ID, UpdatedAverage: avg}, nil
}

type RatingView struct {
	models.Rating
	ContractorName string `json:"nombreContratista"`
}

// ListForWorker returns the worker's latest ratings, newest first.
func (s *Service) ListForWorker(ctx context.Context, workerEmail string, limit int) ([]RatingView, error) {
	workerEmail = strings.ToLower(strings.TrimSpace(workerEmail))
	if workerEmail == "" {
		return nil, apperr.Validation("El email del trabajador es requerido")
	}
	if limit <= 0 || limit > 50 {
		limit = defaultLimit
	}

	var rows []models.Rating
	if err := s.DB.WithContext(ctx).
		Where("email_trabajador = ?", workerEmail).
		Order("fecha_calificacion DESC, id_calificacion DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron obtener las calificaciones")
	}

	names := map[string]string{}
	out := make([]RatingView, 0, len(rows))
	for _, r := range rows {
		name, ok := names[r.ContractorEmail]
		if !ok {
			name = repository.ContractorName(ctx, s.DB, r.ContractorEmail)
			names[r.ContractorEmail] = name
		}
		out = append(out, RatingView{Rating: r, ContractorName: name})
	}
	return out, nil
}
