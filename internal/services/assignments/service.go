package assignments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/ratings"
)

const moduleName = "asignaciones"

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

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type AssignInput struct {
	ContractorEmail string
	WorkerEmail     string
	Job             models.JobRef
	// RequestID, when set, accepts that pending request as part of the hire.
	RequestID *uint
}

type AssignResult struct {
	AssignmentID   uint            `json:"idAsignacion"`
	AssignedAt     time.Time       `json:"fechaAsignacion"`
	RemainingSlots int             `json:"vacantesRestantes"`
	JobState       models.JobState `json:"estadoTrabajo"`
}

// lockActive reads the worker's activo assignment FOR UPDATE, or nil.
func lockActive(tx *gorm.DB, workerEmail string) (*models.Assignment, error) {
	var rows []models.Assignment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email_trabajador = ? AND estado = ?", workerEmail, models.AssignmentActive).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Assign hires a worker for a job, either directly or by accepting one of
// the worker's pending requests.
func (s *Service) Assign(ctx context.Context, in AssignInput) (*AssignResult, error) {
	in.ContractorEmail = normalizeEmail(in.ContractorEmail)
	in.WorkerEmail = normalizeEmail(in.WorkerEmail)
	if in.ContractorEmail == "" || in.WorkerEmail == "" {
		return nil, apperr.Validation("El contratista y el trabajador son requeridos")
	}
	if !in.Job.Valid() {
		return nil, apperr.Validation("Tipo o id de trabajo inválido")
	}
	if in.RequestID != nil && *in.RequestID == 0 {
		return nil, apperr.Validation("Id de solicitud inválido")
	}
	repo, err := s.Jobs.For(in.Job.Kind)
	if err != nil {
		return nil, apperr.Validation("Tipo de trabajo inválido")
	}

	now := s.Now()
	var (
		assignment models.Assignment
		snap       *models.JobSnapshot
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		worker, err := repository.LockWorker(tx, in.WorkerEmail)
		if err != nil {
			return apperr.FromDB(err, "Trabajador no encontrado")
		}
		if in.RequestID == nil && !worker.Available {
			return apperr.Conflict("El trabajador no está disponible")
		}

		if in.RequestID != nil {
			var reqs []models.Request
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id_solicitud = ?", *in.RequestID).
				Limit(1).
				Find(&reqs).Error; err != nil {
				return apperr.FromDB(err, "No se pudo leer la solicitud")
			}
			if len(reqs) == 0 {
				return apperr.Conflict("La solicitud no existe")
			}
			req := reqs[0]
			switch {
			case req.WorkerEmail != in.WorkerEmail ||
				req.ContractorEmail != in.ContractorEmail ||
				req.JobRef() != in.Job:
				return apperr.Conflict("La solicitud no corresponde a este trabajador y trabajo")
			case req.State != models.RequestPending:
				return apperr.Conflict("La solicitud ya no está pendiente")
			case !req.ExpiresAt.After(now):
				return apperr.Conflict("La solicitud expiró")
			}
		}

		active, err := lockActive(tx, in.WorkerEmail)
		if err != nil {
			return apperr.FromDB(err, "No se pudo verificar la asignación del trabajador")
		}
		if active != nil {
			return apperr.Conflict("El trabajador ya tiene un trabajo asignado")
		}

		snap, err = repo.Lock(tx, in.Job.ID)
		if err != nil {
			return apperr.FromDB(err, "Trabajo no encontrado")
		}
		if snap.ContractorEmail != in.ContractorEmail {
			return apperr.Forbidden("El trabajo no pertenece a este contratista")
		}
		if snap.Vacancies <= 0 || snap.State == models.JobCompleted {
			return apperr.Conflict("El trabajo no tiene vacantes disponibles")
		}

		assignment = models.Assignment{
			ContractorEmail: in.ContractorEmail,
			WorkerEmail:     in.WorkerEmail,
			JobKind:         in.Job.Kind,
			JobID:           in.Job.ID,
			State:           models.AssignmentActive,
			AssignedAt:      now,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("El trabajador ya tiene un trabajo asignado")
			}
			return apperr.FromDB(err, "No se pudo registrar la asignación")
		}
		if err := repo.TakeSlot(tx, snap); err != nil {
			if errors.Is(err, repository.ErrNoVacancy) {
				return apperr.Conflict("El trabajo no tiene vacantes disponibles")
			}
			return apperr.FromDB(err, "No se pudo actualizar las vacantes")
		}
		if err := repository.SetAvailable(tx, in.WorkerEmail, false); err != nil {
			return apperr.FromDB(err, "No se pudo actualizar la disponibilidad")
		}

		if in.RequestID != nil {
			if err := tx.Model(&models.Request{}).
				Where("id_solicitud = ?", *in.RequestID).
				Updates(map[string]any{"estado": models.RequestAccepted, "respondido_en": now}).Error; err != nil {
				return apperr.FromDB(err, "No se pudo aceptar la solicitud")
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudo asignar el trabajador")
	}

	s.notifyAssigned(in, assignment, snap.Title)

	return &AssignResult{
		AssignmentID:   assignment.ID,
		AssignedAt:     assignment.AssignedAt,
		RemainingSlots: snap.Vacancies,
		JobState:       snap.State,
	}, nil
}

func (s *Service) notifyAssigned(in AssignInput, a models.Assignment, title string) {
	if in.RequestID != nil {
		requestID := *in.RequestID
		s.Tasks.Go("limpiar_notificaciones_solicitud", func(ctx context.Context) error {
			return s.Notifier.DeleteForRequests(ctx, []uint{requestID})
		})
		s.Tasks.Go(string(models.NotifRequestAccepted), func(ctx context.Context) error {
			payload := notifications.RequestAccepted{
				RequestID:       requestID,
				AssignmentID:    a.ID,
				Job:             in.Job,
				JobTitle:        title,
				ContractorEmail: in.ContractorEmail,
				ContractorName:  repository.ContractorName(ctx, s.DB, in.ContractorEmail),
			}
			return s.Notifier.Notify(ctx, notifications.NewRequestAccepted(in.WorkerEmail, payload))
		})
		return
	}

	s.Tasks.Go(string(models.NotifContractorInterested), func(ctx context.Context) error {
		payload := notifications.ContractorInterested{
			AssignmentID:    a.ID,
			Job:             in.Job,
			JobTitle:        title,
			ContractorEmail: in.ContractorEmail,
			ContractorName:  repository.ContractorName(ctx, s.DB, in.ContractorEmail),
		}
		return s.Notifier.Notify(ctx, notifications.NewContractorInterested(in.WorkerEmail, payload))
	})
}

type CancelInput struct {
	ContractorEmail         string
	WorkerEmail             string
	InitiatedByWorker       bool
	SkipDefaultNotification bool
}

type CancelResult struct {
	AssignmentID   uint            `json:"idAsignacion"`
	Job            models.JobRef   `json:"trabajo"`
	RemainingSlots int             `json:"vacantesRestantes"`
	JobState       models.JobState `json:"estadoTrabajo"`
}

// Cancel ends the active assignment between a contractor and a worker and
// gives the job its slot back.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (*CancelResult, error) {
	in.ContractorEmail = normalizeEmail(in.ContractorEmail)
	in.WorkerEmail = normalizeEmail(in.WorkerEmail)
	if in.ContractorEmail == "" || in.WorkerEmail == "" {
		return nil, apperr.Validation("El contratista y el trabajador son requeridos")
	}

	now := s.Now()
	var (
		assignment *models.Assignment
		snap       *models.JobSnapshot
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.LockWorker(tx, in.WorkerEmail); err != nil {
			return apperr.FromDB(err, "Trabajador no encontrado")
		}

		var err error
		assignment, err = lockActive(tx, in.WorkerEmail)
		if err != nil {
			return apperr.FromDB(err, "No se pudo leer la asignación")
		}
		if assignment == nil || assignment.ContractorEmail != in.ContractorEmail {
			return apperr.NotFound("No hay una asignación activa entre este contratista y trabajador")
		}

		repo, err := s.Jobs.For(assignment.JobKind)
		if err != nil {
			return apperr.Internal("Tipo de trabajo desconocido en la asignación", err)
		}
		snap, err = repo.Lock(tx, assignment.JobID)
		if err != nil {
			return apperr.FromDB(err, "Trabajo no encontrado")
		}

		if err := tx.Model(&models.Assignment{}).
			Where("id_asignacion = ?", assignment.ID).
			Updates(map[string]any{"estado": models.AssignmentCancelled, "fecha_cancelacion": now}).Error; err != nil {
			return apperr.FromDB(err, "No se pudo cancelar la asignación")
		}
		if err := repo.ReleaseSlot(tx, snap); err != nil {
			return apperr.FromDB(err, "No se pudo actualizar las vacantes")
		}
		if _, err := repository.RecomputeAvailability(tx, in.WorkerEmail); err != nil {
			return apperr.FromDB(err, "No se pudo actualizar la disponibilidad")
		}
		assignment.State = models.AssignmentCancelled
		assignment.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudo cancelar la asignación")
	}

	s.notifyCancelled(in, *assignment, snap.Title)

	return &CancelResult{
		AssignmentID:   assignment.ID,
		Job:            assignment.JobRef(),
		RemainingSlots: snap.Vacancies,
		JobState:       snap.State,
	}, nil
}

// notifyCancelled sends the worker-initiated notice and the default dismissal
// independently of each other.
func (s *Service) notifyCancelled(in CancelInput, a models.Assignment, title string) {
	if in.InitiatedByWorker {
		s.Tasks.Go(string(models.NotifWorkerCancelled), func(ctx context.Context) error {
			payload := notifications.WorkerCancelled{
				AssignmentID: a.ID,
				Job:          a.JobRef(),
				JobTitle:     title,
				WorkerEmail:  in.WorkerEmail,
				WorkerName:   repository.WorkerName(ctx, s.DB, in.WorkerEmail),
			}
			return s.Notifier.Notify(ctx, notifications.NewWorkerCancelled(in.ContractorEmail, payload))
		})
	}
	if !in.SkipDefaultNotification {
		s.Tasks.Go(string(models.NotifDismissal), func(ctx context.Context) error {
			payload := notifications.Dismissal{
				AssignmentID:    a.ID,
				Job:             a.JobRef(),
				JobTitle:        title,
				ContractorEmail: in.ContractorEmail,
				ContractorName:  repository.ContractorName(ctx, s.DB, in.ContractorEmail),
			}
			return s.Notifier.Notify(ctx, notifications.NewDismissal(in.WorkerEmail, payload))
		})
	}
}

type RatingInput struct {
	AssignmentID uint    `json:"idAsignacion"`
	WorkerEmail  string  `json:"emailTrabajador"`
	Stars        int     `json:"estrellas"`
	Review       *string `json:"resena,omitempty"`
}

type FinalizeInput struct {
	ContractorEmail string
	Job             models.JobRef
	Ratings         []RatingInput
}

type UpdatedWorker struct {
	WorkerEmail  string          `json:"emailTrabajador"`
	AssignmentID uint            `json:"idAsignacion"`
	Stars        int             `json:"estrellas"`
	Average      decimal.Decimal `json:"calificacionPromedio"`
}

type FinalizeResult struct {
	Job            models.JobRef   `json:"trabajo"`
	JobState       models.JobState `json:"estadoTrabajo"`
	UpdatedWorkers []UpdatedWorker `json:"trabajadoresActualizados"`
}

func validateRatings(in []RatingInput) error {
	if len(in) == 0 {
		return apperr.Validation("Se requiere al menos una calificación")
	}
	seen := make(map[uint]bool, len(in))
	for _, r := range in {
		if r.AssignmentID == 0 || r.WorkerEmail == "" {
			return apperr.Validation("Cada calificación requiere asignación y trabajador")
		}
		if !ratings.ValidStars(r.Stars) {
			return apperr.Validation("Las estrellas deben estar entre 1 y 5")
		}
		if seen[r.AssignmentID] {
			return apperr.Validation("Asignación repetida en las calificaciones")
		}
		seen[r.AssignmentID] = true
	}
	return nil
}

// Finalize rates every listed assignment of a job, frees the workers and
// closes the job. Any invalid entry aborts the whole batch.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	in.ContractorEmail = normalizeEmail(in.ContractorEmail)
	if in.ContractorEmail == "" {
		return nil, apperr.Validation("El contratista es requerido")
	}
	if !in.Job.Valid() {
		return nil, apperr.Validation("Tipo o id de trabajo inválido")
	}
	items := make([]RatingInput, len(in.Ratings))
	for i, r := range in.Ratings {
		r.WorkerEmail = normalizeEmail(r.WorkerEmail)
		r.Review = ratings.CleanReview(r.Review)
		items[i] = r
	}
	if err := validateRatings(items); err != nil {
		return nil, err
	}
	repo, err := s.Jobs.For(in.Job.Kind)
	if err != nil {
		return nil, apperr.Validation("Tipo de trabajo inválido")
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AssignmentID < items[j].AssignmentID })

	now := s.Now()
	var (
		snap    *models.JobSnapshot
		updated []UpdatedWorker
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		emails := make([]string, 0, len(items))
		uniq := map[string]bool{}
		for _, r := range items {
			emails = append(emails, r.WorkerEmail)
			uniq[r.WorkerEmail] = true
		}
		ws, err := repository.LockWorkers(tx, emails)
		if err != nil {
			return apperr.FromDB(err, "No se pudieron leer los trabajadores")
		}
		if len(ws) != len(uniq) {
			return apperr.NotFound("Trabajador no encontrado")
		}

		snap, err = repo.Lock(tx, in.Job.ID)
		if err != nil {
			return apperr.FromDB(err, "Trabajo no encontrado")
		}
		if snap.ContractorEmail != in.ContractorEmail {
			return apperr.Forbidden("El trabajo no pertenece a este contratista")
		}

		updated = make([]UpdatedWorker, 0, len(items))
		for _, r := range items {
			var a models.Assignment
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&a, r.AssignmentID).Error; err != nil {
				return apperr.FromDB(err, "Asignación no encontrada")
			}
			if a.JobRef() != in.Job || a.ContractorEmail != in.ContractorEmail || a.WorkerEmail != r.WorkerEmail {
				return apperr.Forbidden("La asignación no corresponde a este trabajo, contratista y trabajador")
			}
			if a.State == models.AssignmentCancelled {
				return apperr.Conflict("La asignación fue cancelada")
			}

			rating := models.Rating{
				ContractorEmail: in.ContractorEmail,
				WorkerEmail:     r.WorkerEmail,
				AssignmentID:    a.ID,
				Stars:           r.Stars,
				Review:          r.Review,
				RatedAt:         now,
			}
			if err := ratings.Upsert(tx, &rating); err != nil {
				return apperr.FromDB(err, "No se pudo registrar la calificación")
			}
			avg, err := ratings.RecomputeAverage(tx, r.WorkerEmail)
			if err != nil {
				return apperr.FromDB(err, "No se pudo actualizar el promedio")
			}
			if err := repository.SetAvailable(tx, r.WorkerEmail, true); err != nil {
				return apperr.FromDB(err, "No se pudo actualizar la disponibilidad")
			}
			if a.State != models.AssignmentFinished {
				if err := tx.Model(&models.Assignment{}).
					Where("id_asignacion = ?", a.ID).
					Updates(map[string]any{"estado": models.AssignmentFinished, "fecha_finalizacion": now}).Error; err != nil {
					return apperr.FromDB(err, "No se pudo finalizar la asignación")
				}
			}
			updated = append(updated, UpdatedWorker{
				WorkerEmail:  r.WorkerEmail,
				AssignmentID: a.ID,
				Stars:        r.Stars,
				Average:      avg,
			})
		}

		if err := repo.Complete(tx, snap); err != nil {
			return apperr.FromDB(err, "No se pudo completar el trabajo")
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudo finalizar el trabajo")
	}

	s.notifyFinalized(in, snap.Title, updated)

	return &FinalizeResult{Job: in.Job, JobState: snap.State, UpdatedWorkers: updated}, nil
}

// notifyFinalized schedules one task per worker so a failed delivery only
// affects its own recipient.
func (s *Service) notifyFinalized(in FinalizeInput, title string, updated []UpdatedWorker) {
	for _, u := range updated {
		s.Tasks.Go(string(models.NotifWorkerRated), func(ctx context.Context) error {
			payload := notifications.WorkerRated{
				AssignmentID:    u.AssignmentID,
				Job:             in.Job,
				JobTitle:        title,
				Stars:           u.Stars,
				Average:         u.Average.StringFixed(2),
				Context:         models.AssignmentFinished,
				ContractorEmail: in.ContractorEmail,
				ContractorName:  repository.ContractorName(ctx, s.DB, in.ContractorEmail),
			}
			return s.Notifier.Notify(ctx, notifications.NewWorkerRated(u.WorkerEmail, payload))
		})
	}
}
