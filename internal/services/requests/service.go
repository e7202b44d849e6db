package requests

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/config"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
)

const (
	moduleName    = "solicitudes"
	expiryLockKey = "solicitudes:expirar"
)

// Inbox is the part of the notification store the request flow reads.
type Inbox interface {
	ReferencedRequests(ctx context.Context, email string) ([]uint, error)
	DeleteAll(ctx context.Context, email string) (int64, error)
}

type Service struct {
	DB       *gorm.DB
	Jobs     *repository.Jobs
	Notifier notifications.Notifier
	Inbox    Inbox
	Tasks    notifications.Tasks
	Logger   logrus.FieldLogger
	// Locker, when set, keeps concurrent expiry sweeps to one instance.
	Locker *redislock.Client
	Expiry time.Duration
	Now    func() time.Time
}

func NewService(db *gorm.DB, jobs *repository.Jobs, dispatcher *notifications.Dispatcher, tasks notifications.Tasks, logger logrus.FieldLogger, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = 10 * time.Minute
	}
	return &Service{
		DB:       db,
		Jobs:     jobs,
		Notifier: dispatcher,
		Inbox:    dispatcher,
		Tasks:    tasks,
		Logger:   logger,
		Expiry:   expiry,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

type ApplyResult struct {
	RequestID uint      `json:"solicitudId"`
	ExpiresAt time.Time `json:"expiraEn"`
}

type PendingCount struct {
	Count    int64 `json:"totalSolicitudes"`
	CanApply bool  `json:"puedeAplicar"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Apply records a worker's application to a job.
func (s *Service) Apply(ctx context.Context, workerEmail string, job models.JobRef) (*ApplyResult, error) {
	workerEmail = normalizeEmail(workerEmail)
	if workerEmail == "" {
		return nil, apperr.Validation("El email del trabajador es requerido")
	}
	if !job.Valid() {
		return nil, apperr.Validation("Tipo o id de trabajo inválido")
	}
	repo, err := s.Jobs.For(job.Kind)
	if err != nil {
		return nil, apperr.Validation("Tipo de trabajo inválido")
	}

	s.ExpireBeforeRead(ctx)

	now := s.Now()
	var (
		req    models.Request
		worker *models.Worker
		snap   *models.JobSnapshot
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		worker, err = repository.LockWorker(tx, workerEmail)
		if err != nil {
			return apperr.FromDB(err, "Trabajador no encontrado")
		}

		busy, err := repository.HasActiveAssignment(tx, workerEmail)
		if err != nil {
			return apperr.FromDB(err, "No se pudo verificar la asignación del trabajador")
		}
		if busy {
			return apperr.Conflict("El trabajador ya tiene un trabajo asignado")
		}

		pending, err := repository.CountPendingRequests(tx, workerEmail)
		if err != nil {
			return apperr.FromDB(err, "No se pudieron contar las solicitudes")
		}
		if pending >= models.MaxPendingRequests {
			return apperr.Conflict("Has alcanzado el límite de 3 solicitudes pendientes")
		}

		snap, err = repo.Get(ctx, tx, job.ID)
		if err != nil {
			return apperr.FromDB(err, "Trabajo no encontrado")
		}
		if !snap.Open() {
			return apperr.Conflict("El trabajo no está disponible")
		}

		var existing []models.Request
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email_trabajador = ? AND tipo_trabajo = ? AND id_trabajo = ? AND estado = ?",
				workerEmail, job.Kind, job.ID, models.RequestPending).
			Limit(1).
			Find(&existing).Error; err != nil {
			return apperr.FromDB(err, "No se pudo verificar la solicitud existente")
		}
		if len(existing) > 0 {
			return apperr.Conflict("Ya enviaste una solicitud para este trabajo")
		}

		req = models.Request{
			WorkerEmail:     workerEmail,
			ContractorEmail: snap.ContractorEmail,
			JobKind:         job.Kind,
			JobID:           job.ID,
			State:           models.RequestPending,
			CreatedAt:       now,
			ExpiresAt:       now.Add(s.Expiry),
		}
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("Ya enviaste una solicitud para este trabajo")
			}
			return apperr.FromDB(err, "No se pudo registrar la solicitud")
		}

		if pending+1 >= models.MaxPendingRequests {
			if err := repository.SetAvailable(tx, workerEmail, false); err != nil {
				return apperr.FromDB(err, "No se pudo actualizar la disponibilidad")
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudo registrar la solicitud")
	}

	payload := notifications.RequestCreated{
		RequestID:     req.ID,
		Job:           job,
		JobTitle:      snap.Title,
		WorkerEmail:   workerEmail,
		WorkerName:    worker.DisplayName(),
		WorkerPhone:   worker.Phone,
		CategoryID:    worker.CategoryID,
		Experience:    worker.Experience,
		AverageRating: worker.AverageRating.StringFixed(2),
	}
	contractor := snap.ContractorEmail
	s.Tasks.Go("limpiar_cancelaciones", func(ctx context.Context) error {
		return s.Notifier.DeleteCancellationNotices(ctx, contractor, workerEmail)
	})
	s.Tasks.Go(string(models.NotifRequestCreated), func(ctx context.Context) error {
		return s.Notifier.Notify(ctx, notifications.NewRequestCreated(contractor, payload, s.Expiry))
	})

	return &ApplyResult{RequestID: req.ID, ExpiresAt: req.ExpiresAt}, nil
}

// ExpirePending moves every overdue pending request to expirada. Running it
// again with nothing overdue changes nothing.
func (s *Service) ExpirePending(ctx context.Context) error {
	if s.Locker != nil {
		lock, err := s.Locker.Obtain(ctx, expiryLockKey, 30*time.Second, nil)
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			// another instance is sweeping
			return nil
		case err != nil:
			s.Logger.WithError(err).Warn("expiry lock unavailable, sweeping without it")
		default:
			defer func() { _ = lock.Release(context.Background()) }()
		}
	}

	now := s.Now()
	_, err := s.resolve(ctx, models.RequestExpired, func(q *gorm.DB) *gorm.DB {
		return q.Where("expira_en <= ?", now)
	})
	return err
}

// RejectMany moves the given still-pending requests to rechazada and returns
// how many changed.
func (s *Service) RejectMany(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	rows, err := s.resolve(ctx, models.RequestRejected, func(q *gorm.DB) *gorm.DB {
		return q.Where("id_solicitud IN ?", ids)
	})
	return int64(len(rows)), err
}

// resolve moves the pending requests matched by filter to target. Workers are
// locked before their requests, the same order apply and assign use.
func (s *Service) resolve(ctx context.Context, target models.RequestState, filter func(*gorm.DB) *gorm.DB) ([]models.Request, error) {
	var emails []string
	if err := filter(s.DB.WithContext(ctx).Model(&models.Request{})).
		Where("estado = ?", models.RequestPending).
		Distinct().
		Pluck("email_trabajador", &emails).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron leer las solicitudes pendientes")
	}
	if len(emails) == 0 {
		return nil, nil
	}

	now := s.Now()
	var resolved []models.Request
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.LockWorkers(tx, emails); err != nil {
			return err
		}

		var rows []models.Request
		if err := filter(tx.Clauses(clause.Locking{Strength: "UPDATE"})).
			Where("estado = ? AND email_trabajador IN ?", models.RequestPending, emails).
			Order("id_solicitud").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		if err := tx.Model(&models.Request{}).
			Where("id_solicitud IN ? AND estado = ?", ids, models.RequestPending).
			Updates(map[string]any{"estado": target, "respondido_en": now}).Error; err != nil {
			return err
		}

		done := map[string]bool{}
		for _, r := range rows {
			if done[r.WorkerEmail] {
				continue
			}
			done[r.WorkerEmail] = true
			if _, err := repository.RecomputeAvailability(tx, r.WorkerEmail); err != nil {
				return err
			}
		}

		for i := range rows {
			rows[i].State = target
			rows[i].RespondedAt = &now
		}
		resolved = rows
		return nil
	})
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudieron actualizar las solicitudes")
	}

	if len(resolved) > 0 {
		s.notifyResolved(resolved)
	}
	return resolved, nil
}

func (s *Service) notifyResolved(rows []models.Request) {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	s.Tasks.Go("limpiar_notificaciones_solicitudes", func(ctx context.Context) error {
		return s.Notifier.DeleteForRequests(ctx, ids)
	})

	for _, r := range rows {
		s.Tasks.Go(string(models.NotifRequestUpdated), func(ctx context.Context) error {
			payload := notifications.RequestUpdated{
				RequestID:       r.ID,
				Job:             r.JobRef(),
				JobTitle:        s.Jobs.Title(ctx, s.DB, r.JobRef()),
				State:           r.State,
				ContractorEmail: r.ContractorEmail,
				ContractorName:  repository.ContractorName(ctx, s.DB, r.ContractorEmail),
			}
			return s.Notifier.Notify(ctx, notifications.NewRequestUpdated(r.WorkerEmail, payload))
		})
	}
}

// ExpireBeforeRead runs the lazy sweep; a failed sweep is logged and the
// read continues.
func (s *Service) ExpireBeforeRead(ctx context.Context) {
	if err := s.ExpirePending(ctx); err != nil {
		config.LogError(s.Logger, moduleName, "ExpirePending", "lazy sweep before read", nil, err)
	}
}

func (s *Service) PendingCount(ctx context.Context, workerEmail string) (*PendingCount, error) {
	workerEmail = normalizeEmail(workerEmail)
	if workerEmail == "" {
		return nil, apperr.Validation("El email del trabajador es requerido")
	}
	s.ExpireBeforeRead(ctx)

	n, err := repository.CountPendingRequests(s.DB.WithContext(ctx), workerEmail)
	if err != nil {
		return nil, apperr.FromDB(err, "No se pudieron contar las solicitudes")
	}
	return &PendingCount{Count: n, CanApply: n < models.MaxPendingRequests}, nil
}

// PendingRequest returns the worker's oldest pending request, or nil.
func (s *Service) PendingRequest(ctx context.Context, workerEmail string) (*models.Request, error) {
	workerEmail = normalizeEmail(workerEmail)
	if workerEmail == "" {
		return nil, apperr.Validation("El email del trabajador es requerido")
	}
	s.ExpireBeforeRead(ctx)

	var rows []models.Request
	if err := s.DB.WithContext(ctx).
		Where("email_trabajador = ? AND estado = ?", workerEmail, models.RequestPending).
		Order("created_at, id_solicitud").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudo obtener la solicitud")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ActiveApplications lists the jobs the worker has pending requests for.
func (s *Service) ActiveApplications(ctx context.Context, workerEmail string) ([]models.JobRef, error) {
	workerEmail = normalizeEmail(workerEmail)
	if workerEmail == "" {
		return nil, apperr.Validation("El email del trabajador es requerido")
	}
	s.ExpireBeforeRead(ctx)

	var rows []models.Request
	if err := s.DB.WithContext(ctx).
		Select("tipo_trabajo", "id_trabajo").
		Where("email_trabajador = ? AND estado = ?", workerEmail, models.RequestPending).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron obtener las solicitudes")
	}
	refs := make([]models.JobRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, r.JobRef())
	}
	return refs, nil
}

type ClearResult struct {
	Deleted  int64 `json:"eliminadas"`
	Rejected int64 `json:"solicitudesRechazadas"`
}

// ClearNotifications empties a user's inbox. Pending requests addressed to
// that user and referenced by the removed notifications are rejected first.
func (s *Service) ClearNotifications(ctx context.Context, email string) (*ClearResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("El email es requerido")
	}

	ids, err := s.Inbox.ReferencedRequests(ctx, email)
	if err != nil {
		return nil, apperr.Internal("No se pudieron leer las notificaciones", err)
	}

	var rejected int64
	if len(ids) > 0 {
		rows, err := s.resolve(ctx, models.RequestRejected, func(q *gorm.DB) *gorm.DB {
			return q.Where("id_solicitud IN ? AND email_contratista = ?", ids, email)
		})
		if err != nil {
			return nil, err
		}
		rejected = int64(len(rows))
	}

	deleted, err := s.Inbox.DeleteAll(ctx, email)
	if err != nil {
		return nil, apperr.Internal("No se pudieron eliminar las notificaciones", err)
	}
	return &ClearResult{Deleted: deleted, Rejected: rejected}, nil
}

// RunExpirySweeper expires overdue requests every interval until ctx ends.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ExpirePending(ctx); err != nil {
				config.LogError(s.Logger, moduleName, "RunExpirySweeper", "periodic sweep", nil, err)
			}
		}
	}
}
