package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

var (
	ErrUnknownJobKind = errors.New("unknown job kind")
	ErrNoVacancy      = errors.New("job has no vacancies left")
)

// JobRepository reads and mutates one job table. Every method takes the
// handle to run on so callers can pass an open transaction.
type JobRepository interface {
	Kind() models.JobKind
	Get(ctx context.Context, db *gorm.DB, id uint) (*models.JobSnapshot, error)
	// Lock reads the job with SELECT ... FOR UPDATE.
	Lock(db *gorm.DB, id uint) (*models.JobSnapshot, error)
	TakeSlot(db *gorm.DB, job *models.JobSnapshot) error
	ReleaseSlot(db *gorm.DB, job *models.JobSnapshot) error
	Complete(db *gorm.DB, job *models.JobSnapshot) error
	ListByContractor(ctx context.Context, db *gorm.DB, contractorEmail string) ([]models.JobSnapshot, error)
	ListOpen(ctx context.Context, db *gorm.DB) ([]models.JobSnapshot, error)
	Titles(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]string, error)
}

type gormJobRepository[T any, P interface {
	*T
	models.JobRecord
}] struct {
	kind models.JobKind
}

func (r gormJobRepository[T, P]) Kind() models.JobKind { return r.kind }

func byID(id uint) clause.Expression {
	return clause.Eq{Column: clause.PrimaryColumn, Value: id}
}

func (r gormJobRepository[T, P]) Get(ctx context.Context, db *gorm.DB, id uint) (*models.JobSnapshot, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, err
	}
	snap := P(&row).Snapshot()
	return &snap, nil
}

func (r gormJobRepository[T, P]) Lock(db *gorm.DB, id uint) (*models.JobSnapshot, error) {
	var row T
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error; err != nil {
		return nil, err
	}
	snap := P(&row).Snapshot()
	return &snap, nil
}

// TakeSlot decrements the vacancies of a locked job and pauses it when the
// last slot is taken.
func (r gormJobRepository[T, P]) TakeSlot(db *gorm.DB, job *models.JobSnapshot) error {
	if job.Vacancies <= 0 {
		return ErrNoVacancy
	}
	remaining := job.Vacancies - 1
	state := job.State
	if remaining <= 0 {
		state = models.JobPaused
	}

	res := db.Model(P(new(T))).
		Where(byID(job.Ref.ID)).
		Where("vacantes_disponibles > 0").
		Updates(map[string]any{
			"vacantes_disponibles": gorm.Expr("vacantes_disponibles - 1"),
			"estado":               state,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrNoVacancy
	}

	job.Vacancies = remaining
	job.State = state
	return nil
}

// ReleaseSlot gives a slot back. A paused job becomes active again;
// a completed job is left as is.
func (r gormJobRepository[T, P]) ReleaseSlot(db *gorm.DB, job *models.JobSnapshot) error {
	if job.State == models.JobCompleted {
		return nil
	}
	remaining := job.Vacancies + 1
	state := job.State
	if state == models.JobPaused && remaining > 0 {
		state = models.JobActive
	}

	err := db.Model(P(new(T))).
		Where(byID(job.Ref.ID)).
		Updates(map[string]any{
			"vacantes_disponibles": gorm.Expr("vacantes_disponibles + 1"),
			"estado":               state,
		}).Error
	if err != nil {
		return err
	}

	job.Vacancies = remaining
	job.State = state
	return nil
}

func (r gormJobRepository[T, P]) Complete(db *gorm.DB, job *models.JobSnapshot) error {
	err := db.Model(P(new(T))).
		Where(byID(job.Ref.ID)).
		Updates(map[string]any{
			"vacantes_disponibles": 0,
			"estado":               models.JobCompleted,
		}).Error
	if err != nil {
		return err
	}
	job.Vacancies = 0
	job.State = models.JobCompleted
	return nil
}

func (r gormJobRepository[T, P]) ListByContractor(ctx context.Context, db *gorm.DB, contractorEmail string) ([]models.JobSnapshot, error) {
	var rows []T
	if err := db.WithContext(ctx).
		Where("email_contratista = ?", contractorEmail).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return snapshots[T, P](rows), nil
}

func (r gormJobRepository[T, P]) ListOpen(ctx context.Context, db *gorm.DB) ([]models.JobSnapshot, error) {
	var rows []T
	if err := db.WithContext(ctx).
		Where("estado = ? AND vacantes_disponibles > 0", models.JobActive).
		Where("latitud IS NOT NULL AND longitud IS NOT NULL").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return snapshots[T, P](rows), nil
}

func (r gormJobRepository[T, P]) Titles(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []T
	if err := db.WithContext(ctx).Find(&rows, ids).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		s := P(&rows[i]).Snapshot()
		out[s.Ref.ID] = s.Title
	}
	return out, nil
}

func snapshots[T any, P interface {
	*T
	models.JobRecord
}](rows []T) []models.JobSnapshot {
	out := make([]models.JobSnapshot, 0, len(rows))
	for i := range rows {
		out = append(out, P(&rows[i]).Snapshot())
	}
	return out
}

// Jobs resolves a JobKind to the repository of its table.
type Jobs struct {
	byKind map[models.JobKind]JobRepository
}

func NewJobs() *Jobs {
	return &Jobs{byKind: map[models.JobKind]JobRepository{
		models.JobShortTerm: gormJobRepository[models.ShortTermJob, *models.ShortTermJob]{kind: models.JobShortTerm},
		models.JobLongTerm:  gormJobRepository[models.LongTermJob, *models.LongTermJob]{kind: models.JobLongTerm},
	}}
}

func (j *Jobs) For(kind models.JobKind) (JobRepository, error) {
	repo, ok := j.byKind[kind]
	if !ok {
		return nil, ErrUnknownJobKind
	}
	return repo, nil
}

// All returns the repositories in a stable order.
func (j *Jobs) All() []JobRepository {
	return []JobRepository{j.byKind[models.JobShortTerm], j.byKind[models.JobLongTerm]}
}

// Title is a convenience for notification texts; it returns "" when the
// job cannot be read.
func (j *Jobs) Title(ctx context.Context, db *gorm.DB, ref models.JobRef) string {
	repo, err := j.For(ref.Kind)
	if err != nil {
		return ""
	}
	snap, err := repo.Get(ctx, db, ref.ID)
	if err != nil {
		return ""
	}
	return snap.Title
}
