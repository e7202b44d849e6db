package assignments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/config"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
)

type AssignmentView struct {
	models.Assignment
	JobTitle   string `json:"tituloTrabajo"`
	WorkerName string `json:"nombreTrabajador"`
}

// ListForContractor returns the contractor's active assignments, newest first.
func (s *Service) ListForContractor(ctx context.Context, contractorEmail string) ([]AssignmentView, error) {
	contractorEmail = normalizeEmail(contractorEmail)
	if contractorEmail == "" {
		return nil, apperr.Validation("El email del contratista es requerido")
	}

	var rows []models.Assignment
	if err := s.DB.WithContext(ctx).
		Where("email_contratista = ? AND estado = ?", contractorEmail, models.AssignmentActive).
		Order("fecha_asignacion DESC, id_asignacion DESC").
		Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron obtener las asignaciones")
	}

	ids := map[models.JobKind][]uint{}
	for _, a := range rows {
		ids[a.JobKind] = append(ids[a.JobKind], a.JobID)
	}
	titles := map[models.JobRef]string{}
	for kind, list := range ids {
		repo, err := s.Jobs.For(kind)
		if err != nil {
			continue
		}
		byID, err := repo.Titles(ctx, s.DB, list)
		if err != nil {
			config.LogError(s.Logger, moduleName, "ListForContractor", "job titles", kind, err)
			continue
		}
		for id, title := range byID {
			titles[models.JobRef{Kind: kind, ID: id}] = title
		}
	}

	out := make([]AssignmentView, 0, len(rows))
	for _, a := range rows {
		out = append(out, AssignmentView{
			Assignment: a,
			JobTitle:   titles[a.JobRef()],
			WorkerName: repository.WorkerName(ctx, s.DB, a.WorkerEmail),
		})
	}
	return out, nil
}

type JobWorker struct {
	AssignmentID  uint            `json:"idAsignacion"`
	Email         string          `json:"email"`
	Name          string          `json:"nombre"`
	Phone         string          `json:"telefono"`
	PhotoURL      string          `json:"foto_perfil"`
	AverageRating decimal.Decimal `json:"calificacion_promedio"`
	Favorite      bool            `json:"es_favorito"`
	AssignedAt    time.Time       `json:"fechaAsignacion"`
}

// WorkersForJob lists the workers actively assigned to one of the
// contractor's jobs.
func (s *Service) WorkersForJob(ctx context.Context, contractorEmail string, job models.JobRef) ([]JobWorker, error) {
	contractorEmail = normalizeEmail(contractorEmail)
	if contractorEmail == "" {
		return nil, apperr.Validation("El email del contratista es requerido")
	}
	if !job.Valid() {
		return nil, apperr.Validation("Tipo o id de trabajo inválido")
	}
	repo, err := s.Jobs.For(job.Kind)
	if err != nil {
		return nil, apperr.Validation("Tipo de trabajo inválido")
	}
	snap, err := repo.Get(ctx, s.DB, job.ID)
	if err != nil {
		return nil, apperr.FromDB(err, "Trabajo no encontrado")
	}
	if snap.ContractorEmail != contractorEmail {
		return nil, apperr.Forbidden("El trabajo no pertenece a este contratista")
	}

	var rows []models.Assignment
	if err := s.DB.WithContext(ctx).
		Where("tipo_trabajo = ? AND id_trabajo = ? AND estado = ?", job.Kind, job.ID, models.AssignmentActive).
		Order("fecha_asignacion").
		Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron obtener los trabajadores")
	}
	if len(rows) == 0 {
		return []JobWorker{}, nil
	}

	emails := make([]string, 0, len(rows))
	for _, a := range rows {
		emails = append(emails, a.WorkerEmail)
	}
	var workers []models.Worker
	if err := s.DB.WithContext(ctx).Where("email IN ?", emails).Find(&workers).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron obtener los trabajadores")
	}
	byEmail := make(map[string]models.Worker, len(workers))
	for _, w := range workers {
		byEmail[w.Email] = w
	}
	var favs []string
	if err := s.DB.WithContext(ctx).Model(&models.Favorite{}).
		Where("email_contratista = ? AND email_trabajador IN ?", contractorEmail, emails).
		Pluck("email_trabajador", &favs).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudieron obtener los favoritos")
	}
	isFav := make(map[string]bool, len(favs))
	for _, e := range favs {
		isFav[e] = true
	}

	out := make([]JobWorker, 0, len(rows))
	for _, a := range rows {
		w := byEmail[a.WorkerEmail]
		out = append(out, JobWorker{
			AssignmentID:  a.ID,
			Email:         a.WorkerEmail,
			Name:          w.DisplayName(),
			Phone:         w.Phone,
			PhotoURL:      w.PhotoURL,
			AverageRating: w.AverageRating,
			Favorite:      isFav[a.WorkerEmail],
			AssignedAt:    a.AssignedAt,
		})
	}
	return out, nil
}

type CurrentAssignment struct {
	models.Assignment
	Job             models.JobSnapshot `json:"detalleTrabajo"`
	ContractorName  string             `json:"nombreContratista"`
	ContractorPhone string             `json:"telefonoContratista"`
}

// CurrentForWorker returns the worker's active assignment, or nil.
func (s *Service) CurrentForWorker(ctx context.Context, workerEmail string) (*CurrentAssignment, error) {
	workerEmail = normalizeEmail(workerEmail)
	if workerEmail == "" {
		return nil, apperr.Validation("El email del trabajador es requerido")
	}

	var rows []models.Assignment
	if err := s.DB.WithContext(ctx).
		Where("email_trabajador = ? AND estado = ?", workerEmail, models.AssignmentActive).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "No se pudo obtener la asignación")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	a := rows[0]

	out := &CurrentAssignment{Assignment: a}
	if repo, err := s.Jobs.For(a.JobKind); err == nil {
		if snap, err := repo.Get(ctx, s.DB, a.JobID); err == nil {
			out.Job = *snap
		} else {
			config.LogError(s.Logger, moduleName, "CurrentForWorker", "load job", a.JobRef(), err)
		}
	}
	var c models.Contractor
	if err := s.DB.WithContext(ctx).Where("email = ?", a.ContractorEmail).First(&c).Error; err == nil {
		out.ContractorName = c.DisplayName()
		out.ContractorPhone = c.Phone
	}
	return out, nil
}
