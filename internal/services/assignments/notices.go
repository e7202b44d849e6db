package assignments

import (
	"context"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
)

// checkNotice verifies that the job belongs to the contractor and the worker
// exists, and returns the job title.
func (s *Service) checkNotice(ctx context.Context, contractorEmail, workerEmail string, job models.JobRef) (string, error) {
	if contractorEmail == "" || workerEmail == "" {
		return "", apperr.Validation("El contratista y el trabajador son requeridos")
	}
	if !job.Valid() {
		return "", apperr.Validation("Tipo o id de trabajo inválido")
	}
	repo, err := s.Jobs.For(job.Kind)
	if err != nil {
		return "", apperr.Validation("Tipo de trabajo inválido")
	}
	snap, err := repo.Get(ctx, s.DB, job.ID)
	if err != nil {
		return "", apperr.FromDB(err, "Trabajo no encontrado")
	}
	if snap.ContractorEmail != contractorEmail {
		return "", apperr.Forbidden("El trabajo no pertenece a este contratista")
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Worker{}).Where("email = ?", workerEmail).Count(&n).Error; err != nil {
		return "", apperr.FromDB(err, "No se pudo leer el trabajador")
	}
	if n == 0 {
		return "", apperr.NotFound("Trabajador no encontrado")
	}
	return snap.Title, nil
}

// NotifyInterest tells a worker that the contractor is interested in them
// for a job, without hiring.
func (s *Service) NotifyInterest(ctx context.Context, contractorEmail, workerEmail string, job models.JobRef) error {
	contractorEmail, workerEmail = normalizeEmail(contractorEmail), normalizeEmail(workerEmail)
	title, err := s.checkNotice(ctx, contractorEmail, workerEmail, job)
	if err != nil {
		return err
	}
	s.Tasks.Go(string(models.NotifContractorInterested), func(ctx context.Context) error {
		payload := notifications.ContractorInterested{
			Job:             job,
			JobTitle:        title,
			ContractorEmail: contractorEmail,
			ContractorName:  repository.ContractorName(ctx, s.DB, contractorEmail),
		}
		return s.Notifier.Notify(ctx, notifications.NewContractorInterested(workerEmail, payload))
	})
	return nil
}

// NotifyContractorCancellation tells a worker the contractor dropped them
// from a job. No assignment state changes.
func (s *Service) NotifyContractorCancellation(ctx context.Context, contractorEmail, workerEmail string, job models.JobRef) error {
	contractorEmail, workerEmail = normalizeEmail(contractorEmail), normalizeEmail(workerEmail)
	title, err := s.checkNotice(ctx, contractorEmail, workerEmail, job)
	if err != nil {
		return err
	}
	s.Tasks.Go(string(models.NotifContractorCancellation), func(ctx context.Context) error {
		payload := notifications.ContractorCancellation{
			Job:             job,
			JobTitle:        title,
			ContractorEmail: contractorEmail,
			ContractorName:  repository.ContractorName(ctx, s.DB, contractorEmail),
		}
		return s.Notifier.Notify(ctx, notifications.NewContractorCancellation(workerEmail, payload))
	})
	return nil
}
