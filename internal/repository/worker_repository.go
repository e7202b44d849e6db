package repository

import (
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

// LockWorker reads one worker with SELECT ... FOR UPDATE.
func LockWorker(tx *gorm.DB, email string) (*models.Worker, error) {
	var w models.Worker
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", email).
		First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// LockWorkers locks several workers in email order so concurrent batches
// never wait on each other in a cycle. Missing emails are skipped.
func LockWorkers(tx *gorm.DB, emails []string) ([]models.Worker, error) {
	uniq := dedupe(emails)
	if len(uniq) == 0 {
		return nil, nil
	}
	var ws []models.Worker
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email IN ?", uniq).
		Order("email").
		Find(&ws).Error
	return ws, err
}

func CountPendingRequests(tx *gorm.DB, workerEmail string) (int64, error) {
	var n int64
	err := tx.Model(&models.Request{}).
		Where("email_trabajador = ? AND estado = ?", workerEmail, models.RequestPending).
		Count(&n).Error
	return n, err
}

func HasActiveAssignment(tx *gorm.DB, workerEmail string) (bool, error) {
	var n int64
	err := tx.Model(&models.Assignment{}).
		Where("email_trabajador = ? AND estado = ?", workerEmail, models.AssignmentActive).
		Count(&n).Error
	return n > 0, err
}

// RecomputeAvailability applies the availability rule to a locked worker:
// available iff fewer than MaxPendingRequests pending requests and no
// active assignment.
func RecomputeAvailability(tx *gorm.DB, workerEmail string) (bool, error) {
	pending, err := CountPendingRequests(tx, workerEmail)
	if err != nil {
		return false, err
	}
	active, err := HasActiveAssignment(tx, workerEmail)
	if err != nil {
		return false, err
	}
	available := pending < models.MaxPendingRequests && !active
	err = SetAvailable(tx, workerEmail, available)
	return available, err
}

func SetAvailable(tx *gorm.DB, workerEmail string, available bool) error {
	return tx.Model(&models.Worker{}).
		Where("email = ?", workerEmail).
		Update("disponible", available).Error
}

func dedupe(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
