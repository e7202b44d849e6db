package dbtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

func Worker(t testing.TB, gdb *gorm.DB, email, name string) *models.Worker {
	t.Helper()
	w := &models.Worker{
		Email:         email,
		Username:      email,
		FirstName:     name,
		Password:      "x",
		Phone:         "5512345678",
		AverageRating: decimal.Zero,
		Available:     true,
	}
	if err := gdb.Create(w).Error; err != nil {
		t.Fatalf("seed worker %s: %v", email, err)
	}
	return w
}

func Contractor(t testing.TB, gdb *gorm.DB, email, name string) *models.Contractor {
	t.Helper()
	c := &models.Contractor{Email: email, Username: email, FirstName: name, Password: "x"}
	if err := gdb.Create(c).Error; err != nil {
		t.Fatalf("seed contractor %s: %v", email, err)
	}
	return c
}

func ShortJob(t testing.TB, gdb *gorm.DB, contractor, title string, vacancies int) models.JobRef {
	t.Helper()
	j := &models.ShortTermJob{ContractorEmail: contractor, Title: title, Vacancies: vacancies, State: models.JobActive}
	if err := gdb.Create(j).Error; err != nil {
		t.Fatalf("seed short job: %v", err)
	}
	return models.JobRef{Kind: models.JobShortTerm, ID: j.ID}
}

func LongJob(t testing.TB, gdb *gorm.DB, contractor, title string, vacancies int) models.JobRef {
	t.Helper()
	j := &models.LongTermJob{ContractorEmail: contractor, Title: title, Vacancies: vacancies, State: models.JobActive}
	if err := gdb.Create(j).Error; err != nil {
		t.Fatalf("seed long job: %v", err)
	}
	return models.JobRef{Kind: models.JobLongTerm, ID: j.ID}
}

// Job reads a job back through its table.
func Job(t testing.TB, gdb *gorm.DB, ref models.JobRef) models.JobSnapshot {
	t.Helper()
	var rec models.JobRecord
	switch ref.Kind {
	case models.JobShortTerm:
		var j models.ShortTermJob
		if err := gdb.First(&j, ref.ID).Error; err != nil {
			t.Fatalf("load short job: %v", err)
		}
		rec = j
	default:
		var j models.LongTermJob
		if err := gdb.First(&j, ref.ID).Error; err != nil {
			t.Fatalf("load long job: %v", err)
		}
		rec = j
	}
	return rec.Snapshot()
}

func ReloadWorker(t testing.TB, gdb *gorm.DB, email string) models.Worker {
	t.Helper()
	var w models.Worker
	if err := gdb.First(&w, "email = ?", email).Error; err != nil {
		t.Fatalf("reload worker: %v", err)
	}
	return w
}

// Inbox returns the notifications stored for a recipient, oldest first.
func Inbox(t testing.TB, gdb *gorm.DB, email string) []models.Notification {
	t.Helper()
	var ns []models.Notification
	if err := gdb.Where("email_destino = ?", email).Order("created_at, tipo").Find(&ns).Error; err != nil {
		t.Fatalf("load inbox: %v", err)
	}
	return ns
}

// Assignment inserts an assignment row as is. Job vacancies are untouched.
func Assignment(t testing.TB, gdb *gorm.DB, contractor, worker string, job models.JobRef, state models.AssignmentState) models.Assignment {
	t.Helper()
	a := models.Assignment{
		ContractorEmail: contractor,
		WorkerEmail:     worker,
		JobKind:         job.Kind,
		JobID:           job.ID,
		State:           state,
		AssignedAt:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := gdb.Create(&a).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return a
}
