package assignments

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications/notifytest"
)

// Several contractors race for the last slot of a job and one worker is
// hired twice at once; row locks must let exactly one of each through.
func TestAssign_ConcurrentLastSlot_Postgres(t *testing.T) {
	gdb := dbtest.Postgres(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tasks := notifications.NewAsyncTasks(logger, 5*time.Second)
	d := notifications.NewDispatcher(gdb, &notifytest.Pusher{}, logger, time.Hour, "")
	svc := NewService(gdb, repository.NewJobs(), d, tasks, logger)
	ctx := context.Background()

	run := time.Now().UnixNano()
	contractor := fmt.Sprintf("c-%d@x.com", run)
	dbtest.Contractor(t, gdb, contractor, "Ana")
	job := dbtest.ShortJob(t, gdb, contractor, "Carrera", 1)

	const n = 8
	workers := make([]string, n)
	for i := range workers {
		workers[i] = fmt.Sprintf("w%d-%d@x.com", i, run)
		dbtest.Worker(t, gdb, workers[i], "W")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Assign(ctx, AssignInput{ContractorEmail: contractor, WorkerEmail: w, Job: job})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			default:
				t.Errorf("assign %s: %v", w, err)
			}
		}()
	}
	wg.Wait()
	tasks.Wait()

	if succeeded != 1 || conflicts != n-1 {
		t.Fatalf("succeeded=%d conflicts=%d", succeeded, conflicts)
	}
	snap := dbtest.Job(t, gdb, job)
	if snap.Vacancies != 0 || snap.State != models.JobPaused {
		t.Fatalf("job: %+v", snap)
	}

	wide := dbtest.LongJob(t, gdb, contractor, "Amplio", n)
	target := fmt.Sprintf("solo-%d@x.com", run)
	dbtest.Worker(t, gdb, target, "Solo")
	succeeded, conflicts = 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Assign(ctx, AssignInput{ContractorEmail: contractor, WorkerEmail: target, Job: wide})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperr.Is(err, apperr.KindConflict) {
				conflicts++
			} else {
				t.Errorf("assign: %v", err)
			}
		}()
	}
	wg.Wait()
	tasks.Wait()

	if succeeded != 1 {
		t.Fatalf("worker hired %d times", succeeded)
	}
	if snap := dbtest.Job(t, gdb, wide); snap.Vacancies != n-1 {
		t.Fatalf("vacancies: %d", snap.Vacancies)
	}
}

// Same races on the single-connection sqlite store: transactions queue on
// the pool, so the losers must see the committed winner and back off.
func TestAssign_ConcurrentLastSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Carrera", 1)

	const n = 6
	workers := make([]string, n)
	for i := range workers {
		workers[i] = fmt.Sprintf("w%d@x.com", i)
		dbtest.Worker(t, f.db, workers[i], "W")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: w, Job: job})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Is(err, apperr.KindConflict):
				conflicts++
			default:
				t.Errorf("assign %s: %v", w, err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != n-1 {
		t.Fatalf("succeeded=%d conflicts=%d", succeeded, conflicts)
	}
	snap := dbtest.Job(t, f.db, job)
	if snap.Vacancies != 0 || snap.State != models.JobPaused {
		t.Fatalf("job: %+v", snap)
	}
	var active int64
	f.db.Model(&models.Assignment{}).Where("estado = ?", models.AssignmentActive).Count(&active)
	if active != 1 {
		t.Fatalf("active assignments: %d", active)
	}

	wide := dbtest.LongJob(t, f.db, "c@x.com", "Amplio", n)
	dbtest.Worker(t, f.db, "solo@x.com", "Solo")
	succeeded, conflicts = 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "solo@x.com", Job: wide})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperr.Is(err, apperr.KindConflict) {
				conflicts++
			} else {
				t.Errorf("assign: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != n-1 {
		t.Fatalf("worker hired %d times, %d conflicts", succeeded, conflicts)
	}
	if snap := dbtest.Job(t, f.db, wide); snap.Vacancies != n-1 {
		t.Fatalf("vacancies: %d", snap.Vacancies)
	}

	// the partial unique index refuses a second active row written around
	// the service
	dup := models.Assignment{
		ContractorEmail: "c@x.com",
		WorkerEmail:     "solo@x.com",
		JobKind:         job.Kind,
		JobID:           job.ID,
		State:           models.AssignmentActive,
		AssignedAt:      f.now,
	}
	if err := f.db.Create(&dup).Error; err == nil {
		t.Fatal("second active assignment for one worker was stored")
	}
	dup.ID = 0
	dup.State = models.AssignmentCancelled
	if err := f.db.Create(&dup).Error; err != nil {
		t.Fatalf("inactive rows are not constrained: %v", err)
	}
}
