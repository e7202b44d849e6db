package assignments

import (
	"context"
	"testing"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

func TestWorkersForJob_MarksFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w1@x.com", "Pedro")
	dbtest.Worker(t, f.db, "w2@x.com", "Luis")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Cuadrilla", 3)
	for _, e := range []string{"w1@x.com", "w2@x.com"} {
		if _, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: e, Job: job}); err != nil {
			t.Fatalf("assign %s: %v", e, err)
		}
	}
	if err := f.db.Create(&models.Favorite{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com"}).Error; err != nil {
		t.Fatalf("seed favorite: %v", err)
	}

	got, err := f.svc.WorkersForJob(ctx, "c@x.com", job)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("workers: %+v", got)
	}
	fav := map[string]bool{}
	for _, w := range got {
		fav[w.Email] = w.Favorite
	}
	if fav["w1@x.com"] || !fav["w2@x.com"] {
		t.Fatalf("favorites: %v", fav)
	}

	dbtest.Contractor(t, f.db, "other@x.com", "Eva")
	if _, err := f.svc.WorkersForJob(ctx, "other@x.com", job); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCurrentForWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	job := dbtest.LongJob(t, f.db, "c@x.com", "Remodelación", 1)

	cur, err := f.svc.CurrentForWorker(ctx, "w@x.com")
	if err != nil || cur != nil {
		t.Fatalf("no assignment yet: %v %v", cur, err)
	}

	if _, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	cur, err = f.svc.CurrentForWorker(ctx, "w@x.com")
	if err != nil || cur == nil {
		t.Fatalf("current: %v %v", cur, err)
	}
	if cur.Job.Title != "Remodelación" || cur.ContractorName != "Ana" {
		t.Fatalf("current: %+v", cur)
	}

	list, err := f.svc.ListForContractor(ctx, "c@x.com")
	if err != nil || len(list) != 1 || list[0].JobTitle != "Remodelación" || list[0].WorkerName != "Pedro" {
		t.Fatalf("list: %+v %v", list, err)
	}
}

func TestManualNotices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 1)

	if err := f.svc.NotifyInterest(ctx, "c@x.com", "w@x.com", job); err != nil {
		t.Fatalf("interest: %v", err)
	}
	if err := f.svc.NotifyContractorCancellation(ctx, "c@x.com", "w@x.com", job); err != nil {
		t.Fatalf("cancellation: %v", err)
	}
	inbox := dbtest.Inbox(t, f.db, "w@x.com")
	if !hasKind(inbox, models.NotifContractorInterested) || !hasKind(inbox, models.NotifContractorCancellation) {
		t.Fatalf("inbox: %v", kinds(inbox))
	}
	if snap := dbtest.Job(t, f.db, job); snap.Vacancies != 1 {
		t.Fatalf("notices must not touch the job")
	}

	if err := f.svc.NotifyInterest(ctx, "c@x.com", "nobody@x.com", job); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
