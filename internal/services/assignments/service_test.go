package assignments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/db/dbtest"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/repository"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications/notifytest"
)

type fixture struct {
	db         *gorm.DB
	svc        *Service
	dispatcher *notifications.Dispatcher
	pusher     *notifytest.Pusher
	tasks      *notifications.InlineTasks
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		db:     gdb,
		pusher: &notifytest.Pusher{},
		tasks:  &notifications.InlineTasks{Logger: logger},
		now:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.dispatcher = notifications.NewDispatcher(gdb, f.pusher, logger, time.Hour, "")
	f.dispatcher.Now = clock
	f.svc = NewService(gdb, repository.NewJobs(), f.dispatcher, f.tasks, logger)
	f.svc.Now = clock

	dbtest.Contractor(t, gdb, "c@x.com", "Ana")
	return f
}

func (f *fixture) pendingRequest(t *testing.T, worker string, job models.JobRef, expiresIn time.Duration) models.Request {
	t.Helper()
	r := models.Request{
		WorkerEmail:     worker,
		ContractorEmail: "c@x.com",
		JobKind:         job.Kind,
		JobID:           job.ID,
		State:           models.RequestPending,
		CreatedAt:       f.now,
		ExpiresAt:       f.now.Add(expiresIn),
	}
	if err := f.db.Create(&r).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

func (f *fixture) assignment(t *testing.T, id uint) models.Assignment {
	t.Helper()
	var a models.Assignment
	if err := f.db.First(&a, id).Error; err != nil {
		t.Fatalf("load assignment %d: %v", id, err)
	}
	return a
}

func kinds(ns []models.Notification) []models.NotificationKind {
	out := make([]models.NotificationKind, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Kind)
	}
	return out
}

func hasKind(ns []models.Notification, kind models.NotificationKind) bool {
	for _, n := range ns {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func TestAssign_LastSlotPausesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w1@x.com", "Pedro")
	dbtest.Worker(t, f.db, "w2@x.com", "Luis")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Pintar fachada", 1)

	res, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w1@x.com", Job: job})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.RemainingSlots != 0 || res.JobState != models.JobPaused {
		t.Fatalf("result: %+v", res)
	}
	snap := dbtest.Job(t, f.db, job)
	if snap.Vacancies != 0 || snap.State != models.JobPaused {
		t.Fatalf("job: %+v", snap)
	}
	if w := dbtest.ReloadWorker(t, f.db, "w1@x.com"); w.Available {
		t.Fatalf("assigned worker must be unavailable")
	}

	_, err = f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com", Job: job})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second assign: expected conflict, got %v", err)
	}
	if snap := dbtest.Job(t, f.db, job); snap.Vacancies != 0 {
		t.Fatalf("vacancies went negative or changed: %d", snap.Vacancies)
	}
	if w := dbtest.ReloadWorker(t, f.db, "w2@x.com"); !w.Available {
		t.Fatalf("failed assign must leave the worker untouched")
	}

	inbox := dbtest.Inbox(t, f.db, "w1@x.com")
	if len(inbox) != 1 || inbox[0].Kind != models.NotifContractorInterested {
		t.Fatalf("direct hire notice: %v", kinds(inbox))
	}
}

func TestAssign_WorkerAlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	first := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 2)
	second := dbtest.LongJob(t, f.db, "c@x.com", "Dos", 2)

	if _, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: first}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// force availability back on so only the exclusivity check can stop the hire
	if err := repository.SetAvailable(f.db, "w@x.com", true); err != nil {
		t.Fatalf("set available: %v", err)
	}

	_, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: second})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var n int64
	f.db.Model(&models.Assignment{}).Where("email_trabajador = ? AND estado = ?", "w@x.com", models.AssignmentActive).Count(&n)
	if n != 1 {
		t.Fatalf("active assignments: %d", n)
	}
	if snap := dbtest.Job(t, f.db, second); snap.Vacancies != 2 {
		t.Fatalf("second job vacancies changed: %d", snap.Vacancies)
	}
}

func TestAssign_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	busy := dbtest.Worker(t, f.db, "busy@x.com", "Luis")
	dbtest.Contractor(t, f.db, "other@x.com", "Eva")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 1)
	foreign := dbtest.ShortJob(t, f.db, "other@x.com", "Ajeno", 1)
	if err := repository.SetAvailable(f.db, busy.Email, false); err != nil {
		t.Fatalf("set available: %v", err)
	}

	cases := []struct {
		name string
		in   AssignInput
		want apperr.Kind
	}{
		{"missing worker email", AssignInput{ContractorEmail: "c@x.com", Job: job}, apperr.KindValidation},
		{"bad job kind", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: models.JobRef{Kind: "medio", ID: 1}}, apperr.KindValidation},
		{"unknown worker", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "nobody@x.com", Job: job}, apperr.KindNotFound},
		{"unavailable worker", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "busy@x.com", Job: job}, apperr.KindConflict},
		{"unknown job", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: models.JobRef{Kind: models.JobShortTerm, ID: 999}}, apperr.KindNotFound},
		{"someone else's job", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: foreign}, apperr.KindForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Assign(ctx, tc.in)
			if err == nil || apperr.KindOf(err) != tc.want {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	var n int64
	f.db.Model(&models.Assignment{}).Count(&n)
	if n != 0 {
		t.Fatalf("no assignment should exist, got %d", n)
	}
}

func TestAssign_AcceptsPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Pintar fachada", 2)
	req := f.pendingRequest(t, "w@x.com", job, 10*time.Minute)
	if _, err := f.dispatcher.Create(ctx, notifications.NewRequestCreated("c@x.com", notifications.RequestCreated{
		RequestID: req.ID, Job: job, WorkerEmail: "w@x.com",
	}, 10*time.Minute)); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	// an unavailable worker can still be hired through their own request
	if err := repository.SetAvailable(f.db, "w@x.com", false); err != nil {
		t.Fatalf("set available: %v", err)
	}

	res, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job, RequestID: &req.ID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.RemainingSlots != 1 || res.JobState != models.JobActive {
		t.Fatalf("result: %+v", res)
	}

	var stored models.Request
	f.db.First(&stored, req.ID)
	if stored.State != models.RequestAccepted || stored.RespondedAt == nil {
		t.Fatalf("request: %+v", stored)
	}
	if inbox := dbtest.Inbox(t, f.db, "c@x.com"); len(inbox) != 0 {
		t.Fatalf("request notification should be cleaned up, got %v", kinds(inbox))
	}
	inbox := dbtest.Inbox(t, f.db, "w@x.com")
	if len(inbox) != 1 || inbox[0].Kind != models.NotifRequestAccepted {
		t.Fatalf("worker inbox: %v", kinds(inbox))
	}
	if inbox[0].AssignmentID == nil || *inbox[0].AssignmentID != res.AssignmentID {
		t.Fatalf("acceptance should reference the assignment")
	}
}

func TestAssign_CleanupFailureStillNotifiesWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.Notifier = notifytest.FailingCleanup{Notifier: f.dispatcher}
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Pintar fachada", 1)
	req := f.pendingRequest(t, "w@x.com", job, 10*time.Minute)

	if _, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job, RequestID: &req.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	inbox := dbtest.Inbox(t, f.db, "w@x.com")
	if len(inbox) != 1 || inbox[0].Kind != models.NotifRequestAccepted {
		t.Fatalf("worker inbox: %v", kinds(inbox))
	}
	failed := f.tasks.Failed()
	if len(failed) != 1 || failed[0] != "limpiar_notificaciones_solicitud" {
		t.Fatalf("only the cleanup should fail, got %v", failed)
	}
}

func TestAssign_RequestMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	dbtest.Worker(t, f.db, "w2@x.com", "Luis")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 3)
	otherJob := dbtest.ShortJob(t, f.db, "c@x.com", "Dos", 3)

	pending := f.pendingRequest(t, "w@x.com", job, 10*time.Minute)
	expired := f.pendingRequest(t, "w2@x.com", job, -time.Minute)
	rejected := f.pendingRequest(t, "w@x.com", otherJob, 10*time.Minute)
	f.db.Model(&models.Request{}).Where("id_solicitud = ?", rejected.ID).Update("estado", models.RequestRejected)
	missing := uint(999)

	cases := []struct {
		name string
		in   AssignInput
	}{
		{"wrong job", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: otherJob, RequestID: &pending.ID}},
		{"wrong worker", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com", Job: job, RequestID: &pending.ID}},
		{"expired", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com", Job: job, RequestID: &expired.ID}},
		{"not pending", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: otherJob, RequestID: &rejected.ID}},
		{"missing", AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job, RequestID: &missing}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Assign(ctx, tc.in)
			if !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
	if snap := dbtest.Job(t, f.db, job); snap.Vacancies != 3 {
		t.Fatalf("vacancies: %d", snap.Vacancies)
	}
}

func TestCancel_WorkerInitiated(t *testing.T) {
	cases := []struct {
		name          string
		skip          bool
		wantDismissal bool
	}{
		{"with default notice", false, true},
		{"default notice skipped", true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			dbtest.Worker(t, f.db, "w@x.com", "Pedro")
			job := dbtest.ShortJob(t, f.db, "c@x.com", "Pintar fachada", 1)
			assigned, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job})
			if err != nil {
				t.Fatalf("assign: %v", err)
			}

			res, err := f.svc.Cancel(ctx, CancelInput{
				ContractorEmail:         "c@x.com",
				WorkerEmail:             "w@x.com",
				InitiatedByWorker:       true,
				SkipDefaultNotification: tc.skip,
			})
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if res.RemainingSlots != 1 || res.JobState != models.JobActive || res.Job != job {
				t.Fatalf("result: %+v", res)
			}
			snap := dbtest.Job(t, f.db, job)
			if snap.Vacancies != 1 || snap.State != models.JobActive {
				t.Fatalf("job: %+v", snap)
			}
			if w := dbtest.ReloadWorker(t, f.db, "w@x.com"); !w.Available {
				t.Fatalf("worker should be available again")
			}
			a := f.assignment(t, assigned.AssignmentID)
			if a.State != models.AssignmentCancelled || a.CancelledAt == nil {
				t.Fatalf("assignment: %+v", a)
			}

			contractorInbox := dbtest.Inbox(t, f.db, "c@x.com")
			if len(contractorInbox) != 1 || contractorInbox[0].Kind != models.NotifWorkerCancelled {
				t.Fatalf("contractor inbox: %v", kinds(contractorInbox))
			}
			if got := hasKind(dbtest.Inbox(t, f.db, "w@x.com"), models.NotifDismissal); got != tc.wantDismissal {
				t.Fatalf("dismissal sent = %v, want %v", got, tc.wantDismissal)
			}
		})
	}
}

func TestCancel_ByContractor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	job := dbtest.LongJob(t, f.db, "c@x.com", "Obra", 3)
	if _, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	res, err := f.svc.Cancel(ctx, CancelInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if res.RemainingSlots != 3 {
		t.Fatalf("remaining: %d", res.RemainingSlots)
	}
	if len(dbtest.Inbox(t, f.db, "c@x.com")) != 0 {
		t.Fatalf("contractor-initiated cancel must not notify the contractor")
	}
	if !hasKind(dbtest.Inbox(t, f.db, "w@x.com"), models.NotifDismissal) {
		t.Fatalf("worker should get the dismissal")
	}
}

func TestCancel_NoActiveAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	dbtest.Contractor(t, f.db, "other@x.com", "Eva")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 1)

	_, err := f.svc.Cancel(ctx, CancelInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	_, err = f.svc.Cancel(ctx, CancelInput{ContractorEmail: "other@x.com", WorkerEmail: "w@x.com"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("other contractor: expected not found, got %v", err)
	}
	if snap := dbtest.Job(t, f.db, job); snap.Vacancies != 0 {
		t.Fatalf("vacancies: %d", snap.Vacancies)
	}
}

func TestCapacity_AssignAndCancelBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Cuadrilla", 2)
	for _, e := range []string{"a@x.com", "b@x.com", "d@x.com"} {
		dbtest.Worker(t, f.db, e, e)
	}

	steps := []struct {
		op        string
		worker    string
		wantErr   apperr.Kind
		ok        bool
		vacancies int
		state     models.JobState
	}{
		{"assign", "a@x.com", 0, true, 1, models.JobActive},
		{"assign", "b@x.com", 0, true, 0, models.JobPaused},
		{"assign", "d@x.com", apperr.KindConflict, false, 0, models.JobPaused},
		{"cancel", "a@x.com", 0, true, 1, models.JobActive},
		{"assign", "d@x.com", 0, true, 0, models.JobPaused},
		{"cancel", "b@x.com", 0, true, 1, models.JobActive},
		{"cancel", "d@x.com", 0, true, 2, models.JobActive},
	}
	for i, st := range steps {
		var err error
		if st.op == "assign" {
			_, err = f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: st.worker, Job: job})
		} else {
			_, err = f.svc.Cancel(ctx, CancelInput{ContractorEmail: "c@x.com", WorkerEmail: st.worker})
		}
		if st.ok && err != nil {
			t.Fatalf("step %d %s %s: %v", i, st.op, st.worker, err)
		}
		if !st.ok && !apperr.Is(err, st.wantErr) {
			t.Fatalf("step %d %s %s: expected %v, got %v", i, st.op, st.worker, st.wantErr, err)
		}
		snap := dbtest.Job(t, f.db, job)
		if snap.Vacancies != st.vacancies || snap.State != st.state {
			t.Fatalf("step %d: job %d/%s, want %d/%s", i, snap.Vacancies, snap.State, st.vacancies, st.state)
		}
	}
}

func TestFinalize_RatesWorkersAndClosesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w1@x.com", "Pedro")
	dbtest.Worker(t, f.db, "w2@x.com", "Luis")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Cuadrilla", 3)

	a1, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w1@x.com", Job: job})
	if err != nil {
		t.Fatalf("assign w1: %v", err)
	}
	a2, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com", Job: job})
	if err != nil {
		t.Fatalf("assign w2: %v", err)
	}

	review := "Excelente"
	res, err := f.svc.Finalize(ctx, FinalizeInput{
		ContractorEmail: "c@x.com",
		Job:             job,
		Ratings: []RatingInput{
			{AssignmentID: a1.AssignmentID, WorkerEmail: "w1@x.com", Stars: 5, Review: &review},
			{AssignmentID: a2.AssignmentID, WorkerEmail: "w2@x.com", Stars: 3},
		},
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.JobState != models.JobCompleted || len(res.UpdatedWorkers) != 2 {
		t.Fatalf("result: %+v", res)
	}

	snap := dbtest.Job(t, f.db, job)
	if snap.State != models.JobCompleted || snap.Vacancies != 0 {
		t.Fatalf("job: %+v", snap)
	}
	for _, tc := range []struct {
		email string
		id    uint
		avg   int64
	}{{"w1@x.com", a1.AssignmentID, 5}, {"w2@x.com", a2.AssignmentID, 3}} {
		if a := f.assignment(t, tc.id); a.State != models.AssignmentFinished || a.FinishedAt == nil {
			t.Fatalf("assignment %d: %+v", tc.id, a)
		}
		w := dbtest.ReloadWorker(t, f.db, tc.email)
		if !w.Available || !w.AverageRating.Equal(decimal.NewFromInt(tc.avg)) {
			t.Fatalf("worker %s: available=%v avg=%s", tc.email, w.Available, w.AverageRating)
		}
		if !hasKind(dbtest.Inbox(t, f.db, tc.email), models.NotifWorkerRated) {
			t.Fatalf("worker %s should be notified", tc.email)
		}
	}
}

func TestFinalize_ResubmissionUpdatesRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 1)
	a, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	for _, stars := range []int{2, 4} {
		if _, err := f.svc.Finalize(ctx, FinalizeInput{
			ContractorEmail: "c@x.com",
			Job:             job,
			Ratings:         []RatingInput{{AssignmentID: a.AssignmentID, WorkerEmail: "w@x.com", Stars: stars}},
		}); err != nil {
			t.Fatalf("finalize %d: %v", stars, err)
		}
	}

	var rs []models.Rating
	f.db.Where("id_asignacion = ?", a.AssignmentID).Find(&rs)
	if len(rs) != 1 || rs[0].Stars != 4 {
		t.Fatalf("ratings: %+v", rs)
	}
	if w := dbtest.ReloadWorker(t, f.db, "w@x.com"); !w.AverageRating.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("average: %s", w.AverageRating)
	}
}

func TestFinalize_InvalidEntryAbortsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w1@x.com", "Pedro")
	dbtest.Worker(t, f.db, "w2@x.com", "Luis")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 2)
	otherJob := dbtest.ShortJob(t, f.db, "c@x.com", "Dos", 2)

	a1, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w1@x.com", Job: job})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	a2, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com", Job: otherJob})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err = f.svc.Finalize(ctx, FinalizeInput{
		ContractorEmail: "c@x.com",
		Job:             job,
		Ratings: []RatingInput{
			{AssignmentID: a1.AssignmentID, WorkerEmail: "w1@x.com", Stars: 5},
			{AssignmentID: a2.AssignmentID, WorkerEmail: "w2@x.com", Stars: 4},
		},
	})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if a := f.assignment(t, a1.AssignmentID); a.State != models.AssignmentActive {
		t.Fatalf("first assignment must stay active: %s", a.State)
	}
	var n int64
	f.db.Model(&models.Rating{}).Count(&n)
	if n != 0 {
		t.Fatalf("ratings stored: %d", n)
	}
	if snap := dbtest.Job(t, f.db, job); snap.State == models.JobCompleted {
		t.Fatalf("job must not be completed")
	}
	if w := dbtest.ReloadWorker(t, f.db, "w1@x.com"); w.Available {
		t.Fatalf("worker must stay unavailable")
	}
	if len(dbtest.Inbox(t, f.db, "w1@x.com")) != 1 {
		t.Fatalf("only the hire notice should exist")
	}
}

func TestFinalize_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w@x.com", "Pedro")
	dbtest.Contractor(t, f.db, "other@x.com", "Eva")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Uno", 2)
	a, err := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w@x.com", Job: job})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	dbtest.Worker(t, f.db, "gone@x.com", "Leo")
	cancelled := dbtest.Assignment(t, f.db, "c@x.com", "gone@x.com", job, models.AssignmentCancelled)

	ok := RatingInput{AssignmentID: a.AssignmentID, WorkerEmail: "w@x.com", Stars: 4}
	cases := []struct {
		name string
		in   FinalizeInput
		want apperr.Kind
	}{
		{"empty list", FinalizeInput{ContractorEmail: "c@x.com", Job: job}, apperr.KindValidation},
		{"stars out of range", FinalizeInput{ContractorEmail: "c@x.com", Job: job, Ratings: []RatingInput{{AssignmentID: a.AssignmentID, WorkerEmail: "w@x.com", Stars: 6}}}, apperr.KindValidation},
		{"duplicate assignment", FinalizeInput{ContractorEmail: "c@x.com", Job: job, Ratings: []RatingInput{ok, ok}}, apperr.KindValidation},
		{"unknown worker", FinalizeInput{ContractorEmail: "c@x.com", Job: job, Ratings: []RatingInput{{AssignmentID: a.AssignmentID, WorkerEmail: "nobody@x.com", Stars: 4}}}, apperr.KindNotFound},
		{"not the owner", FinalizeInput{ContractorEmail: "other@x.com", Job: job, Ratings: []RatingInput{ok}}, apperr.KindForbidden},
		{"unknown assignment", FinalizeInput{ContractorEmail: "c@x.com", Job: job, Ratings: []RatingInput{{AssignmentID: 999, WorkerEmail: "w@x.com", Stars: 4}}}, apperr.KindNotFound},
		{"cancelled assignment", FinalizeInput{ContractorEmail: "c@x.com", Job: job, Ratings: []RatingInput{{AssignmentID: cancelled.ID, WorkerEmail: "gone@x.com", Stars: 4}}}, apperr.KindConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Finalize(ctx, tc.in)
			if err == nil || apperr.KindOf(err) != tc.want {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
	if a := f.assignment(t, a.AssignmentID); a.State != models.AssignmentActive {
		t.Fatalf("assignment changed: %s", a.State)
	}
}

func TestFinalize_NotificationFailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dbtest.Worker(t, f.db, "w1@x.com", "Pedro")
	dbtest.Worker(t, f.db, "w2@x.com", "Luis")
	job := dbtest.ShortJob(t, f.db, "c@x.com", "Cuadrilla", 2)
	a1, _ := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w1@x.com", Job: job})
	a2, _ := f.svc.Assign(ctx, AssignInput{ContractorEmail: "c@x.com", WorkerEmail: "w2@x.com", Job: job})
	if a1 == nil || a2 == nil {
		t.Fatalf("setup assignments failed")
	}
	f.pusher.Fail = true

	res, err := f.svc.Finalize(ctx, FinalizeInput{
		ContractorEmail: "c@x.com",
		Job:             job,
		Ratings: []RatingInput{
			{AssignmentID: a1.AssignmentID, WorkerEmail: "w1@x.com", Stars: 5},
			{AssignmentID: a2.AssignmentID, WorkerEmail: "w2@x.com", Stars: 2},
		},
	})
	if err != nil {
		t.Fatalf("finalize must succeed despite push failures: %v", err)
	}
	if len(res.UpdatedWorkers) != 2 {
		t.Fatalf("updated: %+v", res.UpdatedWorkers)
	}
	if got := len(f.tasks.Failed()); got != 2 {
		t.Fatalf("each worker's task should fail on its own, got %d failures", got)
	}
	for _, e := range []string{"w1@x.com", "w2@x.com"} {
		if !hasKind(dbtest.Inbox(t, f.db, e), models.NotifWorkerRated) {
			t.Fatalf("%s inbox row should be stored before the push fails", e)
		}
	}
}
