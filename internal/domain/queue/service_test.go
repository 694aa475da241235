package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/platform/clock"
)

func newTestService() (*Service, *clock.Fixed) {
	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	return NewService(NewRepoMem(), clk), clk
}

func enqueue(t *testing.T, svc *Service, patient, doctor uuid.UUID, prio Priority) *Entry {
	t.Helper()
	e := &Entry{PatientID: patient, DoctorID: doctor, Day: "2025-03-10", Priority: prio}
	if err := svc.Enqueue(context.Background(), e); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return e
}

func TestEnqueue_AssignsSequentialNumbers(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()

	for i := 1; i <= 3; i++ {
		e := enqueue(t, svc, uuid.New(), doctor, PriorityNormal)
		if e.QueueNumber != i {
			t.Errorf("entry %d: queue number = %d", i, e.QueueNumber)
		}
		if e.Status != StatusWaiting {
			t.Errorf("entry %d: status = %s, want WAITING", i, e.Status)
		}
	}
}

func TestEnqueue_NumbersIndependentPerDoctor(t *testing.T) {
	svc, _ := newTestService()
	docA, docB := uuid.New(), uuid.New()

	enqueue(t, svc, uuid.New(), docA, PriorityNormal)
	enqueue(t, svc, uuid.New(), docA, PriorityNormal)
	e := enqueue(t, svc, uuid.New(), docB, PriorityNormal)
	if e.QueueNumber != 1 {
		t.Errorf("first entry for second doctor got number %d", e.QueueNumber)
	}
}

func TestEnqueue_DuplicateActiveRejected(t *testing.T) {
	svc, _ := newTestService()
	patient, doctor := uuid.New(), uuid.New()

	enqueue(t, svc, patient, doctor, PriorityNormal)

	dup := &Entry{PatientID: patient, DoctorID: doctor, Day: "2025-03-10"}
	err := svc.Enqueue(context.Background(), dup)
	if !errors.Is(err, ErrDuplicateActiveEntry) {
		t.Fatalf("expected ErrDuplicateActiveEntry, got %v", err)
	}
}

func TestEnqueue_AllowedAgainAfterCancel(t *testing.T) {
	svc, _ := newTestService()
	patient, doctor := uuid.New(), uuid.New()

	first := enqueue(t, svc, patient, doctor, PriorityNormal)
	if _, err := svc.Cancel(context.Background(), first.ID, "patient left"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second := &Entry{PatientID: patient, DoctorID: doctor, Day: "2025-03-10"}
	if err := svc.Enqueue(context.Background(), second); err != nil {
		t.Fatalf("re-enqueue after cancel: %v", err)
	}
	if second.QueueNumber != 2 {
		t.Errorf("cancelled numbers must not be reused, got %d", second.QueueNumber)
	}
}

func TestEnqueue_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Enqueue(ctx, &Entry{DoctorID: uuid.New()}); err == nil {
		t.Error("missing patient_id accepted")
	}
	if err := svc.Enqueue(ctx, &Entry{PatientID: uuid.New()}); err == nil {
		t.Error("missing doctor_id accepted")
	}
	if err := svc.Enqueue(ctx, &Entry{PatientID: uuid.New(), DoctorID: uuid.New(), Day: "10-03-2025"}); err == nil {
		t.Error("malformed day accepted")
	}
	if err := svc.Enqueue(ctx, &Entry{PatientID: uuid.New(), DoctorID: uuid.New(), Priority: "ASAP"}); err == nil {
		t.Error("unknown priority accepted")
	}
}

func TestEnqueue_DefaultsDayFromClock(t *testing.T) {
	svc, clk := newTestService()
	e := &Entry{PatientID: uuid.New(), DoctorID: uuid.New()}
	if err := svc.Enqueue(context.Background(), e); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if e.Day != clk.Now().Format(DayFormat) {
		t.Errorf("day = %q", e.Day)
	}
	if !e.CheckInTime.Equal(clk.Now()) {
		t.Errorf("check-in time = %v, want clock time", e.CheckInTime)
	}
}

func TestCall_FromWaiting(t *testing.T) {
	svc, clk := newTestService()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	called, err := svc.Call(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if called.Status != StatusCalled {
		t.Errorf("status = %s", called.Status)
	}
	if called.CalledTime == nil || !called.CalledTime.Equal(clk.Now()) {
		t.Errorf("called_time = %v", called.CalledTime)
	}
}

func TestCall_RejectedAfterCompletion(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	if _, err := svc.Start(ctx, e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, e.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := svc.Call(ctx, e.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatal("error does not carry the observed status")
	}
	if terr.Current != StatusCompleted || terr.Target != StatusCalled {
		t.Errorf("observed %s -> %s", terr.Current, terr.Target)
	}
}

func TestStart_FromWaitingOrCalled(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	direct := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)
	if _, err := svc.Start(ctx, direct.ID); err != nil {
		t.Errorf("start from WAITING: %v", err)
	}

	viaCall := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)
	if _, err := svc.Call(ctx, viaCall.ID); err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, err := svc.Start(ctx, viaCall.ID); err != nil {
		t.Errorf("start from CALLED: %v", err)
	}
}

func TestComplete_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	if _, err := svc.Start(ctx, e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := svc.Complete(ctx, e.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	again, err := svc.Complete(ctx, e.ID)
	if err != nil {
		t.Fatalf("repeated complete must succeed, got %v", err)
	}
	if again.CompletedTime == nil || !again.CompletedTime.Equal(*first.CompletedTime) {
		t.Error("repeated complete changed the completion timestamp")
	}
}

func TestComplete_RejectedFromCancelled(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	if _, err := svc.Cancel(ctx, e.ID, "no-show"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Complete(ctx, e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_RequiresReason(t *testing.T) {
	svc, _ := newTestService()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	if _, err := svc.Cancel(context.Background(), e.ID, ""); err == nil {
		t.Fatal("cancel without reason accepted")
	}
}

func TestCancel_RecordsReason(t *testing.T) {
	svc, _ := newTestService()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	cancelled, err := svc.Cancel(context.Background(), e.ID, "patient left")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "patient left" {
		t.Errorf("cancel reason = %v", cancelled.CancelReason)
	}
}

func TestCancel_InProgress(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	if _, err := svc.Start(ctx, e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancelled, err := svc.Cancel(ctx, e.ID, "patient walked out")
	if err != nil {
		t.Fatalf("cancel in-progress entry: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "patient walked out" {
		t.Errorf("cancel reason = %v", cancelled.CancelReason)
	}
}

func TestCancel_RejectedCompleted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	if _, err := svc.Start(ctx, e.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Complete(ctx, e.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Cancel(ctx, e.ID, "too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestNextWaiting_UrgentBeforeNormal(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()

	enqueue(t, svc, uuid.New(), doctor, PriorityNormal)
	urgent := enqueue(t, svc, uuid.New(), doctor, PriorityUrgent)

	next, err := svc.NextWaiting(context.Background(), doctor, "2025-03-10")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.ID != urgent.ID {
		t.Errorf("next = #%d %s, want the urgent entry", next.QueueNumber, next.Priority)
	}
}

func TestNextWaiting_FIFOWithinPriority(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doctor := uuid.New()

	first := enqueue(t, svc, uuid.New(), doctor, PriorityNormal)
	enqueue(t, svc, uuid.New(), doctor, PriorityNormal)

	next, err := svc.NextWaiting(ctx, doctor, "2025-03-10")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.ID != first.ID {
		t.Errorf("next queue number = %d, want 1", next.QueueNumber)
	}
}

func TestNextWaiting_EmptyQueue(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.NextWaiting(context.Background(), uuid.New(), "2025-03-10")
	if !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestListDay_CallingOrder(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()

	n1 := enqueue(t, svc, uuid.New(), doctor, PriorityNormal)
	u1 := enqueue(t, svc, uuid.New(), doctor, PriorityUrgent)
	n2 := enqueue(t, svc, uuid.New(), doctor, PriorityNormal)

	entries, total, err := svc.ListDay(context.Background(), doctor, "2025-03-10", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d", total)
	}
	want := []uuid.UUID{u1.ID, n1.ID, n2.ID}
	for i, e := range entries {
		if e.ID != want[i] {
			t.Errorf("position %d: #%d %s", i, e.QueueNumber, e.Priority)
		}
	}
}

func TestConcurrentStart_OneWinner(t *testing.T) {
	svc, _ := newTestService()
	e := enqueue(t, svc, uuid.New(), uuid.New(), PriorityNormal)

	const writers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Start(context.Background(), e.ID); err == nil {
				wins <- struct{}{}
			} else if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("%d writers observed success, want exactly 1", count)
	}
}
