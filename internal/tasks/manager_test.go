package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"reflow/internal/broker"
	"reflow/internal/history"
	"reflow/internal/tasks"
)

type memoryRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memoryRecorder) Record(ctx context.Context, run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRecorder) recorded() []history.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Run(nil), m.runs...)
}

func newManager(t *testing.T, recorder tasks.Recorder) *tasks.Manager {
	t.Helper()
	m := tasks.NewManager(broker.New(), nil, recorder, 100*time.Millisecond)
	t.Cleanup(m.Close)
	return m
}

// streamUntilTerminal collects events for the session, calling onFirst once
// the stream is live (on the connected event) so tests can gate task work on
// the subscription being in place.
func streamUntilTerminal(t *testing.T, m *tasks.Manager, sessionID uuid.UUID, onFirst func()) []broker.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []broker.Event
	var once sync.Once
	err := m.Stream(ctx, sessionID, func(evt broker.Event) error {
		if onFirst != nil {
			once.Do(onFirst)
		}
		events = append(events, evt)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Stream failed: %v", err)
	}
	if len(events) == 0 || events[0].Name != broker.EventConnected {
		t.Fatalf("expected connected event first, got %+v", events)
	}
	return events
}

func TestTaskCompletionPublishesTerminalEvent(t *testing.T) {
	recorder := &memoryRecorder{}
	m := newManager(t, recorder)
	sessionID := uuid.New()

	release := make(chan struct{})
	taskID, err := m.StartTask(sessionID, "recognition", func(ctx context.Context) (tasks.Result, error) {
		<-release
		return tasks.Result{Pages: 2}, nil
	})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	events := streamUntilTerminal(t, m, sessionID, func() { close(release) })
	last := events[len(events)-1]
	if last.Name != broker.EventTaskCompleted {
		t.Fatalf("expected task-completed terminal event, got %q", last.Name)
	}
	if last.TaskID != taskID.String() {
		t.Fatalf("terminal event has wrong task id: %+v", last)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(recorder.recorded()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	runs := recorder.recorded()
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
	if runs[0].Outcome != history.OutcomeCompleted || runs[0].Pages != 2 {
		t.Fatalf("unexpected recorded run: %+v", runs[0])
	}
	if runs[0].TaskID != taskID.String() || runs[0].SessionID != sessionID.String() {
		t.Fatalf("recorded run has wrong identifiers: %+v", runs[0])
	}
}

func TestStartTaskRejectsBusySession(t *testing.T) {
	m := newManager(t, nil)
	sessionID := uuid.New()

	release := make(chan struct{})
	defer close(release)
	if _, err := m.StartTask(sessionID, "recognition", func(ctx context.Context) (tasks.Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return tasks.Result{}, nil
	}); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	if _, err := m.StartTask(sessionID, "recognition", func(ctx context.Context) (tasks.Result, error) {
		return tasks.Result{}, nil
	}); !errors.Is(err, tasks.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
}

func TestCancelPublishesCancelledEvent(t *testing.T) {
	m := newManager(t, nil)
	sessionID := uuid.New()

	taskID, err := m.StartTask(sessionID, "recognition", func(ctx context.Context) (tasks.Result, error) {
		<-ctx.Done()
		return tasks.Result{}, ctx.Err()
	})
	if err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	events := streamUntilTerminal(t, m, sessionID, func() { m.Cancel(taskID) })
	last := events[len(events)-1]
	if last.Name != broker.EventTaskCancelled {
		t.Fatalf("expected task-cancelled, got %q", last.Name)
	}
}

func TestFailurePublishesErrorDetail(t *testing.T) {
	m := newManager(t, nil)
	sessionID := uuid.New()

	release := make(chan struct{})
	if _, err := m.StartTask(sessionID, "recognition", func(ctx context.Context) (tasks.Result, error) {
		<-release
		return tasks.Result{}, errors.New("page 3 unreadable")
	}); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	events := streamUntilTerminal(t, m, sessionID, func() { close(release) })
	last := events[len(events)-1]
	if last.Name != broker.EventTaskFailed {
		t.Fatalf("expected task-failed, got %q", last.Name)
	}
	if last.Error != "page 3 unreadable" {
		t.Fatalf("terminal event missing error detail: %+v", last)
	}
}

func TestStreamEmitsHeartbeatsWhenIdle(t *testing.T) {
	m := newManager(t, nil)
	sessionID := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sawHeartbeat := false
	m.Stream(ctx, sessionID, func(evt broker.Event) error {
		if evt.Name == broker.EventHeartbeat {
			sawHeartbeat = true
			cancel()
		}
		return nil
	})
	if !sawHeartbeat {
		t.Fatal("expected at least one heartbeat on an idle stream")
	}
}

func TestCancelUnknownTaskIsNoOp(t *testing.T) {
	m := newManager(t, nil)
	m.Cancel(uuid.New())
}

func TestActiveTaskClearsAfterCompletion(t *testing.T) {
	m := newManager(t, nil)
	sessionID := uuid.New()

	release := make(chan struct{})
	if _, err := m.StartTask(sessionID, "recognition", func(ctx context.Context) (tasks.Result, error) {
		<-release
		return tasks.Result{}, nil
	}); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if _, running := m.ActiveTask(sessionID); !running {
		t.Fatal("expected task to be active while work is pending")
	}
	streamUntilTerminal(t, m, sessionID, func() { close(release) })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, running := m.ActiveTask(sessionID); !running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task still active after completion")
}
