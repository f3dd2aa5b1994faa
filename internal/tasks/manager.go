package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reflow/internal/broker"
	"reflow/internal/history"
	"reflow/internal/logging"
)

// ErrSessionBusy reports a StartTask call for a session that already has a
// task in flight.
var ErrSessionBusy = errors.New("session already has a task in flight")

// Result carries summary detail a work function reports on success.
type Result struct {
	Pages int
}

// Work is one unit of background work. It must honor context cancellation.
type Work func(ctx context.Context) (Result, error)

// Task is the ephemeral handle for one in-flight background run.
type Task struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Kind      string
	CreatedAt time.Time
}

// Recorder persists terminal task outcomes. A nil recorder disables history.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

type runningTask struct {
	meta   Task
	cancel context.CancelFunc
}

// Manager launches background tasks and exposes the live event stream.
type Manager struct {
	broker    *broker.Broker
	logger    *slog.Logger
	recorder  Recorder
	heartbeat time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	tasks     map[uuid.UUID]*runningTask
	bySession map[uuid.UUID]uuid.UUID
}

// NewManager constructs a task manager publishing into the given broker.
func NewManager(b *broker.Broker, logger *slog.Logger, recorder Recorder, heartbeat time.Duration) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Manager{
		broker:     b,
		logger:     logger,
		recorder:   recorder,
		heartbeat:  heartbeat,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		tasks:      make(map[uuid.UUID]*runningTask),
		bySession:  make(map[uuid.UUID]uuid.UUID),
	}
}

// Broker returns the underlying event broker.
func (m *Manager) Broker() *broker.Broker {
	return m.broker
}

// Publish sends a progress event to the session's live subscribers.
func (m *Manager) Publish(sessionID uuid.UUID, evt broker.Event) {
	m.broker.Publish(sessionID, evt)
}

// StartTask begins work for the session in the background and returns the
// task id without waiting for completion. The task-started event is
// published before the work begins.
func (m *Manager) StartTask(sessionID uuid.UUID, kind string, work Work) (uuid.UUID, error) {
	runCtx, cancel := context.WithCancel(m.rootCtx)
	task := &runningTask{
		meta: Task{
			ID:        uuid.New(),
			SessionID: sessionID,
			Kind:      kind,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	if _, busy := m.bySession[sessionID]; busy {
		m.mu.Unlock()
		cancel()
		return uuid.Nil, ErrSessionBusy
	}
	m.tasks[task.meta.ID] = task
	m.bySession[sessionID] = task.meta.ID
	m.mu.Unlock()

	m.Publish(sessionID, broker.Event{
		Name:   broker.EventTaskStarted,
		TaskID: task.meta.ID.String(),
		Kind:   kind,
	})

	m.wg.Add(1)
	go m.run(runCtx, task, work)
	return task.meta.ID, nil
}

func (m *Manager) run(ctx context.Context, task *runningTask, work Work) {
	defer m.wg.Done()
	defer task.cancel()

	result, err := work(ctx)
	finished := time.Now().UTC()

	m.mu.Lock()
	delete(m.tasks, task.meta.ID)
	delete(m.bySession, task.meta.SessionID)
	m.mu.Unlock()

	evt := broker.Event{
		TaskID: task.meta.ID.String(),
		Kind:   task.meta.Kind,
	}
	run := history.Run{
		TaskID:     task.meta.ID.String(),
		SessionID:  task.meta.SessionID.String(),
		Kind:       task.meta.Kind,
		Pages:      result.Pages,
		StartedAt:  task.meta.CreatedAt,
		FinishedAt: finished,
	}

	switch {
	case err == nil:
		evt.Name = broker.EventTaskCompleted
		run.Outcome = history.OutcomeCompleted
	case errors.Is(err, context.Canceled):
		evt.Name = broker.EventTaskCancelled
		run.Outcome = history.OutcomeCancelled
		m.logger.Info("task cancelled",
			logging.String("task", task.meta.ID.String()),
			logging.String("session", task.meta.SessionID.String()),
			logging.String("kind", task.meta.Kind))
	default:
		evt.Name = broker.EventTaskFailed
		evt.Error = err.Error()
		run.Outcome = history.OutcomeFailed
		run.ErrorMessage = err.Error()
		// Surface the failure at process level; the caller of StartTask
		// only ever saw the task id.
		m.logger.Error("task failed",
			logging.String("task", task.meta.ID.String()),
			logging.String("session", task.meta.SessionID.String()),
			logging.String("kind", task.meta.Kind),
			logging.Error(err))
	}

	m.Publish(task.meta.SessionID, evt)

	if m.recorder != nil {
		if recordErr := m.recorder.Record(context.Background(), run); recordErr != nil {
			m.logger.Warn("record task history", logging.Error(recordErr))
		}
	}
}

// Cancel requests cancellation of a still-running task. Unknown or already
// terminal ids are ignored.
func (m *Manager) Cancel(id uuid.UUID) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	m.mu.Unlock()
	if ok {
		task.cancel()
	}
}

// ActiveTask returns the in-flight task for a session, if any.
func (m *Manager) ActiveTask(sessionID uuid.UUID) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySession[sessionID]
	if !ok {
		return Task{}, false
	}
	return m.tasks[id].meta, true
}

// Stream feeds the session's events to emit until a terminal event is seen,
// the consumer's context ends, or emit fails. While the feed is idle past
// the heartbeat interval, a heartbeat event is substituted. The broker
// subscription is always released on return.
func (m *Manager) Stream(ctx context.Context, sessionID uuid.UUID, emit func(broker.Event) error) error {
	sub := m.broker.Subscribe(sessionID)
	defer m.broker.Unsubscribe(sessionID, sub)

	for {
		waitCtx, cancel := context.WithTimeout(ctx, m.heartbeat)
		evt, ok := sub.Next(waitCtx)
		cancel()
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			evt = broker.Event{
				Name:      broker.EventHeartbeat,
				SessionID: sessionID.String(),
				Timestamp: time.Now().UTC(),
			}
		}
		if err := emit(evt); err != nil {
			return err
		}
		if evt.IsTerminal() {
			return nil
		}
	}
}

// Close cancels all in-flight tasks and waits for their terminal
// bookkeeping to finish.
func (m *Manager) Close() {
	m.rootCancel()
	m.wg.Wait()
}
