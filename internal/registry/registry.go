package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reflow/internal/config"
	"reflow/internal/document"
	"reflow/internal/imagemeta"
	"reflow/internal/logging"
	"reflow/internal/session"
	"reflow/internal/store"
)

const interruptedMessage = "recognition interrupted by shutdown"

// CreateSpec carries the caller-supplied fields for a new session.
type CreateSpec struct {
	Name        string
	Description string
}

// UpdatePatch applies only the fields present (non-nil) to a session.
type UpdatePatch struct {
	Name        *string
	Description *string
}

// Registry is the concurrency-safe map of live sessions with dirty-tracking
// autosave against the durable store.
type Registry struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	dirty    map[uuid.UUID]struct{}

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New loads all persisted sessions, reconciles sessions left in processing
// by an unclean stop, and starts the autosave loop.
func New(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	loaded, err := st.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	interval := time.Duration(cfg.Store.AutosaveInterval) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}

	r := &Registry{
		store:    st,
		logger:   logger,
		interval: interval,
		sessions: make(map[uuid.UUID]*session.Session, len(loaded)),
		dirty:    make(map[uuid.UUID]struct{}),
		stop:     make(chan struct{}),
	}

	now := time.Now().UTC()
	for _, sess := range loaded {
		if sess.Status == session.StatusProcessing {
			sess = sess.Clone()
			sess.Status = session.StatusError
			sess.LastError = interruptedMessage
			sess.UpdatedAt = now
			r.dirty[sess.ID] = struct{}{}
			logger.Warn("reset interrupted session",
				logging.String("session", sess.ID.String()))
		}
		r.sessions[sess.ID] = sess
	}

	r.wg.Add(1)
	go r.autosaveLoop()

	logger.Info("session registry ready",
		logging.Int("sessions", len(r.sessions)),
		logging.Duration("autosave_interval", interval))
	return r, nil
}

func (r *Registry) autosaveLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Flush()
		}
	}
}

// Flush persists every dirty session's current snapshot. A session that
// mutates while its snapshot is being written stays dirty and is picked up
// by the next flush.
func (r *Registry) Flush() {
	r.mu.Lock()
	pending := make([]*session.Session, 0, len(r.dirty))
	for id := range r.dirty {
		if sess, ok := r.sessions[id]; ok {
			pending = append(pending, sess)
		} else {
			delete(r.dirty, id)
		}
	}
	r.mu.Unlock()

	for _, snap := range pending {
		r.mu.Lock()
		_, live := r.sessions[snap.ID]
		r.mu.Unlock()
		if !live {
			continue
		}
		if err := r.store.Save(snap); err != nil {
			r.logger.Error("autosave failed",
				logging.String("session", snap.ID.String()),
				logging.Error(err))
			continue
		}
		r.mu.Lock()
		// Only clear the flag when no newer snapshot replaced this one.
		current, ok := r.sessions[snap.ID]
		if ok && current == snap {
			delete(r.dirty, snap.ID)
		}
		r.mu.Unlock()
		if !ok {
			// Deleted while the snapshot was being written. The save
			// recreated the session directory; remove it again.
			_ = r.store.Delete(snap.ID)
		}
	}
}

// Close stops the autosave loop and performs one final synchronous flush.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
		r.Flush()
		r.logger.Info("session registry closed")
	})
}

// List returns summaries of all sessions, newest first.
func (r *Registry) List() []session.Summary {
	r.mu.Lock()
	out := make([]session.Summary, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.Summary())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns a snapshot of one session.
func (r *Registry) Get(id uuid.UUID) (*session.Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Create registers a new draft session.
func (r *Registry) Create(spec CreateSpec) *session.Session {
	now := time.Now().UTC()
	name := spec.Name
	if name == "" {
		name = "Session " + now.Format("2006-01-02 15:04:05")
	}
	sess := &session.Session{
		ID:          uuid.New(),
		Name:        name,
		Description: spec.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      session.StatusDraft,
		Pages:       []session.Page{},
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.dirty[sess.ID] = struct{}{}
	r.mu.Unlock()
	return sess.Clone()
}

// Update applies the patch fields that are present and returns the new
// snapshot.
func (r *Registry) Update(id uuid.UUID, patch UpdatePatch) (*session.Session, error) {
	return r.mutate(id, func(sess *session.Session) {
		if patch.Name != nil && *patch.Name != "" {
			sess.Name = *patch.Name
		}
		if patch.Description != nil {
			sess.Description = *patch.Description
		}
	})
}

// Delete removes the session from the registry and from durable storage.
// Deleting an unknown session is not an error: delete is a destructive
// convenience operation, and only read paths signal NotFound.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	delete(r.sessions, id)
	delete(r.dirty, id)
	r.mu.Unlock()

	if err := r.store.Delete(id); err != nil {
		return fmt.Errorf("delete session storage: %w", err)
	}
	return nil
}

// AddPage writes the page bytes to durable storage, then appends the page
// record to the session. The disk write happens before the registry ever
// references the page, so an acknowledged upload can never lose its bytes.
func (r *Registry) AddPage(id uuid.UUID, data []byte, originalName string, source session.SourceKind, declaredMIME string) (*session.Session, session.Page, error) {
	r.mu.Lock()
	_, exists := r.sessions[id]
	r.mu.Unlock()
	if !exists {
		return nil, session.Page{}, ErrSessionNotFound
	}

	now := time.Now().UTC()
	pageID := uuid.New()
	filename := store.PageFilename(pageID, originalName, declaredMIME)
	if err := r.store.WritePage(id, filename, data); err != nil {
		return nil, session.Page{}, err
	}

	if originalName == "" {
		originalName = filename
	}
	page := session.Page{
		ID:           pageID,
		Filename:     filename,
		OriginalName: originalName,
		Source:       source,
		Metadata:     imagemeta.Probe(data, declaredMIME),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	snap, err := r.mutate(id, func(sess *session.Session) {
		page.Index = len(sess.Pages)
		sess.Pages = append(sess.Pages, page)
	})
	if err != nil {
		// Session vanished between the byte write and the map update;
		// drop the orphaned file.
		_ = r.store.RemovePage(id, filename)
		return nil, session.Page{}, err
	}
	return snap, page, nil
}

// RemovePage drops one page and renumbers the rest. Removing a page id the
// session does not own leaves the session unchanged.
func (r *Registry) RemovePage(id, pageID uuid.UUID) (*session.Session, error) {
	return r.mutate(id, func(sess *session.Session) {
		remaining := sess.Pages[:0:0]
		for _, page := range sess.Pages {
			if page.ID != pageID {
				remaining = append(remaining, page)
			}
		}
		if len(remaining) == len(sess.Pages) {
			return
		}
		sess.Pages = remaining
		reindex(sess, time.Now().UTC())
	})
}

// ReorderPages rebuilds the page sequence from the requested order.
// Identifiers that do not belong to the session are silently dropped, a
// deliberate tolerance for stale client state.
func (r *Registry) ReorderPages(id uuid.UUID, order []uuid.UUID) (*session.Session, error) {
	return r.mutate(id, func(sess *session.Session) {
		byID := make(map[uuid.UUID]session.Page, len(sess.Pages))
		for _, page := range sess.Pages {
			byID[page.ID] = page
		}
		reordered := make([]session.Page, 0, len(order))
		for _, pageID := range order {
			if page, ok := byID[pageID]; ok {
				reordered = append(reordered, page)
			}
		}
		sess.Pages = reordered
		reindex(sess, time.Now().UTC())
	})
}

// MarkProcessing transitions the session into a recognition run.
func (r *Registry) MarkProcessing(id uuid.UUID) (*session.Session, error) {
	return r.mutate(id, func(sess *session.Session) {
		sess.Status = session.StatusProcessing
		// A new run invalidates any previously recognized document.
		sess.Document = nil
		sess.LastError = ""
	})
}

// MarkError records a failed recognition run.
func (r *Registry) MarkError(id uuid.UUID, message string) (*session.Session, error) {
	return r.mutate(id, func(sess *session.Session) {
		sess.Status = session.StatusError
		sess.LastError = message
	})
}

// SaveDocument attaches the recognition output and marks the session ready.
func (r *Registry) SaveDocument(id uuid.UUID, doc *document.Document) (*session.Session, error) {
	return r.mutate(id, func(sess *session.Session) {
		now := time.Now().UTC()
		sess.Document = doc
		sess.Status = session.StatusReady
		sess.LastRecognizedAt = &now
		sess.LastError = ""
	})
}

// Import inserts a fully built session (from an archive) into the registry.
func (r *Registry) Import(sess *session.Session) *session.Session {
	snap := sess.Clone()
	r.mu.Lock()
	r.sessions[snap.ID] = snap
	r.dirty[snap.ID] = struct{}{}
	r.mu.Unlock()
	return snap.Clone()
}

// PagePath resolves the durable storage location of one page's bytes.
func (r *Registry) PagePath(id, pageID uuid.UUID) (string, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return "", ErrSessionNotFound
	}
	page, ok := sess.PageByID(pageID)
	if !ok {
		return "", ErrPageNotFound
	}
	return r.store.PagePath(id, page.Filename), nil
}

// mutate clones the current snapshot, applies fn, derives the counters every
// mutation must maintain, and installs the result. Only map bookkeeping
// happens under the lock.
func (r *Registry) mutate(id uuid.UUID, fn func(*session.Session)) (*session.Session, error) {
	r.mu.Lock()
	current, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	next := current.Clone()
	pagesBefore := fingerprintPages(next)
	fn(next)
	next.PageCount = len(next.Pages)
	next.UpdatedAt = time.Now().UTC()
	if next.Document != nil && pagesBefore != fingerprintPages(next) {
		// A structural page change invalidates prior recognition.
		next.Document = nil
		if next.Status == session.StatusReady {
			next.Status = session.StatusDraft
		}
	}
	r.sessions[id] = next
	r.dirty[id] = struct{}{}
	r.mu.Unlock()
	return next.Clone(), nil
}

func reindex(sess *session.Session, now time.Time) {
	for i := range sess.Pages {
		sess.Pages[i].Index = i
		sess.Pages[i].UpdatedAt = now
	}
}

func fingerprintPages(sess *session.Session) string {
	out := make([]byte, 0, len(sess.Pages)*37)
	for _, page := range sess.Pages {
		out = append(out, page.ID.String()...)
		out = append(out, ',')
	}
	return string(out)
}
