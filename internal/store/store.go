package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reflow/internal/config"
	"reflow/internal/logging"
	"reflow/internal/session"
)

const manifestName = "session.json"

// loadConcurrency bounds the number of session directories read in parallel
// during startup.
const loadConcurrency = 8

// Store reads and writes session state under a sessions directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a store rooted at the config's sessions directory.
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{root: cfg.SessionsDir(), logger: logger}, nil
}

// Root returns the sessions directory the store operates on.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) sessionDir(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// Save writes the session manifest. The write goes through a temp file and
// rename so a crash mid-write cannot leave a truncated manifest behind.
func (s *Store) Save(sess *session.Session) error {
	dir := s.sessionDir(sess.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}

	tmp, err := os.CreateTemp(dir, manifestName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close manifest temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, manifestName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Load reads one session manifest.
func (s *Store) Load(id uuid.UUID) (*session.Session, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest for %s: %w", id, err)
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse manifest for %s: %w", id, err)
	}
	return &sess, nil
}

// LoadAll reads every session directory containing a valid manifest,
// skipping broken directories. Results are ordered by creation time,
// newest first.
func (s *Store) LoadAll(ctx context.Context) ([]*session.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var (
		mu       sync.Mutex
		sessions []*session.Session
	)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(loadConcurrency)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			s.logger.Warn("skipping non-session directory",
				logging.String("dir", entry.Name()))
			continue
		}
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sess, err := s.Load(id)
			if err != nil {
				s.logger.Warn("skipping unreadable session",
					logging.String("session", id.String()),
					logging.Error(err))
				return nil
			}
			mu.Lock()
			sessions = append(sessions, sess)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Delete removes the session directory and everything in it. Removing a
// session that has no directory is not an error.
func (s *Store) Delete(id uuid.UUID) error {
	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		return fmt.Errorf("remove session directory: %w", err)
	}
	return nil
}

// PagePath returns the on-disk location for a page file.
func (s *Store) PagePath(id uuid.UUID, filename string) string {
	return filepath.Join(s.sessionDir(id), "pages", filename)
}

// WritePage stores raw page bytes. The page write is synchronous: by the
// time the registry references the page, the bytes are on disk.
func (s *Store) WritePage(id uuid.UUID, filename string, data []byte) error {
	path := s.PagePath(id, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create pages directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write page %s: %w", filename, err)
	}
	return nil
}

// ReadPage loads raw page bytes.
func (s *Store) ReadPage(id uuid.UUID, filename string) ([]byte, error) {
	data, err := os.ReadFile(s.PagePath(id, filename))
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", filename, err)
	}
	return data, nil
}

// RemovePage deletes one page file; a missing file is ignored.
func (s *Store) RemovePage(id uuid.UUID, filename string) error {
	err := os.Remove(s.PagePath(id, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove page %s: %w", filename, err)
	}
	return nil
}

// ResolveExtension derives a page file extension from the uploaded name's
// suffix when present, otherwise from the MIME type.
func ResolveExtension(originalName, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(originalName)); ext != "" {
		return ext
	}
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

// PageFilename builds the stored filename for a page.
func PageFilename(pageID uuid.UUID, originalName, mimeType string) string {
	return pageID.String() + ResolveExtension(originalName, mimeType)
}
