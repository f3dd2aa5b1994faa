// Package archive round-trips a session and its page images through a
// single portable container: a deflate-compressed zip holding one
// session.json manifest and one pages/<filename> entry per page. The file
// extension used by callers is .reflow-session.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"reflow/internal/logging"
	"reflow/internal/registry"
	"reflow/internal/session"
	"reflow/internal/store"
)

const manifestEntry = "session.json"

// ErrInvalidArchive reports a container without a session.json manifest or
// with one that cannot be parsed.
var ErrInvalidArchive = errors.New("invalid session archive")

// Codec exports and imports session archives on top of the registry and the
// durable store.
type Codec struct {
	registry *registry.Registry
	store    *store.Store
	logger   *slog.Logger
}

// NewCodec builds an archive codec.
func NewCodec(reg *registry.Registry, st *store.Store, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Codec{registry: reg, store: st, logger: logger}
}

// Export writes the session and its page bytes to a temporary archive file
// and returns its path. Pages whose bytes are missing from storage are
// skipped rather than failing the export. The caller owns cleanup of the
// returned file once it has been delivered.
func (c *Codec) Export(id uuid.UUID) (string, error) {
	sess, err := c.registry.Get(id)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "reflow-*.reflow-session")
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	path := tmp.Name()

	if err := c.write(tmp, sess); err != nil {
		tmp.Close()
		os.Remove(path)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close archive file: %w", err)
	}
	return path, nil
}

func (c *Codec) write(w io.Writer, sess *session.Session) error {
	zw := zip.NewWriter(w)

	manifest, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	entry, err := zw.Create(manifestEntry)
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := entry.Write(manifest); err != nil {
		return fmt.Errorf("write manifest entry: %w", err)
	}

	for _, page := range sess.Pages {
		data, err := c.store.ReadPage(sess.ID, page.Filename)
		if err != nil {
			c.logger.Warn("skipping page missing from storage",
				logging.String("session", sess.ID.String()),
				logging.String("page", page.Filename))
			continue
		}
		entry, err := zw.Create("pages/" + page.Filename)
		if err != nil {
			return fmt.Errorf("create page entry: %w", err)
		}
		if _, err := entry.Write(data); err != nil {
			return fmt.Errorf("write page entry: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// Import reads an archive produced by Export (or a compatible tool) and
// registers its contents as a brand-new draft session. Session and page
// identifiers are never reused from the source, so importing can never
// collide with an existing session. A page listed in the manifest but
// missing from the payload is imported with empty bytes.
func (c *Codec) Import(data []byte) (*session.Session, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	var source *session.Session
	payloads := make(map[string][]byte)
	for _, file := range zr.File {
		switch {
		case file.Name == manifestEntry:
			raw, err := readEntry(file)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
			}
			var sess session.Session
			if err := json.Unmarshal(raw, &sess); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
			}
			source = &sess
		case strings.HasPrefix(file.Name, "pages/"):
			raw, err := readEntry(file)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", file.Name, err)
			}
			payloads[strings.TrimPrefix(file.Name, "pages/")] = raw
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidArchive, manifestEntry)
	}

	now := time.Now().UTC()
	newID := uuid.New()
	pages := make([]session.Page, 0, len(source.Pages))
	for idx, page := range source.Pages {
		pageID := uuid.New()
		filename := store.PageFilename(pageID, page.Filename, page.Metadata.MIMEType)
		if err := c.store.WritePage(newID, filename, payloads[page.Filename]); err != nil {
			return nil, err
		}
		pages = append(pages, session.Page{
			ID:           pageID,
			Index:        idx,
			Filename:     filename,
			OriginalName: page.OriginalName,
			Source:       page.Source,
			Metadata:     page.Metadata,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	imported := &session.Session{
		ID:          newID,
		Name:        source.Name + " (imported)",
		Description: source.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		PageCount:   len(pages),
		Status:      session.StatusDraft,
		Pages:       pages,
	}
	return c.registry.Import(imported), nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
