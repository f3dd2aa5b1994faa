package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"reflow/internal/session"
	"reflow/internal/store"
	"reflow/internal/testsupport"
)

func newSession(name string) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		ID:        uuid.New(),
		Name:      name,
		Status:    session.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	sess := newSession("Receipts")
	sess.Description = "January receipts"
	if err := st.Save(sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := st.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "Receipts" || loaded.Description != "January receipts" {
		t.Fatalf("unexpected loaded session: %+v", loaded)
	}
}

func TestLoadAllSkipsCorruptEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	keep := newSession("Keep")
	if err := st.Save(keep); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A directory that is not a session UUID.
	if err := os.MkdirAll(filepath.Join(st.Root(), "not-a-session"), 0o755); err != nil {
		t.Fatalf("mkdir stray dir: %v", err)
	}
	// A session directory with an unreadable manifest.
	corruptID := uuid.New()
	corruptDir := filepath.Join(st.Root(), corruptID.String())
	if err := os.MkdirAll(corruptDir, 0o755); err != nil {
		t.Fatalf("mkdir corrupt dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corruptDir, "session.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write corrupt manifest: %v", err)
	}

	loaded, err := st.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != keep.ID {
		t.Fatalf("expected only the valid session, got %d entries", len(loaded))
	}
}

func TestLoadAllSortsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	older := newSession("Older")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newSession("Newer")
	for _, sess := range []*session.Session{older, newer} {
		if err := st.Save(sess); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	loaded, err := st.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Name != "Newer" {
		t.Fatalf("expected newest first, got %+v", loaded)
	}
}

func TestPageReadWriteRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	id := uuid.New()
	payload := []byte("fake image bytes")
	if err := st.WritePage(id, "page.png", payload); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}
	data, err := st.ReadPage(id, "page.png")
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatal("page bytes corrupted on round trip")
	}
	if err := st.RemovePage(id, "page.png"); err != nil {
		t.Fatalf("RemovePage failed: %v", err)
	}
	if _, err := st.ReadPage(id, "page.png"); err == nil {
		t.Fatal("expected error reading removed page")
	}
}

func TestResolveExtension(t *testing.T) {
	cases := []struct {
		name string
		mime string
		want string
	}{
		{"scan.PNG", "", ".png"},
		{"photo.jpeg", "image/png", ".jpeg"},
		{"upload", "image/png", ".png"},
		{"upload", "image/jpeg", ".jpg"},
		{"upload", "application/octet-stream", ".bin"},
	}
	for _, tc := range cases {
		if got := store.ResolveExtension(tc.name, tc.mime); got != tc.want {
			t.Errorf("ResolveExtension(%q, %q) = %q, want %q", tc.name, tc.mime, got, tc.want)
		}
	}
}

func TestPageFilenameUsesPageID(t *testing.T) {
	pageID := uuid.New()
	got := store.PageFilename(pageID, "scan one.png", "image/png")
	if got != pageID.String()+".png" {
		t.Fatalf("unexpected page filename %q", got)
	}
}
