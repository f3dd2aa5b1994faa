package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reflow/internal/api"
	"reflow/internal/archive"
	"reflow/internal/broker"
	"reflow/internal/config"
	"reflow/internal/export"
	"reflow/internal/history"
	"reflow/internal/logging"
	"reflow/internal/pipeline"
	"reflow/internal/registry"
	"reflow/internal/session"
	"reflow/internal/store"
	"reflow/internal/tasks"
	"reflow/internal/testsupport"
)

type testServer struct {
	handler  http.Handler
	registry *registry.Registry
	store    *store.Store
	tasks    *tasks.Manager
	cfg      *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	reg := testsupport.MustOpenRegistry(t, cfg, st)

	hist, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	manager := tasks.NewManager(broker.New(), logging.NewNop(), hist, 200*time.Millisecond)
	t.Cleanup(manager.Close)

	server := api.NewServer(cfg, logging.NewNop(), api.Deps{
		Registry: reg,
		Codec:    archive.NewCodec(reg, st, nil),
		Tasks:    manager,
		Pipeline: pipeline.New(reg, st, nil),
		Exports:  export.NewRegistry(),
		History:  hist,
	})

	return &testServer{handler: server.Handler(), registry: reg, store: st, tasks: manager, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createSession(t *testing.T, name string) session.Session {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"name": name})
	rec := ts.do(t, http.MethodPost, "/api/sessions", payload, "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func (ts *testServer) uploadPage(t *testing.T, id uuid.UUID, filename string) session.Session {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(testsupport.PNG(t, 80, 60)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	rec := ts.do(t, http.MethodPost, "/api/sessions/"+id.String()+"/pages", buf.Bytes(), mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload page: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var wire struct {
		Session session.Session `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &wire); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return wire.Session
}

func (ts *testServer) waitForReady(t *testing.T, id uuid.UUID) *session.Session {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := ts.registry.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		switch sess.Status {
		case session.StatusReady:
			return sess
		case session.StatusError:
			t.Fatalf("recognition failed: %s", sess.LastError)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("recognition did not finish in time")
	return nil
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if ok, exists := body["ok"].(bool); !exists || !ok {
		t.Fatalf("expected ok=true, body=%v", body)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "HTTP Session")
	updated := ts.uploadPage(t, created.ID, "scan.png")
	if updated.PageCount != 1 {
		t.Fatalf("expected one page after upload, got %d", updated.PageCount)
	}

	rec := ts.do(t, http.MethodGet, "/api/sessions/"+created.ID.String(), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: expected 200, got %d", rec.Code)
	}

	patch, _ := json.Marshal(map[string]string{"name": "Renamed"})
	rec = ts.do(t, http.MethodPatch, "/api/sessions/"+created.ID.String(), patch, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("patch session: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var patched session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatalf("decode patched session: %v", err)
	}
	if patched.Name != "Renamed" {
		t.Fatalf("patch did not rename session: %q", patched.Name)
	}

	rec = ts.do(t, http.MethodDelete, "/api/sessions/"+created.ID.String(), nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete session: expected 204, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/sessions/"+created.ID.String(), nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSessionIDValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/sessions/not-a-uuid", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions/import", []byte("not a zip"), "application/zip")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid archive, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestArchiveRoundTripOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "Exported")
	ts.uploadPage(t, created.ID, "scan.png")

	rec := ts.do(t, http.MethodGet, "/api/sessions/"+created.ID.String()+"/archive", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export archive: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if disposition := rec.Header().Get("Content-Disposition"); !strings.Contains(disposition, ".reflow-session") {
		t.Fatalf("unexpected content disposition %q", disposition)
	}

	rec = ts.do(t, http.MethodPost, "/api/sessions/import", rec.Body.Bytes(), "application/zip")
	if rec.Code != http.StatusCreated {
		t.Fatalf("import archive: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var imported session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &imported); err != nil {
		t.Fatalf("decode imported session: %v", err)
	}
	if imported.ID == created.ID || imported.PageCount != 1 {
		t.Fatalf("unexpected imported session: %+v", imported)
	}
}

func TestRecognizeRejectsEmptySession(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "Empty")
	rec := ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/recognize", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty session, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecognizeRunsToCompletion(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "Recognize Me")
	ts.uploadPage(t, created.ID, "scan.png")

	rec := ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/recognize", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("recognize: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := ts.registry.Get(created.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if sess.Status == session.StatusReady {
			rec = ts.do(t, http.MethodGet, "/api/sessions/"+created.ID.String()+"/document", nil, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("get document: expected 200, got %d", rec.Code)
			}

			payload, _ := json.Marshal(map[string]string{"format": "markdown"})
			rec = ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/export", payload, "application/json")
			if rec.Code != http.StatusOK {
				t.Fatalf("export document: expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			return
		}
		if sess.Status == session.StatusError {
			t.Fatalf("recognition failed: %s", sess.LastError)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("recognition did not finish in time")
}

func TestBusyRecognizeLeavesRecognizedDocumentIntact(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "Already Recognized")
	ts.uploadPage(t, created.ID, "scan.png")

	rec := ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/recognize", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("recognize: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	ts.waitForReady(t, created.ID)
	for {
		if _, running := ts.tasks.ActiveTask(created.ID); !running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Occupy the session with a held task, as if a finished run were still
	// mid-bookkeeping when the next request landed.
	release := make(chan struct{})
	defer close(release)
	if _, err := ts.tasks.StartTask(created.ID, "hold", func(ctx context.Context) (tasks.Result, error) {
		select {
		case <-release:
			return tasks.Result{}, nil
		case <-ctx.Done():
			return tasks.Result{}, ctx.Err()
		}
	}); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}

	rec = ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/recognize", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d: %s", rec.Code, rec.Body.String())
	}

	sess, err := ts.registry.Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Status != session.StatusReady {
		t.Fatalf("rejected recognize changed status to %s", sess.Status)
	}
	if sess.Document == nil {
		t.Fatal("rejected recognize destroyed the recognized document")
	}
}

func TestEventStreamDeliversFullRecognitionSequence(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "Streamed")
	ts.uploadPage(t, created.ID, "scan.png")

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/" + created.ID.String() + "/events")
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() broker.Event {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read event stream: %v", err)
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var evt broker.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
				t.Fatalf("decode event %q: %v", line, err)
			}
			if evt.Name == broker.EventHeartbeat {
				continue
			}
			return evt
		}
	}

	// The connected event proves the subscription is live before the run
	// starts, so no frame can be missed.
	if evt := next(); evt.Name != broker.EventConnected {
		t.Fatalf("expected connected first, got %q", evt.Name)
	}

	rec := ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/recognize", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("recognize: expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	want := []string{
		broker.EventTaskStarted,
		broker.EventRecognitionStart,
		broker.EventPageStart,
		broker.EventPageComplete,
		broker.EventRecognitionFinished,
		broker.EventTaskCompleted,
	}
	events := make([]broker.Event, 0, len(want))
	for len(events) < len(want) {
		events = append(events, next())
	}
	for i, name := range want {
		if events[i].Name != name {
			t.Fatalf("event %d: expected %q, got %q", i, name, events[i].Name)
		}
	}
	if events[1].TotalPages != 1 {
		t.Fatalf("recognition-start totalPages = %d, want 1", events[1].TotalPages)
	}
	if events[2].PageIndex == nil || *events[2].PageIndex != 0 {
		t.Fatalf("page-start pageIndex = %v, want 0", events[2].PageIndex)
	}
	if events[4].Pages != 1 {
		t.Fatalf("recognition-finished pages = %d, want 1", events[4].Pages)
	}

	// The terminal event ends the stream.
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), "data: ") {
			t.Fatalf("unexpected frame after terminal event: %q", line)
		}
	}
}

func TestExportDocumentRequiresRecognition(t *testing.T) {
	ts := newTestServer(t)

	created := ts.createSession(t, "No Document")
	ts.uploadPage(t, created.ID, "scan.png")

	payload, _ := json.Marshal(map[string]string{"format": "markdown"})
	rec := ts.do(t, http.MethodPost, "/api/sessions/"+created.ID.String()+"/export", payload, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a document, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+created.ID.String()+"/document", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing document, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/history", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/history?limit=bogus", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}
