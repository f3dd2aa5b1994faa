// Package client is a typed HTTP client for the reflow API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"reflow/internal/history"
	"reflow/internal/session"
)

const defaultTimeout = 60 * time.Second

// Client talks to one reflow daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a client for the daemon at baseURL, e.g. "http://127.0.0.1:8235".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Health reports whether the daemon answers on its API port.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "/api/health", &out); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("daemon reported unhealthy")
	}
	return nil
}

// Sessions lists all session summaries, newest first.
func (c *Client) Sessions(ctx context.Context) ([]session.Summary, error) {
	var out []session.Summary
	if err := c.getJSON(ctx, "/api/sessions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session fetches one full session.
func (c *Client) Session(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	var out session.Session
	if err := c.getJSON(ctx, "/api/sessions/"+id.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession creates a session with the given name and description.
func (c *Client) CreateSession(ctx context.Context, name, description string) (*session.Session, error) {
	payload := map[string]string{"name": name, "description": description}
	var out session.Session
	if err := c.postJSON(ctx, "/api/sessions", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session and its stored pages.
func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/sessions/"+id.String(), nil)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Recognize starts a recognition run and returns the task id.
func (c *Client) Recognize(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out struct {
		TaskID uuid.UUID `json:"task_id"`
	}
	if err := c.postJSON(ctx, "/api/sessions/"+id.String()+"/recognize", nil, &out); err != nil {
		return uuid.Nil, err
	}
	return out.TaskID, nil
}

// ExportArchive downloads the session archive into destDir and returns the
// written path. The server's suggested filename is honored when present.
func (c *Client) ExportArchive(ctx context.Context, id uuid.UUID, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sessions/"+id.String()+"/archive", nil)
	if err != nil {
		return "", fmt.Errorf("api request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	filename := id.String() + ".reflow-session"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := filepath.Base(params["filename"]); name != "" && name != "." {
			filename = name
		}
	}
	dest := filepath.Join(destDir, filename)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return dest, nil
}

// ImportArchive uploads an archive file and returns the imported session.
func (c *Client) ImportArchive(ctx context.Context, path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions/import", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out session.Session
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// History lists finished runs, optionally filtered to one session.
func (c *Client) History(ctx context.Context, sessionID string, limit int) ([]history.Run, error) {
	query := url.Values{}
	if sessionID != "" {
		query.Set("session", sessionID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/history"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []history.Run
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, wire.Error)
	}
	return fmt.Errorf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
