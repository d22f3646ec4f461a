package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pagequiz/internal/config"
	"github.com/dgallion1/pagequiz/internal/model"
	"github.com/dgallion1/pagequiz/internal/prompt"
	"github.com/dgallion1/pagequiz/internal/session"
	"github.com/dgallion1/pagequiz/internal/testpdf"
)

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	mock   *model.MockClient
	store  *session.Store
}

func newTestEnv(t *testing.T, withDefault bool, responses ...model.MockResponse) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	defaultPath := filepath.Join(t.TempDir(), "book.pdf")
	if withDefault {
		spec := testpdf.Spec{
			Pages: 12,
			Outline: []testpdf.Entry{
				{Level: 1, Title: "Ch1", Page: 1},
				{Level: 1, Title: "Ch2", Page: 6},
			},
		}
		if err := os.WriteFile(defaultPath, testpdf.Build(spec), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Config{
		ModelProvider:  config.ProviderGemini,
		ModelName:      "gemini-2.5-flash",
		MaxUploadBytes: 1 << 20,
		DefaultPDFPath: defaultPath,
	}

	mock := model.NewMockClient(responses...)
	stats := model.NewLLMStats(time.Hour)
	store := session.NewStore(time.Hour, log)
	ctrl := session.NewController(session.Options{
		Builder:        prompt.DefaultBuilder(),
		Scale:          1.0,
		DefaultPDFPath: defaultPath,
		NewClient: func(_ context.Context, key string) (model.Client, error) {
			if key == "" {
				return nil, model.ErrMissingAPIKey
			}
			return model.WithStats(mock, stats, log), nil
		},
		Rand: rand.New(rand.NewPCG(3, 4)),
		Log:  log,
	})

	srv := httptest.NewServer(NewServer(store, ctrl, stats, log, cfg))
	t.Cleanup(func() {
		srv.Close()
		store.Stop()
	})

	jar, _ := cookiejar.New(nil)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, mock: mock, store: store}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) snapshot(t *testing.T) session.Snapshot {
	t.Helper()
	_, body := e.get(t, "/api/session")
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (%s)", err, body)
	}
	return snap
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, false)
	resp, body := e.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if body != `{"status":"ok"}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestPage_DefaultDocumentFound(t *testing.T) {
	e := newTestEnv(t, true)
	resp, body := e.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Found local file") {
		t.Error("expected found-file notice")
	}
	if !strings.Contains(body, "Please enter API Key in sidebar.") {
		t.Error("expected API key warning")
	}

	if snap := e.snapshot(t); snap.Document != nil {
		t.Errorf("expected no document opened by a page view, got %+v", snap.Document)
	}
	if resp, _ := e.get(t, "/api/document"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if snap := e.snapshot(t); snap.Document == nil || snap.Document.Pages != 12 {
		t.Errorf("expected default document loaded on demand, got %+v", snap.Document)
	}
}

func TestPage_CookielessViewsHoldNoDocument(t *testing.T) {
	e := newTestEnv(t, true)

	for range 5 {
		resp, err := http.Get(e.srv.URL + "/")
		if err != nil {
			t.Fatalf("GET /: %v", err)
		}
		resp.Body.Close()

		var id string
		for _, c := range resp.Cookies() {
			if c.Name == sessionCookie {
				id = c.Value
			}
		}
		sess := e.store.Get(id)
		if sess == nil {
			t.Fatalf("expected session %q to exist", id)
		}
		if doc := sess.View().Document; doc != nil {
			t.Errorf("expected no open document, got %+v", doc)
		}
	}
}

func TestEndSession(t *testing.T) {
	e := newTestEnv(t, true)
	e.get(t, "/api/document")
	if e.store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", e.store.Len())
	}

	req, _ := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/session", nil)
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if e.store.Len() != 0 {
		t.Errorf("expected session removed, got %d", e.store.Len())
	}

	// The expired cookie is dropped, so the next request starts fresh.
	if snap := e.snapshot(t); snap.Document != nil || snap.HasAPIKey {
		t.Errorf("expected a fresh session, got %+v", snap)
	}
}

func TestPage_NoDefaultDocument(t *testing.T) {
	e := newTestEnv(t, false)
	_, body := e.get(t, "/")
	if !strings.Contains(body, "Could not find") || !strings.Contains(body, `action="/document"`) {
		t.Error("expected missing-file warning and upload form")
	}
}

func TestQuizCycle(t *testing.T) {
	e := newTestEnv(t, true,
		model.MockResponse{Text: "**שאלה:** מהו הטיפול?"},
		model.MockResponse{Text: "**Correct** - תשובה נכונה"},
	)

	e.post(t, "/settings/key", url.Values{"api_key": {"secret-key"}})

	resp, body := e.post(t, "/generate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected page after redirect, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "<strong>שאלה:</strong>") {
		t.Errorf("expected rendered question, got:\n%s", body)
	}
	snap := e.snapshot(t)
	if snap.Phase != session.PhaseQuestionShown || snap.Page == nil {
		t.Fatalf("expected question shown, got %+v", snap)
	}

	img, _ := e.get(t, "/page.png")
	if img.StatusCode != http.StatusOK || img.Header.Get("Content-Type") != "image/png" {
		t.Errorf("expected page image, got %d %s", img.StatusCode, img.Header.Get("Content-Type"))
	}

	_, body = e.post(t, "/answer", url.Values{"answer": {"B"}})
	if !strings.Contains(body, "משוב:") || !strings.Contains(body, "Source Page") {
		t.Errorf("expected feedback and source page, got:\n%s", body)
	}
	if snap := e.snapshot(t); snap.Phase != session.PhaseFeedbackShown || snap.Answer != "B" {
		t.Errorf("expected feedback shown, got %+v", snap)
	}

	if e.mock.CallCount() != 2 {
		t.Errorf("expected 2 model calls, got %d", e.mock.CallCount())
	}

	_, stats := e.get(t, "/api/stats/llm")
	var out struct {
		Model string              `json:"model"`
		Stats model.StatsSnapshot `json:"stats"`
	}
	if err := json.Unmarshal([]byte(stats), &out); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if out.Stats.Count != 2 || out.Model != "gemini-2.5-flash" {
		t.Errorf("expected 2 recorded calls for gemini-2.5-flash, got %+v", out)
	}
}

func TestGenerate_WithoutKeyShowsNotice(t *testing.T) {
	e := newTestEnv(t, true)
	_, body := e.post(t, "/generate", nil)
	if !strings.Contains(body, `id="flash"`) || !strings.Contains(body, "Please enter API Key in sidebar.") {
		t.Errorf("expected flash notice, got:\n%s", body)
	}
	if e.mock.CallCount() != 0 {
		t.Error("expected no model call")
	}

	// The notice is shown once.
	_, body = e.get(t, "/")
	if strings.Contains(body, `id="flash"`) {
		t.Error("expected flash consumed after one view")
	}
}

func TestAnswer_EmptyNeverCallsModel(t *testing.T) {
	e := newTestEnv(t, true, model.MockResponse{Text: "Q"})
	e.post(t, "/settings/key", url.Values{"api_key": {"k"}})
	e.post(t, "/generate", nil)

	_, body := e.post(t, "/answer", url.Values{"answer": {"   "}})
	if !strings.Contains(body, "Please write an answer before checking.") {
		t.Errorf("expected empty-answer notice, got:\n%s", body)
	}
	if e.mock.CallCount() != 1 {
		t.Errorf("expected only the question call, got %d", e.mock.CallCount())
	}
	if snap := e.snapshot(t); snap.Feedback != "" || snap.Phase != session.PhaseQuestionShown {
		t.Errorf("expected state unchanged, got %+v", snap)
	}
}

func TestGenerate_ModelFailureShowsErrorPage(t *testing.T) {
	e := newTestEnv(t, true, model.MockResponse{Err: errors.New("quota exceeded")})
	e.post(t, "/settings/key", url.Values{"api_key": {"k"}})

	resp, body := e.post(t, "/generate", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "quota exceeded") {
		t.Errorf("expected error detail, got:\n%s", body)
	}
}

func TestReset_ClearsStateKeepsKey(t *testing.T) {
	e := newTestEnv(t, true, model.MockResponse{Text: "Q"}, model.MockResponse{Text: "F"})
	e.post(t, "/settings/key", url.Values{"api_key": {"k"}})
	e.post(t, "/generate", nil)
	e.post(t, "/answer", url.Values{"answer": {"A"}})

	resp, _ := e.post(t, "/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected page after redirect, got %d", resp.StatusCode)
	}

	snap := e.snapshot(t)
	if snap.Phase != session.PhaseIdle || snap.Page != nil || snap.Question != "" || snap.Feedback != "" || snap.Answer != "" {
		t.Errorf("expected cleared state, got %+v", snap)
	}
	if !snap.HasAPIKey {
		t.Error("expected credential kept")
	}
	if img, _ := e.get(t, "/page.png"); img.StatusCode != http.StatusNotFound {
		t.Errorf("expected no page image after reset, got %d", img.StatusCode)
	}
}

func upload(t *testing.T, e *testEnv, name string, data []byte) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	resp, err := e.client.Post(e.srv.URL+"/document", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestUpload(t *testing.T) {
	e := newTestEnv(t, false)

	resp, _ := upload(t, e, "../../notes.pdf", testpdf.Build(testpdf.Spec{Pages: 5}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected page after redirect, got %d", resp.StatusCode)
	}
	snap := e.snapshot(t)
	if snap.Document == nil || snap.Document.Pages != 5 || snap.Document.Name != "notes.pdf" {
		t.Errorf("expected uploaded 5-page notes.pdf, got %+v", snap.Document)
	}

	_, body := e.get(t, "/api/document")
	if !strings.Contains(body, `"chapters":[]`) {
		t.Errorf("expected empty chapter list for outline-less upload, got %s", body)
	}
}

func TestUpload_Rejects(t *testing.T) {
	e := newTestEnv(t, false)

	if resp, _ := upload(t, e, "notes.txt", []byte("hello")); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-PDF, got %d", resp.StatusCode)
	}
	if resp, _ := upload(t, e, "broken.pdf", []byte("%PDF-1.4 garbage")); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed PDF, got %d", resp.StatusCode)
	}
	if snap := e.snapshot(t); snap.Document != nil {
		t.Errorf("expected no document after rejected uploads, got %+v", snap.Document)
	}
}

func TestDocumentChapters(t *testing.T) {
	e := newTestEnv(t, true)
	_, body := e.get(t, "/api/document")

	var out struct {
		Chapters []struct {
			Title string `json:"title"`
			Start int    `json:"start"`
			End   int    `json:"end"`
		} `json:"chapters"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if len(out.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %+v", out.Chapters)
	}
	if out.Chapters[0].Start != 0 || out.Chapters[0].End != 4 || out.Chapters[1].Start != 5 || out.Chapters[1].End != 11 {
		t.Errorf("unexpected ranges %+v", out.Chapters)
	}
}

func TestDocument_NoneLoaded(t *testing.T) {
	e := newTestEnv(t, false)
	resp, _ := e.get(t, "/api/document")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestSessionsAreSeparate(t *testing.T) {
	e := newTestEnv(t, true)
	e.post(t, "/settings/key", url.Values{"api_key": {"k"}})

	other := &http.Client{}
	jar, _ := cookiejar.New(nil)
	other.Jar = jar
	resp, err := other.Get(e.srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap session.Snapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if snap.HasAPIKey {
		t.Error("expected a second browser to get its own session")
	}
	if e.store.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", e.store.Len())
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"book.pdf", "book.pdf"},
		{"../../etc/passwd.pdf", "passwd.pdf"},
		{`C:\Users\me\book.pdf`, "book.pdf"},
		{"", "upload.pdf"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
