package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Gaziyo/tuutta-genie/internal/assessment"
	"github.com/Gaziyo/tuutta-genie/internal/extract"
	appI18n "github.com/Gaziyo/tuutta-genie/internal/i18n"
	"github.com/Gaziyo/tuutta-genie/internal/llm"
	"github.com/Gaziyo/tuutta-genie/internal/model"
	"github.com/Gaziyo/tuutta-genie/internal/search"
	"github.com/Gaziyo/tuutta-genie/internal/store"
)

type stubSearchTier struct {
	results []model.SearchResult
	err     error
}

func (s *stubSearchTier) Search(_ context.Context, _ string) ([]model.SearchResult, error) {
	return s.results, s.err
}

// fakeUploader stores objects in memory and records removals. It doubles as
// the extractor's Fetcher, the way the real object store does.
type fakeUploader struct {
	objects map[string][]byte
	removed []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: map[string][]byte{}}
}

func (f *fakeUploader) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	ref := "mem://" + key
	f.objects[ref] = data
	return ref, nil
}

func (f *fakeUploader) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := f.objects[ref]
	if !ok {
		return nil, fmt.Errorf("no object %q", ref)
	}
	return data, nil
}

func (f *fakeUploader) Remove(_ context.Context, ref string) error {
	f.removed = append(f.removed, ref)
	delete(f.objects, ref)
	return nil
}

// newTestServer wires the full handler against an httptest AI backend whose
// completion endpoint always returns reply.
func newTestServer(t *testing.T, reply string, tier search.Tier) *httptest.Server {
	t.Helper()
	return newTestServerWithUploads(t, reply, tier, nil)
}

func newTestServerWithUploads(t *testing.T, reply string, tier search.Tier, uploads *fakeUploader) *httptest.Server {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ai/chat-completion":
			out, _ := json.Marshal(map[string]string{"content": reply})
			w.Write(out)
		case "/api/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var fetcher extract.Fetcher
	var uploader Uploader
	if uploads != nil {
		fetcher = uploads
		uploader = uploads
	}

	llmClient := llm.New(backend.URL, "", "", "", "gpt-4o-mini", "nova")
	extractor := extract.New(nil, fetcher)
	searchClient := search.New(tier, nil, nil)
	h := New(db, llmClient, extractor, searchClient,
		assessment.NewGenerator(llmClient, nil), assessment.NewEvaluator(llmClient), uploader)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func uploadFile(t *testing.T, url, name, contentType, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	resp, err := http.Post(url+"/api/sources", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, "", nil)
	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUploadAndFetchSource(t *testing.T) {
	srv := newTestServer(t, "", nil)

	resp := uploadFile(t, srv.URL, "notes.txt", "text/plain", "the water cycle has three stages")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	created := decodeBody[model.FileUpload](t, resp)
	if created.ExtractedText != "the water cycle has three stages" {
		t.Errorf("ExtractedText = %q", created.ExtractedText)
	}
	if created.ID == "" {
		t.Fatal("uploaded source has no ID")
	}

	get, err := http.Get(srv.URL + "/api/sources/" + created.ID)
	if err != nil {
		t.Fatalf("GET source: %v", err)
	}
	fetched := decodeBody[model.FileUpload](t, get)
	if fetched.Name != "notes.txt" {
		t.Errorf("Name = %q", fetched.Name)
	}

	missing, err := http.Get(srv.URL + "/api/sources/nope")
	if err != nil {
		t.Fatalf("GET missing source: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing source status = %d", missing.StatusCode)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	srv := newTestServer(t, "", nil)

	resp := uploadFile(t, srv.URL, "firmware.bin", "application/octet-stream", "\x00\x01\x02\xff")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if !strings.Contains(body["error"], "firmware.bin") {
		t.Errorf("error = %q, want file name included", body["error"])
	}
}

func TestUploadRemovesStoredObjectOnUnsupportedType(t *testing.T) {
	uploads := newFakeUploader()
	srv := newTestServerWithUploads(t, "", nil, uploads)

	resp := uploadFile(t, srv.URL, "firmware.bin", "application/octet-stream", "\x00\x01\x02\xff")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", resp.StatusCode)
	}
	if len(uploads.removed) != 1 {
		t.Fatalf("removed %d objects, want the stored object cleaned up", len(uploads.removed))
	}
	if len(uploads.objects) != 0 {
		t.Errorf("%d objects left in storage, want 0", len(uploads.objects))
	}
}

func TestUploadKeepsStoredObjectOnSuccess(t *testing.T) {
	uploads := newFakeUploader()
	srv := newTestServerWithUploads(t, "", nil, uploads)

	resp := uploadFile(t, srv.URL, "notes.txt", "text/plain", "photosynthesis basics")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if len(uploads.removed) != 0 {
		t.Errorf("removed = %v, want no removals on success", uploads.removed)
	}
	if len(uploads.objects) != 1 {
		t.Errorf("%d objects in storage, want 1", len(uploads.objects))
	}
}

func TestGenerateAndEvaluate(t *testing.T) {
	reply := `{"title": "Water Cycle Quiz", "questions": [
		{"id": "q1", "type": "multiple", "question": "First stage?", "options": ["Evaporation", "Rain", "Snow", "Wind"], "correctAnswer": "Evaporation"}
	]}`
	srv := newTestServer(t, reply, nil)

	resp := postJSON(t, srv.URL+"/api/assessments", map[string]any{
		"content": "evaporation, condensation, precipitation",
		"type":    "general",
		"count":   1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	a := decodeBody[model.Assessment](t, resp)
	if a.Title != "Water Cycle Quiz" || len(a.Questions) != 1 {
		t.Fatalf("assessment = %+v", a)
	}

	eval := postJSON(t, srv.URL+"/api/assessments/"+a.ID+"/evaluate", map[string]string{
		"questionId": "q1",
		"answer":     "evaporation",
	})
	if eval.StatusCode != http.StatusOK {
		t.Fatalf("evaluate status = %d", eval.StatusCode)
	}
	result := decodeBody[model.EvaluationResult](t, eval)
	if !result.IsCorrect || result.Score != 100 {
		t.Errorf("result = %+v", result)
	}

	missingQ := postJSON(t, srv.URL+"/api/assessments/"+a.ID+"/evaluate", map[string]string{
		"questionId": "q999",
		"answer":     "x",
	})
	defer missingQ.Body.Close()
	if missingQ.StatusCode != http.StatusNotFound {
		t.Errorf("unknown question status = %d", missingQ.StatusCode)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t, `{"questions": []}`, nil)

	resp := postJSON(t, srv.URL+"/api/assessments", map[string]any{"content": "x", "type": "astrology"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown type status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/assessments", map[string]any{"content": "", "type": "general"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty content status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/assessments", map[string]any{"content": "notes", "type": "general"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("no valid questions status = %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("results", func(t *testing.T) {
		tier := &stubSearchTier{results: []model.SearchResult{
			{Title: "Bees", Link: "https://example.com", Snippet: "Bees pollinate.", Source: "example.com"},
		}}
		srv := newTestServer(t, "", tier)

		resp := postJSON(t, srv.URL+"/api/search", map[string]string{"query": "bees"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		body := decodeBody[struct {
			Results []model.SearchResult `json:"results"`
		}](t, resp)
		if len(body.Results) != 1 || body.Results[0].Title != "Bees" {
			t.Errorf("results = %+v", body.Results)
		}
	})

	t.Run("exhausted tiers", func(t *testing.T) {
		srv := newTestServer(t, "", nil)
		resp := postJSON(t, srv.URL+"/api/search", map[string]string{"query": "bees"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})
}

func TestTutor(t *testing.T) {
	srv := newTestServer(t, "Photosynthesis converts light into chemical energy.", nil)

	resp := postJSON(t, srv.URL+"/api/tutor", map[string]any{
		"requestId": "tut-1",
		"message":   "Explain photosynthesis",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		RequestID string `json:"requestId"`
		Reply     string `json:"reply"`
	}](t, resp)
	if body.RequestID != "tut-1" {
		t.Errorf("RequestID = %q, want caller-chosen id echoed", body.RequestID)
	}
	if !strings.Contains(body.Reply, "Photosynthesis") {
		t.Errorf("Reply = %q", body.Reply)
	}
}

func TestCancelUnknownTutorRequest(t *testing.T) {
	srv := newTestServer(t, "", nil)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/tutor/no-such-id", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
