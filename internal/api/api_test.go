package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/status"
	"github.com/bobarin/montage/internal/storage"
)

func testHandler(t *testing.T) (*Handler, status.Store) {
	t.Helper()
	store := status.NewMemoryStore()
	return NewHandler(store, nil, nil, storage.NewFetcher(), t.TempDir()), store
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	guarded := APIKeyAuth("secret")(okHandler())

	cases := []struct {
		name   string
		header func(r *http.Request)
		status int
	}{
		{"missing key", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong key", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, http.StatusForbidden},
		{"right key", func(r *http.Request) { r.Header.Set("X-API-Key", "secret") }, http.StatusOK},
		{"bearer fallback", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret") }, http.StatusOK},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusForbidden},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/jobs/x", nil)
			c.header(req)
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			if rec.Code != c.status {
				t.Errorf("status = %d, want %d", rec.Code, c.status)
			}
		})
	}
}

func TestGetJobStatusLifecycle(t *testing.T) {
	h, store := testHandler(t)

	r := chi.NewRouter()
	r.Get("/api/jobs/{id}", h.GetJob)

	// Unknown job
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d, want 404", rec.Code)
	}

	// Known, still processing: no video URL yet
	job := models.Job{ID: uuid.New(), Status: models.JobStatusProcessing, Progress: 40, Message: "Creating video segments..."}
	store.Put(job)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/"+job.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.JobStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Progress != 40 || resp.VideoURL != nil {
		t.Errorf("processing job response = %+v", resp)
	}

	// Completed: video URL appears
	store.Complete(job.ID, "/work/out.mp4", "Video generated successfully!")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/"+job.ID.String(), nil))

	resp = models.JobStatusResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.VideoURL == nil || *resp.VideoURL != "/api/jobs/"+job.ID.String()+"/video" {
		t.Errorf("completed job must carry a video URL, got %+v", resp.VideoURL)
	}
}

func TestDownloadVideoNotReady(t *testing.T) {
	h, store := testHandler(t)

	r := chi.NewRouter()
	r.Get("/api/jobs/{id}/video", h.DownloadVideo)

	job := models.Job{ID: uuid.New(), Status: models.JobStatusProcessing}
	store.Put(job)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/"+job.ID.String()+"/video", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("in-progress download status = %d, want 404", rec.Code)
	}
}

func TestListOrientationsReturnsBuiltins(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.ListOrientations(rec, httptest.NewRequest("GET", "/api/orientations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp models.OrientationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Orientations) != 2 {
		t.Fatalf("got %d orientations, want the 2 builtins", len(resp.Orientations))
	}
	if resp.Orientations[0].Name != "portrait" || resp.Orientations[1].Name != "landscape" {
		t.Errorf("unexpected builtin order: %+v", resp.Orientations)
	}
}

func TestCreateOrientationValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `not json`, http.StatusBadRequest},
		{"missing name", `{"width":1080,"height":1080,"font_size":48,"text_y":200,"wrap_width":30}`, http.StatusBadRequest},
		{"zero width", `{"name":"square","width":0,"height":1080,"font_size":48,"text_y":200,"wrap_width":30}`, http.StatusBadRequest},
		{"builtin name", `{"name":"Portrait","width":1080,"height":1920,"font_size":48,"text_y":400,"wrap_width":30}`, http.StatusConflict},
		{"valid but no database", `{"name":"square","width":1080,"height":1080,"font_size":48,"text_y":200,"wrap_width":30}`, http.StatusServiceUnavailable},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h, _ := testHandler(t)
			req := httptest.NewRequest("POST", "/api/orientations", strings.NewReader(c.body))
			req.Header.Set("Content-Type", "application/json")

			rec := httptest.NewRecorder()
			h.CreateOrientation(rec, req)
			if rec.Code != c.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, c.want, rec.Body)
			}
		})
	}
}

func TestHealthWithoutQueue(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
	if _, present := resp["queue_depth"]; present {
		t.Error("queue depth reported with no queue connected")
	}
}

func multipartBody(t *testing.T, fields map[string]string, mediaNames []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	for _, name := range mediaNames {
		fw, err := mw.CreateFormFile("media", name)
		if err != nil {
			t.Fatalf("creating media part: %v", err)
		}
		fw.Write([]byte("data"))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestCreateJobValidation(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		media  []string
		want   int
	}{
		{"no lines", map[string]string{"lines": "  \n "}, []string{"1.jpg"}, http.StatusBadRequest},
		{"bad orientation", map[string]string{"lines": "hi", "orientation": "diagonal"}, []string{"1.jpg"}, http.StatusBadRequest},
		{"bad provider", map[string]string{"lines": "hi", "provider": "shouting"}, []string{"1.jpg"}, http.StatusBadRequest},
		{"no media", map[string]string{"lines": "hi"}, nil, http.StatusBadRequest},
		{"bad media type", map[string]string{"lines": "hi"}, []string{"1.txt"}, http.StatusBadRequest},
		{"fewer media than lines", map[string]string{"lines": "one\ntwo\nthree"}, []string{"1.jpg"}, http.StatusBadRequest},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h, _ := testHandler(t)
			body, contentType := multipartBody(t, c.fields, c.media)
			req := httptest.NewRequest("POST", "/api/jobs", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			h.CreateJob(rec, req)
			if rec.Code != c.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, c.want, rec.Body)
			}
		})
	}
}
