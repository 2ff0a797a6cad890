package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/db"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/queue"
	"github.com/bobarin/montage/internal/services"
	"github.com/bobarin/montage/internal/status"
	"github.com/bobarin/montage/internal/storage"
)

// maxUploadBytes caps one submission's multipart payload in memory plus
// temp files. Video sources are large; this is deliberately generous.
const maxUploadBytes = 1 << 30

type Handler struct {
	status  status.Store
	queue   *queue.Queue
	db      *db.DB // nil when no database is configured
	fetcher *storage.Fetcher
	workDir string
}

func NewHandler(statusStore status.Store, q *queue.Queue, database *db.DB, fetcher *storage.Fetcher, workDir string) *Handler {
	return &Handler{
		status:  statusStore,
		queue:   q,
		db:      database,
		fetcher: fetcher,
		workDir: workDir,
	}
}

// CreateJob handles POST /api/jobs. The submission is one multipart
// form carrying the text lines, ordered media parts (or media_urls),
// optional background music and the job options; everything lands in a
// fresh isolated job directory before the job is queued.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	lines := nonBlankLines(r.FormValue("lines"))
	if len(lines) == 0 {
		respondError(w, http.StatusBadRequest, "At least one text line is required")
		return
	}

	orientation := strings.TrimSpace(r.FormValue("orientation"))
	if orientation == "" {
		orientation = "portrait"
	}
	if _, ok := models.OrientationByName(orientation); !ok && !h.storedOrientationExists(r, orientation) {
		respondError(w, http.StatusBadRequest, "Unknown orientation: "+orientation)
		return
	}

	provider := strings.TrimSpace(r.FormValue("provider"))
	if provider == "" {
		provider = "elevenlabs"
	}
	if !services.IsKnownProvider(provider) {
		respondError(w, http.StatusBadRequest, "Unknown TTS provider: "+provider)
		return
	}

	job := models.Job{
		ID:              uuid.New(),
		Status:          models.JobStatusQueued,
		Message:         "Queued",
		Orientation:     orientation,
		Provider:        provider,
		VoiceID:         strings.TrimSpace(r.FormValue("voice_id")),
		ShowText:        formBool(r, "show_text", true),
		KeepNativeAudio: formBool(r, "keep_native_audio", false),
		HeaderText:      strings.TrimSpace(r.FormValue("header")),
		LineCount:       len(lines),
	}

	paths := models.NewJobPaths(h.workDir, job.ID)
	if err := os.MkdirAll(paths.MediaDir(), 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create job directory")
		return
	}

	if err := os.WriteFile(paths.LinesFile(), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to write text lines")
		return
	}

	if err := h.saveMedia(r, paths, len(lines)); err != nil {
		os.RemoveAll(paths.Root)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.saveMusic(r, paths); err != nil {
		log.Printf("[API] Job %s: music not saved, continuing without: %v", job.ID, err)
	}

	h.status.Put(job)
	if h.db != nil {
		if err := h.db.CreateJob(r.Context(), &job); err != nil {
			log.Printf("[API] Job %s: failed to persist job row: %v", job.ID, err)
		}
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.status.Fail(job.ID, "Failed to enqueue job")
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// saveMedia persists the ordered media parts as media/{index}.{ext}, or
// downloads media_urls when no parts were uploaded. Part order defines
// the segment index.
func (h *Handler) saveMedia(r *http.Request, paths models.JobPaths, lineCount int) error {
	parts := r.MultipartForm.File["media"]
	if len(parts) > 0 {
		if len(parts) < lineCount {
			return fmt.Errorf("%d media files for %d text lines", len(parts), lineCount)
		}
		for i, part := range parts {
			ext := strings.ToLower(filepath.Ext(part.Filename))
			if _, ok := models.KindForPath(part.Filename); !ok {
				return fmt.Errorf("unsupported media type %q for file %d", ext, i+1)
			}
			dest := filepath.Join(paths.MediaDir(), strconv.Itoa(i+1)+ext)
			if err := saveUpload(part, dest); err != nil {
				return fmt.Errorf("failed to save media file %d: %v", i+1, err)
			}
		}
		return nil
	}

	rawURLs := strings.TrimSpace(r.FormValue("media_urls"))
	if rawURLs == "" {
		return fmt.Errorf("no media files or media_urls provided")
	}

	var urls []string
	if err := json.Unmarshal([]byte(rawURLs), &urls); err != nil {
		return fmt.Errorf("media_urls must be a JSON array of URLs")
	}
	if len(urls) == 0 {
		return fmt.Errorf("media_urls is empty")
	}
	if len(urls) < lineCount {
		return fmt.Errorf("%d media URLs for %d text lines", len(urls), lineCount)
	}

	for i, url := range urls {
		if _, err := h.fetcher.FetchMedia(r.Context(), url, paths.MediaDir(), i+1); err != nil {
			return fmt.Errorf("failed to fetch media %d: %v", i+1, err)
		}
	}
	return nil
}

// saveMusic stores optional background music as song.m4a or song.mp3.
// Music failures never block a submission.
func (h *Handler) saveMusic(r *http.Request, paths models.JobPaths) error {
	if parts := r.MultipartForm.File["music"]; len(parts) > 0 {
		part := parts[0]
		ext := strings.ToLower(filepath.Ext(part.Filename))
		if ext != ".m4a" && ext != ".mp3" {
			return fmt.Errorf("unsupported music type %q", ext)
		}
		return saveUpload(part, filepath.Join(paths.Root, "song"+ext))
	}

	if url := strings.TrimSpace(r.FormValue("music_url")); url != "" {
		ext := ".mp3"
		if strings.HasSuffix(strings.ToLower(url), ".m4a") {
			ext = ".m4a"
		}
		return h.fetcher.FetchToFile(r.Context(), url, filepath.Join(paths.Root, "song"+ext))
	}

	return nil
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	resp := models.JobStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	}
	if job.Status == models.JobStatusCompleted {
		url := "/api/jobs/" + job.ID.String() + "/video"
		resp.VideoURL = &url
	}

	if h.db != nil {
		segments, err := h.db.GetJobSegments(r.Context(), job.ID)
		if err != nil {
			log.Printf("[API] Job %s: failed to load segment outcomes: %v", job.ID, err)
		} else {
			resp.Segments = segments
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// DownloadVideo handles GET /api/jobs/{id}/video. 404 until the job
// completed; the final video outlives the segment clips.
func (h *Handler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(r)
	if !ok {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	if job.Status != models.JobStatusCompleted {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	outputPath := job.OutputPath
	if outputPath == "" {
		outputPath = models.NewJobPaths(h.workDir, job.ID).Output()
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.ID.String()+`.mp4"`)
	http.ServeFile(w, r, outputPath)
}

// ListOrientations handles GET /api/orientations: builtin presets plus
// any stored ones. Builtin names always win over stored presets.
func (h *Handler) ListOrientations(w http.ResponseWriter, r *http.Request) {
	orientations := models.BuiltinOrientations()

	if h.db != nil {
		stored, err := h.db.ListOrientationPresets(r.Context())
		if err != nil {
			log.Printf("[API] Failed to list stored orientation presets: %v", err)
		} else {
			for _, p := range stored {
				if _, builtin := models.OrientationByName(p.Name); !builtin {
					orientations = append(orientations, p)
				}
			}
		}
	}

	respondJSON(w, http.StatusOK, models.OrientationsResponse{Orientations: orientations})
}

// CreateOrientation handles POST /api/orientations: stores a custom
// preset for later jobs. Builtin names are reserved and can never be
// replaced.
func (h *Handler) CreateOrientation(w http.ResponseWriter, r *http.Request) {
	var preset models.Orientation
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid orientation preset")
		return
	}

	preset.Name = strings.ToLower(strings.TrimSpace(preset.Name))
	if preset.Name == "" || preset.Width <= 0 || preset.Height <= 0 ||
		preset.FontSize <= 0 || preset.TextY < 0 || preset.WrapWidth <= 0 {
		respondError(w, http.StatusBadRequest, "Preset needs a name, positive dimensions and text metrics")
		return
	}

	if _, builtin := models.OrientationByName(preset.Name); builtin {
		respondError(w, http.StatusConflict, "Cannot replace builtin orientation: "+preset.Name)
		return
	}

	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "Stored presets require a database")
		return
	}

	if err := h.db.UpsertOrientationPreset(r.Context(), preset); err != nil {
		log.Printf("[API] Failed to store orientation preset %s: %v", preset.Name, err)
		respondError(w, http.StatusInternalServerError, "Failed to store orientation preset")
		return
	}

	respondJSON(w, http.StatusCreated, preset)
}

// Health check. Reports queue depth so a load balancer or dashboard can
// see backlog at a glance.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if h.queue != nil {
		if depth, err := h.queue.Length(r.Context()); err == nil {
			resp["queue_depth"] = depth
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Helper methods

func (h *Handler) lookupJob(r *http.Request) (models.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return models.Job{}, false
	}

	if job, ok := h.status.Get(id); ok {
		return job, true
	}

	// The in-memory store forgets jobs across restarts; the database,
	// when configured, does not.
	if h.db != nil {
		if job, err := h.db.GetJob(r.Context(), id); err == nil {
			return *job, true
		}
	}
	return models.Job{}, false
}

func (h *Handler) storedOrientationExists(r *http.Request, name string) bool {
	if h.db == nil {
		return false
	}
	_, err := h.db.GetOrientationPreset(r.Context(), name)
	return err == nil
}

func saveUpload(part *multipart.FileHeader, dest string) error {
	src, err := part.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func formBool(r *http.Request, key string, fallback bool) bool {
	value := r.FormValue(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
