package models

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// RenderTier identifies which strategy in the fallback chain produced a clip.
type RenderTier string

const (
	TierFrames     RenderTier = "frames"      // image segments: frame-by-frame composition
	TierFullGraph  RenderTier = "full_graph"  // video segments: complete filter graph
	TierSimplified RenderTier = "simplified"  // scale/pad plus overlay only
	TierBareCopy   RenderTier = "bare_copy"   // stream copy, audio swap, no effects
	TierOmitted    RenderTier = "omitted"     // no clip produced for this segment
)

// SkipMarker is the sentinel text line meaning "no narration". It suppresses
// the overlay text on any segment; on video segments it also pins the segment
// duration to the source video's natural length.
const SkipMarker = "-skip-"

// Models

// Orientation fixes the output geometry and text metrics for one job.
// Width/height and the text metrics are co-specified: changing one without
// the others produces misplaced overlays.
type Orientation struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FontSize  int    `json:"font_size"`
	TextY     int    `json:"text_y"`     // vertical text anchor, measured up from the bottom edge
	WrapWidth int    `json:"wrap_width"` // max characters per overlay line
}

// Builtin orientation presets. Stored presets may add names but never
// shadow these.
var builtinOrientations = map[string]Orientation{
	"portrait":  {Name: "portrait", Width: 1080, Height: 1920, FontSize: 48, TextY: 400, WrapWidth: 30},
	"landscape": {Name: "landscape", Width: 1920, Height: 1080, FontSize: 56, TextY: 130, WrapWidth: 40},
}

// OrientationByName returns a builtin preset.
func OrientationByName(name string) (Orientation, bool) {
	o, ok := builtinOrientations[strings.ToLower(strings.TrimSpace(name))]
	return o, ok
}

// BuiltinOrientations returns the builtin presets in a stable order.
func BuiltinOrientations() []Orientation {
	return []Orientation{builtinOrientations["portrait"], builtinOrientations["landscape"]}
}

// Segment is one text-line/media/audio unit contributing one clip to the
// final video. Segments are built once at job start; the index is the only
// join key between line, media file and narration clip.
type Segment struct {
	Index           int       `json:"index"` // 1-based position
	Text            string    `json:"text"`
	MediaPath       string    `json:"media_path"`
	Kind            MediaKind `json:"kind"`
	AudioPath       string    `json:"audio_path,omitempty"`        // raw narration, empty when none
	PaddedAudioPath string    `json:"padded_audio_path,omitempty"` // narration with trailing silence
	HeaderText      string    `json:"header_text,omitempty"`       // only ever set on index 1
}

// IsSkip reports whether the segment carries the skip sentinel.
func (s Segment) IsSkip() bool {
	return strings.TrimSpace(s.Text) == SkipMarker
}

// DurationDecision is the timing resolver's verdict for one segment.
// Produced once, consumed once by the segment's renderer, never mutated.
type DurationDecision struct {
	FinalDuration float64 `json:"final_duration"` // seconds
	NeedsLoop     bool    `json:"needs_loop"`
	LoopCount     int     `json:"loop_count,omitempty"`
}

// Job is the unit of work. The status/progress/message triple is the only
// interface the pipeline exposes to any UI.
type Job struct {
	ID              uuid.UUID `json:"id"`
	Status          JobStatus `json:"status"`
	Progress        int       `json:"progress"` // 0-100, monotonic while processing
	Message         string    `json:"message"`
	Orientation     string    `json:"orientation"`
	Provider        string    `json:"provider"`
	VoiceID         string    `json:"voice_id,omitempty"`
	KeepNativeAudio bool      `json:"keep_native_audio"`
	ShowText        bool      `json:"show_text"`
	HeaderText      string    `json:"header_text,omitempty"`
	LineCount       int       `json:"line_count"`
	OutputPath      string    `json:"output_path,omitempty"`
	Error           *string   `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SegmentOutcome records how one segment fared, for post-mortem queries.
type SegmentOutcome struct {
	JobID           uuid.UUID  `json:"job_id"`
	Index           int        `json:"index"`
	Kind            MediaKind  `json:"kind"`
	Tier            RenderTier `json:"tier"`
	Omitted         bool       `json:"omitted"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// JobPaths is the per-job filesystem contract shared by the renderers and
// the assembler. Everything lives under one isolated root per job.
type JobPaths struct {
	Root string
}

func NewJobPaths(workDir string, id uuid.UUID) JobPaths {
	return JobPaths{Root: filepath.Join(workDir, "jobs", id.String())}
}

func (p JobPaths) MediaDir() string  { return filepath.Join(p.Root, "media") }
func (p JobPaths) AudioDir() string  { return filepath.Join(p.Root, "audio") }
func (p JobPaths) VideoDir() string  { return filepath.Join(p.Root, "video") }
func (p JobPaths) FramesDir() string { return filepath.Join(p.Root, "frames") }
func (p JobPaths) LinesFile() string { return filepath.Join(p.Root, "lines.txt") }
func (p JobPaths) Output() string    { return filepath.Join(p.Root, "output.mp4") }
func (p JobPaths) Header() string    { return filepath.Join(p.Root, "header.png") }

func (p JobPaths) AudioFile(index int) string {
	return filepath.Join(p.AudioDir(), strconv.Itoa(index)+".mp3")
}

func (p JobPaths) PaddedAudioFile(index int) string {
	return filepath.Join(p.AudioDir(), strconv.Itoa(index)+"_padded.mp3")
}

func (p JobPaths) ClipFile(index int) string {
	return filepath.Join(p.VideoDir(), strconv.Itoa(index)+".mp4")
}

// MusicFile returns the background music path, preferring song.m4a over
// song.mp3, or "" when neither exists. Existence is checked by the caller's
// stat function so tests can fake the filesystem.
func (p JobPaths) MusicCandidates() []string {
	return []string{
		filepath.Join(p.Root, "song.m4a"),
		filepath.Join(p.Root, "song.mp3"),
	}
}

// KindForPath classifies a media file by extension. The bool is false for
// extensions the pipeline does not accept.
func KindForPath(path string) (MediaKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp":
		return MediaKindImage, true
	case ".mp4", ".avi", ".mov", ".mkv", ".webm", ".flv", ".m4v":
		return MediaKindVideo, true
	}
	return "", false
}

// DTOs for API responses

type CreateJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type JobStatusResponse struct {
	ID       uuid.UUID `json:"id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	VideoURL *string   `json:"video_url,omitempty"`
	Error    *string   `json:"error,omitempty"`

	// Segments carries the per-segment outcomes when a database is
	// configured to remember them.
	Segments []SegmentOutcome `json:"segments,omitempty"`
}

type OrientationsResponse struct {
	Orientations []Orientation `json:"orientations"`
}
