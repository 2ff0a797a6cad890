package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/services"
)

func jobDir(t *testing.T) models.JobPaths {
	t.Helper()
	paths := models.NewJobPaths(t.TempDir(), uuid.New())
	if err := os.MkdirAll(paths.MediaDir(), 0o755); err != nil {
		t.Fatalf("creating media dir: %v", err)
	}
	return paths
}

func writeLines(t *testing.T, paths models.JobPaths, content string) {
	t.Helper()
	if err := os.WriteFile(paths.LinesFile(), []byte(content), 0o644); err != nil {
		t.Fatalf("writing lines file: %v", err)
	}
}

func writeMedia(t *testing.T, paths models.JobPaths, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(paths.MediaDir(), name), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing media %s: %v", name, err)
		}
	}
}

func TestBuildSegmentsJoinsLinesAndMediaByIndex(t *testing.T) {
	paths := jobDir(t)
	writeLines(t, paths, "Hello\n-skip-\nWorld\n")
	writeMedia(t, paths, "1.jpg", "2.mp4", "3.jpg")

	segments, err := BuildSegments(paths, models.Job{HeaderText: "Course 101"})
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}

	if segments[0].Kind != models.MediaKindImage || segments[0].Text != "Hello" {
		t.Errorf("segment 1 = %+v", segments[0])
	}
	if segments[1].Kind != models.MediaKindVideo || !segments[1].IsSkip() {
		t.Errorf("segment 2 must be a skip video segment, got %+v", segments[1])
	}
	if segments[2].Text != "World" {
		t.Errorf("segment 3 text = %q", segments[2].Text)
	}

	for i, seg := range segments {
		index := i + 1
		if seg.Index != index {
			t.Errorf("segment %d has index %d", index, seg.Index)
		}
		if seg.AudioPath != paths.AudioFile(index) {
			t.Errorf("segment %d audio path = %s", index, seg.AudioPath)
		}
		if seg.PaddedAudioPath != paths.PaddedAudioFile(index) {
			t.Errorf("segment %d padded audio path = %s", index, seg.PaddedAudioPath)
		}
	}

	if segments[0].HeaderText != "Course 101" {
		t.Error("header text must land on segment 1")
	}
	if segments[1].HeaderText != "" || segments[2].HeaderText != "" {
		t.Error("header text must only ever be set on segment 1")
	}
}

func TestBuildSegmentsMissingMediaIsFatal(t *testing.T) {
	paths := jobDir(t)
	writeLines(t, paths, "one\ntwo\n")
	writeMedia(t, paths, "1.jpg")

	if _, err := BuildSegments(paths, models.Job{}); err == nil {
		t.Fatal("expected error for missing media file")
	}
}

func TestBuildSegmentsRejectsUnacceptedExtensions(t *testing.T) {
	paths := jobDir(t)
	writeLines(t, paths, "one\n")
	// A text file at the right index does not count as media.
	writeMedia(t, paths, "1.txt")

	if _, err := BuildSegments(paths, models.Job{}); err == nil {
		t.Fatal("expected error when the only candidate has an unaccepted extension")
	}
}

func TestBuildSegmentsNoLinesIsFatal(t *testing.T) {
	paths := jobDir(t)
	writeMedia(t, paths, "1.jpg")

	if _, err := BuildSegments(paths, models.Job{}); err == nil {
		t.Fatal("expected error with no lines file")
	}

	writeLines(t, paths, "\n   \n\n")
	if _, err := BuildSegments(paths, models.Job{}); err == nil {
		t.Fatal("expected error with only blank lines")
	}
}

func TestBuildSegmentsDropsBlankLinesBeforeIndexing(t *testing.T) {
	paths := jobDir(t)
	writeLines(t, paths, "first\n\n\nsecond\r\n")
	writeMedia(t, paths, "1.jpg", "2.jpg")

	segments, err := BuildSegments(paths, models.Job{})
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[1].Text != "second" {
		t.Errorf("segment 2 text = %q (CRLF must be stripped)", segments[1].Text)
	}
}

func TestBuildSegmentsIgnoresExtraMedia(t *testing.T) {
	paths := jobDir(t)
	writeLines(t, paths, "only one\n")
	writeMedia(t, paths, "1.jpg", "2.jpg", "3.mp4")

	segments, err := BuildSegments(paths, models.Job{})
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("extra media must be ignored, got %d segments", len(segments))
	}
}

func TestScanMediaSkipsNonNumericNames(t *testing.T) {
	paths := jobDir(t)
	writeMedia(t, paths, "1.jpg", "cover.jpg", "0.png", "-1.png", "header.txt")

	media, err := scanMedia(paths.MediaDir())
	if err != nil {
		t.Fatalf("scanMedia: %v", err)
	}
	if len(media) != 1 {
		t.Fatalf("got %d media entries, want 1: %v", len(media), media)
	}
	if filepath.Base(media[1]) != "1.jpg" {
		t.Errorf("media[1] = %s", media[1])
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.mp3")

	if fileExists(path) {
		t.Error("missing file reported as existing")
	}
	if fileExists(dir) {
		t.Error("directories must not count as existing audio files")
	}

	if err := os.WriteFile(path, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if !fileExists(path) {
		t.Error("existing file reported as missing")
	}
}

// fakeTTS counts narration calls so tests can assert when synthesis was
// skipped entirely.
type fakeTTS struct {
	calls int
}

func (f *fakeTTS) Name() string { return "fake" }

func (f *fakeTTS) SpeedFactor() float64 { return 1.0 }
func (f *fakeTTS) GenerateSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	f.calls++
	return []byte("narration"), nil
}

// fakeEngine records which audio files were materialized instead of
// shelling out.
type fakeEngine struct {
	silences []string
	boosts   []string
	padded   []string
}

func (f *fakeEngine) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return 4.0, nil
}

func (f *fakeEngine) ProbeVideo(ctx context.Context, path string) (services.VideoInfo, error) {
	return services.VideoInfo{Width: 1080, Height: 1920, Duration: 8.0}, nil
}

func (f *fakeEngine) GenerateSilence(ctx context.Context, seconds float64, outputPath string) error {
	f.silences = append(f.silences, outputPath)
	return os.WriteFile(outputPath, []byte("silence"), 0o644)
}

func (f *fakeEngine) PadAudio(ctx context.Context, inputPath, outputPath string, padSeconds float64) error {
	f.padded = append(f.padded, outputPath)
	return os.WriteFile(outputPath, []byte("padded"), 0o644)
}

func (f *fakeEngine) BoostVolume(ctx context.Context, path string, db float64) error {
	f.boosts = append(f.boosts, path)
	return nil
}

func audioJobDir(t *testing.T) models.JobPaths {
	t.Helper()
	paths := jobDir(t)
	if err := os.MkdirAll(paths.AudioDir(), 0o755); err != nil {
		t.Fatalf("creating audio dir: %v", err)
	}
	return paths
}

func narrationSegment(paths models.JobPaths, index int, text string) models.Segment {
	return models.Segment{
		Index:           index,
		Text:            text,
		Kind:            models.MediaKindImage,
		MediaPath:       filepath.Join(paths.MediaDir(), strconv.Itoa(index)+".jpg"),
		AudioPath:       paths.AudioFile(index),
		PaddedAudioPath: paths.PaddedAudioFile(index),
	}
}

func TestPrepareAudioKeepsExistingNarration(t *testing.T) {
	paths := audioJobDir(t)
	existing := paths.AudioFile(1)
	if err := os.WriteFile(existing, []byte("first-take"), 0o644); err != nil {
		t.Fatalf("writing existing narration: %v", err)
	}

	engine := &fakeEngine{}
	tts := &fakeTTS{}
	p := &Pipeline{engine: engine}

	segments := []models.Segment{narrationSegment(paths, 1, "Hello")}
	if err := p.prepareAudio(context.Background(), segments, tts, "", paths); err != nil {
		t.Fatalf("prepareAudio: %v", err)
	}

	if tts.calls != 0 {
		t.Errorf("narration regenerated %d times for an existing file", tts.calls)
	}
	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("reading narration: %v", err)
	}
	if string(data) != "first-take" {
		t.Errorf("existing narration overwritten: %q", data)
	}
	if len(engine.boosts) != 0 {
		t.Error("existing narration must not be re-boosted")
	}
	// The padded variant is still refreshed for the render step.
	if len(engine.padded) != 1 || engine.padded[0] != paths.PaddedAudioFile(1) {
		t.Errorf("padded variant not produced: %v", engine.padded)
	}
}

func TestPrepareAudioGeneratesMissingNarration(t *testing.T) {
	paths := audioJobDir(t)

	engine := &fakeEngine{}
	tts := &fakeTTS{}
	p := &Pipeline{engine: engine}

	segments := []models.Segment{narrationSegment(paths, 1, "Hello")}
	if err := p.prepareAudio(context.Background(), segments, tts, "", paths); err != nil {
		t.Fatalf("prepareAudio: %v", err)
	}

	if tts.calls != 1 {
		t.Errorf("tts calls = %d, want 1", tts.calls)
	}
	data, err := os.ReadFile(paths.AudioFile(1))
	if err != nil {
		t.Fatalf("narration not written: %v", err)
	}
	if string(data) != "narration" {
		t.Errorf("narration content = %q", data)
	}
	if len(engine.boosts) != 1 {
		t.Errorf("fresh narration must be boosted once, got %v", engine.boosts)
	}
}

func TestPrepareAudioSkipSilenceKeepsExisting(t *testing.T) {
	paths := audioJobDir(t)
	existing := paths.AudioFile(1)
	if err := os.WriteFile(existing, []byte("old-silence"), 0o644); err != nil {
		t.Fatalf("writing existing silence: %v", err)
	}

	engine := &fakeEngine{}
	tts := &fakeTTS{}
	p := &Pipeline{engine: engine}

	seg := narrationSegment(paths, 1, models.SkipMarker)
	seg.Kind = models.MediaKindVideo
	if err := p.prepareAudio(context.Background(), []models.Segment{seg}, tts, "", paths); err != nil {
		t.Fatalf("prepareAudio: %v", err)
	}

	if tts.calls != 0 {
		t.Error("skip segments must never reach the narration provider")
	}
	if len(engine.silences) != 0 {
		t.Errorf("existing skip silence regenerated: %v", engine.silences)
	}
	if data, _ := os.ReadFile(existing); string(data) != "old-silence" {
		t.Errorf("existing silence overwritten: %q", data)
	}
}

func TestResolveTimingProbesVideoStream(t *testing.T) {
	paths := audioJobDir(t)
	engine := &fakeEngine{}
	p := &Pipeline{engine: engine}

	seg := narrationSegment(paths, 1, "Hello")
	seg.Kind = models.MediaKindVideo
	if err := os.WriteFile(seg.PaddedAudioPath, []byte("padded"), 0o644); err != nil {
		t.Fatalf("writing padded audio: %v", err)
	}

	decision, err := p.resolveTiming(context.Background(), seg, 1.0)
	if err != nil {
		t.Fatalf("resolveTiming: %v", err)
	}
	// fakeEngine reports 4s narration against an 8s source.
	if decision.FinalDuration != 4.0 {
		t.Errorf("final duration = %v, want narration-driven 4.0", decision.FinalDuration)
	}
	if decision.NeedsLoop {
		t.Error("source longer than narration must not loop")
	}
}

func TestScanMediaManyIndicesStayNumeric(t *testing.T) {
	paths := jobDir(t)
	for i := 1; i <= 12; i++ {
		writeMedia(t, paths, strconv.Itoa(i)+".jpg")
	}

	media, err := scanMedia(paths.MediaDir())
	if err != nil {
		t.Fatalf("scanMedia: %v", err)
	}
	for i := 1; i <= 12; i++ {
		want := strconv.Itoa(i) + ".jpg"
		if filepath.Base(media[i]) != want {
			t.Errorf("media[%d] = %s, want %s", i, media[i], want)
		}
	}
}
