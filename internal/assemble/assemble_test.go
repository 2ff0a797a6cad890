package assemble

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/montage/internal/models"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestDiscoverClipsNumericOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"10.mp4", "2.mp4", "1.mp4", "9.mp4"} {
		touch(t, filepath.Join(dir, name))
	}

	clips, err := discoverClips(dir)
	if err != nil {
		t.Fatalf("discoverClips: %v", err)
	}

	var got []int
	for _, c := range clips {
		got = append(got, c.index)
	}
	want := []int{1, 2, 9, 10}
	if len(got) != len(want) {
		t.Fatalf("found %d clips, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("clip order = %v, want %v", got, want)
		}
	}
}

func TestDiscoverClipsIgnoresNonSegmentFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "3.mp4"))
	touch(t, filepath.Join(dir, "norm_3.mp4"))
	touch(t, filepath.Join(dir, "stitched.mp4"))
	touch(t, filepath.Join(dir, "notes.txt"))

	clips, err := discoverClips(dir)
	if err != nil {
		t.Fatalf("discoverClips: %v", err)
	}
	if len(clips) != 1 || clips[0].index != 3 {
		t.Errorf("clips = %+v, want only index 3", clips)
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "normalized_files.txt")
	first := filepath.Join(dir, "norm_1.mp4")
	second := filepath.Join(dir, "norm_2.mp4")

	if err := writeManifest(manifest, []string{first, second}); err != nil {
		t.Fatalf("writeManifest: %v", err)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("manifest has %d lines, want 2", len(lines))
	}
	if lines[0] != "file '"+first+"'" {
		t.Errorf("line 1 = %q", lines[0])
	}
	if lines[1] != "file '"+second+"'" {
		t.Errorf("line 2 = %q", lines[1])
	}
}

func TestNormalizeArgsCommonFormat(t *testing.T) {
	args := normalizeArgs(6.5)

	want := map[string]string{
		"t":     "6.500",
		"r":     "25",
		"c:v":   "libx264",
		"crf":   "23",
		"vsync": "cfr",
		"c:a":   "aac",
		"ar":    "44100",
		"ac":    "2",
	}
	for k, v := range want {
		if got := args[k]; got != v {
			t.Errorf("normalizeArgs[%q] = %v, want %q", k, got, v)
		}
	}
}

func TestFindMusicPrefersM4A(t *testing.T) {
	paths := models.JobPaths{Root: t.TempDir()}
	touch(t, filepath.Join(paths.Root, "song.mp3"))
	touch(t, filepath.Join(paths.Root, "song.m4a"))

	got := findMusic(paths)
	if filepath.Base(got) != "song.m4a" {
		t.Errorf("findMusic = %q, want song.m4a", got)
	}
}

func TestFindMusicFallsBackToMP3(t *testing.T) {
	paths := models.JobPaths{Root: t.TempDir()}
	touch(t, filepath.Join(paths.Root, "song.mp3"))

	if got := findMusic(paths); filepath.Base(got) != "song.mp3" {
		t.Errorf("findMusic = %q, want song.mp3", got)
	}
}

func TestFindMusicEmptyWhenAbsent(t *testing.T) {
	paths := models.JobPaths{Root: t.TempDir()}
	if got := findMusic(paths); got != "" {
		t.Errorf("findMusic = %q, want empty", got)
	}
}
