package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bobarin/montage/internal/models"
)

// BuildSegments materializes the job's segment records once, at job
// start. Line N pairs with media/{N}.{ext}; the index is the only join
// key, so a missing media file for any line is fatal before anything
// renders. Extra media beyond the line count is ignored.
func BuildSegments(paths models.JobPaths, job models.Job) ([]models.Segment, error) {
	lines, err := readLines(paths.LinesFile())
	if err != nil {
		return nil, err
	}

	media, err := scanMedia(paths.MediaDir())
	if err != nil {
		return nil, err
	}

	segments := make([]models.Segment, 0, len(lines))
	for i, line := range lines {
		index := i + 1
		mediaPath, ok := media[index]
		if !ok {
			return nil, fmt.Errorf("no media file for segment %d", index)
		}

		kind, _ := models.KindForPath(mediaPath)
		seg := models.Segment{
			Index:           index,
			Text:            line,
			MediaPath:       mediaPath,
			Kind:            kind,
			AudioPath:       paths.AudioFile(index),
			PaddedAudioPath: paths.PaddedAudioFile(index),
		}
		if index == 1 {
			seg.HeaderText = job.HeaderText
		}
		segments = append(segments, seg)
	}

	if extra := len(media) - len(lines); extra > 0 {
		log.Printf("[Pipeline] Ignoring %d media file(s) beyond the %d text lines", extra, len(lines))
	}

	return segments, nil
}

// readLines loads the segment text lines, dropping blank lines before
// indexing. No usable lines is fatal to the job.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no text lines: %w", err)
	}

	var lines []string
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("no text lines in %s", filepath.Base(path))
	}
	return lines, nil
}

// scanMedia maps segment index to media path for every file named
// {index}.{ext} with an accepted extension. A file whose extension the
// pipeline does not accept is invisible here, so its index counts as
// missing.
func scanMedia(mediaDir string) (map[int]string, error) {
	entries, err := os.ReadDir(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("no media directory: %w", err)
	}

	media := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		index, err := strconv.Atoi(base)
		if err != nil || index < 1 {
			continue
		}
		if _, ok := models.KindForPath(name); !ok {
			continue
		}
		media[index] = filepath.Join(mediaDir, name)
	}

	return media, nil
}
