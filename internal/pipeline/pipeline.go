// Package pipeline orchestrates one job end to end: segment
// construction, narration preparation, the sequential render loop and
// final assembly, reporting progress through the status store at every
// stage. Each job runs on a single goroutine inside its own isolated
// directory; nothing is shared across jobs.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/assemble"
	"github.com/bobarin/montage/internal/db"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/render"
	"github.com/bobarin/montage/internal/services"
	"github.com/bobarin/montage/internal/status"
	"github.com/bobarin/montage/internal/timing"
)

// Engine is the transcoding surface the pipeline drives directly:
// probes and audio materialization. The renderer and assembler hold
// their own handles for the heavy encoding work.
type Engine interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ProbeVideo(ctx context.Context, path string) (services.VideoInfo, error)
	GenerateSilence(ctx context.Context, seconds float64, outputPath string) error
	PadAudio(ctx context.Context, inputPath, outputPath string, padSeconds float64) error
	BoostVolume(ctx context.Context, path string, db float64) error
}

type Pipeline struct {
	engine     Engine
	renderer   *render.Renderer
	rasterizer *render.TextRasterizer
	assembler  *assemble.Assembler
	status     status.Store
	db         *db.DB // nil when no database is configured
	keys       services.ProviderKeys
	workDir    string
}

func New(
	engine Engine,
	renderer *render.Renderer,
	rasterizer *render.TextRasterizer,
	assembler *assemble.Assembler,
	statusStore status.Store,
	database *db.DB,
	keys services.ProviderKeys,
	workDir string,
) *Pipeline {
	return &Pipeline{
		engine:     engine,
		renderer:   renderer,
		rasterizer: rasterizer,
		assembler:  assembler,
		status:     statusStore,
		db:         database,
		keys:       keys,
		workDir:    workDir,
	}
}

// Run processes one job to completion or terminal error. The returned
// error is for the worker's log; the job status record already carries
// the human-readable outcome by the time Run returns.
func (p *Pipeline) Run(ctx context.Context, job models.Job) error {
	paths := models.NewJobPaths(p.workDir, job.ID)

	tts, err := services.NewTTSProvider(job.Provider, p.keys)
	if err != nil {
		return p.fail(ctx, job, fmt.Sprintf("TTS provider unavailable: %v", err))
	}

	orientation, ok := models.OrientationByName(job.Orientation)
	if !ok {
		stored, dbErr := p.lookupStoredOrientation(ctx, job.Orientation)
		if dbErr != nil {
			return p.fail(ctx, job, fmt.Sprintf("Unknown orientation: %s", job.Orientation))
		}
		orientation = stored
	}

	for _, dir := range []string{paths.AudioDir(), paths.VideoDir(), paths.FramesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return p.fail(ctx, job, fmt.Sprintf("Failed to prepare job directory: %v", err))
		}
	}

	p.progress(ctx, job.ID, 10, "Reading text file...")

	segments, err := BuildSegments(paths, job)
	if err != nil {
		return p.fail(ctx, job, err.Error())
	}

	p.progress(ctx, job.ID, 20, "Processing audio...")

	if err := p.prepareAudio(ctx, segments, tts, job.VoiceID, paths); err != nil {
		return p.fail(ctx, job, fmt.Sprintf("Audio preparation failed: %v", err))
	}

	p.progress(ctx, job.ID, 40, "Creating video segments...")

	headerOverlayPath := p.writeHeaderOverlay(job, orientation, paths)

	produced := 0
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, job, "Job cancelled")
		}

		outcome := p.renderSegment(ctx, render.Request{
			Segment:           seg,
			TotalSegments:     len(segments),
			Orientation:       orientation,
			ShowText:          job.ShowText,
			KeepNativeAudio:   job.KeepNativeAudio,
			HeaderOverlayPath: headerOverlayPath,
			Paths:             paths,
		}, tts.SpeedFactor())

		outcome.JobID = job.ID
		p.recordOutcome(ctx, outcome)
		if !outcome.Omitted {
			produced++
		}

		p.progress(ctx, job.ID, 40+40*(i+1)/len(segments), "Creating video segments...")
	}

	if produced == 0 {
		return p.fail(ctx, job, "No segments could be rendered")
	}

	p.progress(ctx, job.ID, 80, "Concatenating videos...")

	if err := p.assembler.Assemble(ctx, paths); err != nil {
		return p.fail(ctx, job, fmt.Sprintf("Assembly failed: %v", err))
	}

	p.progress(ctx, job.ID, 90, "Cleaning up...")
	os.RemoveAll(paths.FramesDir())

	p.complete(ctx, job.ID, paths.Output())
	log.Printf("[Pipeline] Job %s completed (%d/%d segments)", job.ID, produced, len(segments))
	return nil
}

// renderSegment resolves the segment's timing and runs the matching
// renderer. A segment that cannot be rendered is reported as omitted,
// never as a job failure.
func (p *Pipeline) renderSegment(ctx context.Context, req render.Request, speedFactor float64) models.SegmentOutcome {
	seg := req.Segment
	outcome := models.SegmentOutcome{Index: seg.Index, Kind: seg.Kind}

	decision, err := p.resolveTiming(ctx, seg, speedFactor)
	if err != nil {
		log.Printf("[Pipeline] Segment %d: %v, omitting", seg.Index, err)
		outcome.Tier = models.TierOmitted
		outcome.Omitted = true
		return outcome
	}
	req.Decision = decision
	outcome.DurationSeconds = decision.FinalDuration

	var result render.Result
	switch seg.Kind {
	case models.MediaKindImage:
		result, err = p.renderer.RenderImageSegment(ctx, req)
	default:
		result, err = p.renderer.RenderVideoSegment(ctx, req)
	}

	if err != nil {
		log.Printf("[Pipeline] Segment %d: render failed, omitting: %v", seg.Index, err)
		outcome.Tier = models.TierOmitted
		outcome.Omitted = true
		return outcome
	}

	outcome.Tier = result.Tier
	return outcome
}

// resolveTiming probes the already-materialized audio/video files and
// hands the numbers to the timing resolver.
func (p *Pipeline) resolveTiming(ctx context.Context, seg models.Segment, speedFactor float64) (models.DurationDecision, error) {
	audioSeconds := 0.0
	if seg.PaddedAudioPath != "" {
		if d, err := p.engine.ProbeDuration(ctx, seg.PaddedAudioPath); err == nil {
			audioSeconds = d
		}
	}

	if seg.Kind == models.MediaKindImage {
		return timing.ResolveImage(audioSeconds, speedFactor), nil
	}

	info, err := p.engine.ProbeVideo(ctx, seg.MediaPath)
	if err != nil {
		return models.DurationDecision{}, fmt.Errorf("cannot probe source video: %w", err)
	}
	log.Printf("[Pipeline] Segment %d: source %dx%d, %.2fs", seg.Index, info.Width, info.Height, info.Duration)
	return timing.ResolveVideo(info.Duration, audioSeconds, speedFactor, seg.IsSkip()), nil
}

// writeHeaderOverlay renders the one-time header PNG for segment 1.
// Returns "" when the job has no header or the PNG cannot be written;
// the renderers degrade on their own from there.
func (p *Pipeline) writeHeaderOverlay(job models.Job, o models.Orientation, paths models.JobPaths) string {
	if job.HeaderText == "" {
		return ""
	}
	if err := p.rasterizer.WriteHeaderPNG(job.HeaderText, o.Width, o.Height, paths.Header()); err != nil {
		log.Printf("[Pipeline] Header overlay not written, degrading to drawtext: %v", err)
		return ""
	}
	return paths.Header()
}

func (p *Pipeline) lookupStoredOrientation(ctx context.Context, name string) (models.Orientation, error) {
	if p.db == nil {
		return models.Orientation{}, fmt.Errorf("no stored presets available")
	}
	preset, err := p.db.GetOrientationPreset(ctx, name)
	if err != nil {
		return models.Orientation{}, err
	}
	return *preset, nil
}

// progress pushes a stage update into the status store and, when a
// database is configured, mirrors it into the jobs row.
func (p *Pipeline) progress(ctx context.Context, id uuid.UUID, progressValue int, message string) {
	p.status.Update(id, models.JobStatusProcessing, progressValue, message)
	if p.db != nil {
		if err := p.db.UpdateJobProgress(ctx, id, models.JobStatusProcessing, progressValue, message); err != nil {
			log.Printf("[Pipeline] Failed to persist progress for %s: %v", id, err)
		}
	}
}

func (p *Pipeline) complete(ctx context.Context, id uuid.UUID, outputPath string) {
	const message = "Video generated successfully!"
	p.status.Complete(id, outputPath, message)
	if p.db != nil {
		if err := p.db.CompleteJob(ctx, id, outputPath, message); err != nil {
			log.Printf("[Pipeline] Failed to persist completion for %s: %v", id, err)
		}
	}
}

// fail moves the job into its terminal error state and hands the same
// message back for the worker's log. Intermediates are left on disk for
// inspection.
func (p *Pipeline) fail(ctx context.Context, job models.Job, message string) error {
	p.status.Fail(job.ID, message)
	if p.db != nil {
		if err := p.db.FailJob(ctx, job.ID, message); err != nil {
			log.Printf("[Pipeline] Failed to persist error for %s: %v", job.ID, err)
		}
	}
	return fmt.Errorf("job %s: %s", job.ID, message)
}

func (p *Pipeline) recordOutcome(ctx context.Context, outcome models.SegmentOutcome) {
	if p.db == nil {
		return
	}
	if err := p.db.RecordSegmentOutcome(ctx, outcome); err != nil {
		log.Printf("[Pipeline] Failed to record segment %d outcome: %v", outcome.Index, err)
	}
}
