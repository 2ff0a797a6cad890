package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/montage/internal/models"
)

// Store keeps the queryable state of jobs. The status/progress/message
// triple is the only contract between the pipeline and anything watching
// a job; everything else on the record is submission metadata.
type Store interface {
	Put(job models.Job)
	Get(id uuid.UUID) (models.Job, bool)
	Update(id uuid.UUID, status models.JobStatus, progress int, message string)
	Complete(id uuid.UUID, outputPath, message string)
	Fail(id uuid.UUID, message string)
}

// MemoryStore is the in-process Store used when no database is configured.
// Records live for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]models.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]models.Job)}
}

func (s *MemoryStore) Put(job models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *MemoryStore) Get(id uuid.UUID) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Update moves a job through its lifecycle. Progress never goes backwards
// while a job stays in processing; a stale writer cannot rewind what a
// watcher has already seen.
func (s *MemoryStore) Update(id uuid.UUID, status models.JobStatus, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}

	if status == models.JobStatusProcessing && job.Status == models.JobStatusProcessing && progress < job.Progress {
		progress = job.Progress
	}

	job.Status = status
	job.Progress = progress
	job.Message = message
	job.UpdatedAt = time.Now()
	s.jobs[id] = job
}

func (s *MemoryStore) Complete(id uuid.UUID, outputPath, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}

	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.Message = message
	job.OutputPath = outputPath
	job.UpdatedAt = time.Now()
	s.jobs[id] = job
}

func (s *MemoryStore) Fail(id uuid.UUID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}

	job.Status = models.JobStatusError
	job.Message = message
	job.Error = &message
	job.UpdatedAt = time.Now()
	s.jobs[id] = job
}
