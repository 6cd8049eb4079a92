package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JobStatus represents the state of a transcript job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusCleaning   JobStatus = "cleaning"
	StatusExtracting JobStatus = "extracting"
	StatusTabulating JobStatus = "tabulating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one uploaded transcript through the pipeline.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	Filename string    `json:"filename"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData   []byte
	legendText string
	csvText    string
	errors     []string
}

// Progress tracks per-phase counters for the status endpoint.
type Progress struct {
	Chunks        int      `json:"chunks"`
	PromptVariant int      `json:"prompt_variant"`
	LegendFound   bool     `json:"legend_found"`
	LegendChars   int      `json:"legend_chars"`
	CSVRows       int      `json:"csv_rows"`
	Errors        []string `json:"errors"`
}

// NewJob creates a queued job holding the uploaded bytes.
func NewJob(id, filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Filename:    filename,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail records an error and moves the job to failed in one step.
func (j *Job) Fail(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err.Error())
	j.Progress.Errors = j.errors
	j.Status = StatusFailed
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records a non-fatal error.
func (j *Job) AddError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, msg)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// FileData returns the uploaded bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// ReleaseFileData drops the uploaded bytes once parsing is done.
func (j *Job) ReleaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// SetLegend records the extraction outcome and its artifact text.
func (j *Job) SetLegend(text string, variant, chunks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.legendText = text
	j.Progress.Chunks = chunks
	j.Progress.PromptVariant = variant
	j.Progress.LegendFound = variant != 0
	j.Progress.LegendChars = len(text)
	j.UpdatedAt = time.Now()
}

// LegendText returns the legend artifact.
func (j *Job) LegendText() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.legendText
}

// SetCSV records the CSV artifact.
func (j *Job) SetCSV(text string, rows int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.csvText = text
	j.Progress.CSVRows = rows
	j.UpdatedAt = time.Now()
}

// CSVText returns the CSV artifact.
func (j *Job) CSVText() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.csvText
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Progress    Progress  `json:"progress"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Status:      j.Status,
		Phase:       j.Phase,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		Progress: Progress{
			Chunks:        j.Progress.Chunks,
			PromptVariant: j.Progress.PromptVariant,
			LegendFound:   j.Progress.LegendFound,
			LegendChars:   j.Progress.LegendChars,
			CSVRows:       j.Progress.CSVRows,
			Errors:        errs,
		},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Delete removes a job. Returns false when the ID is unknown.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	snaps := make([]JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		snaps = append(snaps, j.Snapshot())
	}
	sort.Slice(snaps, func(i, k int) bool {
		return snaps[i].CreatedAt.After(snaps[k].CreatedAt)
	})
	return snaps
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// ContentHashHex computes SHA-256 of content and returns a hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
