package api

import (
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/workbookdeps/pkg/observability"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further updates will happen.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is one uploaded workbook and the state of its analysis.
type Job struct {
	ID       string              `json:"id"`
	Filename string              `json:"filename"`
	Workbook string              `json:"workbook,omitempty"`
	Status   Status              `json:"status"`
	Phase    observability.Phase `json:"phase,omitempty"`
	Progress int                 `json:"progress"`

	Fields      int `json:"fields,omitempty"`
	Sheets      int `json:"sheets,omitempty"`
	Rows        int `json:"rows,omitempty"`
	Diagrams    int `json:"diagrams,omitempty"`
	Diagnostics int `json:"diagnostics,omitempty"`

	Error *ErrorBody `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	dir         string // upload and outputs, removed on eviction
	outDir      string
	spreadsheet string
	report      string
}

// jobStore keeps the most recent jobs. Evicted jobs lose their files.
type jobStore struct {
	mu      sync.Mutex
	jobs    *lru.Cache[string, *Job]
	changed map[string]chan struct{}
}

func newJobStore(size int) (*jobStore, error) {
	s := &jobStore{changed: make(map[string]chan struct{})}
	jobs, err := lru.NewWithEvict(size, func(id string, j *Job) {
		if j.dir != "" {
			os.RemoveAll(j.dir)
		}
		// Runs under s.mu: only add and purge evict.
		if ch, ok := s.changed[id]; ok {
			close(ch)
			delete(s.changed, id)
		}
	})
	if err != nil {
		return nil, err
	}
	s.jobs = jobs
	return s, nil
}

func (s *jobStore) add(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changed[j.ID] = make(chan struct{})
	s.jobs.Add(j.ID, j)
}

// get returns a copy of the job.
func (s *jobStore) get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs.Get(id)
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// watch returns a copy of the job and a channel closed on its next update.
func (s *jobStore) watch(id string) (Job, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs.Get(id)
	if !ok {
		return Job{}, nil, false
	}
	return *j, s.changed[id], true
}

// update applies fn to the job if it is still stored and wakes watchers.
func (s *jobStore) update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs.Peek(id)
	if !ok {
		return false
	}
	fn(j)
	if ch, ok := s.changed[id]; ok {
		close(ch)
	}
	s.changed[id] = make(chan struct{})
	return true
}

func (s *jobStore) len() int {
	return s.jobs.Len()
}

// purge drops every job and its files.
func (s *jobStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs.Purge()
}
