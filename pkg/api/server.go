// Package api serves workbook analysis over HTTP.
//
// Clients upload a workbook, poll (or stream) the job's progress and then
// download the spreadsheet, the JSON report or a zip of every output:
//
//	POST /api/v1/workbooks               multipart field "file" → 202 {job}
//	GET  /api/v1/jobs/{id}               job status and progress
//	GET  /api/v1/jobs/{id}/events        progress as server-sent events
//	GET  /api/v1/jobs/{id}/report.xlsx   field and dependency spreadsheet
//	GET  /api/v1/jobs/{id}/report.json   JSON report
//	GET  /api/v1/jobs/{id}/archive.zip   all outputs including diagrams
//	GET  /healthz
//
// Jobs run in the background on the same [pipeline.Runner] the CLI uses.
// Only the most recent jobs are kept; older jobs and their files are
// discarded.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/matzehuels/workbookdeps/pkg/config"
	"github.com/matzehuels/workbookdeps/pkg/pipeline"
)

const (
	// DefaultMaxUploadBytes bounds uploaded workbooks.
	DefaultMaxUploadBytes = 64 << 20
	// DefaultMaxJobs is the number of jobs kept in memory.
	DefaultMaxJobs = 128
)

// Options configures a [Server].
type Options struct {
	MaxUploadBytes int64
	MaxJobs        int
	// WorkDir receives uploads and outputs, one directory per job.
	// Empty means a fresh temporary directory removed by [Server.Close].
	WorkDir  string
	Pipeline pipeline.Options
	Logger   *log.Logger
}

// OptionsFromConfig derives server options from loaded settings.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	popts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return Options{}, err
	}
	return Options{
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		MaxJobs:        cfg.Server.MaxJobs,
		Pipeline:       popts,
	}, nil
}

// Server runs analysis jobs for uploaded workbooks.
type Server struct {
	runner  *pipeline.Runner
	opts    Options
	jobs    *jobStore
	logger  *log.Logger
	workDir string
	tempDir bool
	newID   func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server. Jobs are cancelled by [Server.Close].
func New(runner *pipeline.Runner, opts Options) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = DefaultMaxJobs
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if err := opts.Pipeline.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid pipeline options: %w", err)
	}

	jobs, err := newJobStore(opts.MaxJobs)
	if err != nil {
		return nil, fmt.Errorf("create job store: %w", err)
	}

	s := &Server{
		runner:  runner,
		opts:    opts,
		jobs:    jobs,
		logger:  opts.Logger,
		workDir: opts.WorkDir,
		newID:   uuid.NewString,
	}
	if s.workDir == "" {
		dir, err := os.MkdirTemp("", "workbookdeps-jobs-")
		if err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
		s.workDir, s.tempDir = dir, true
	} else if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/workbooks", s.handleUpload)
		r.Route("/jobs/{id}", func(r chi.Router) {
			r.Get("/", s.handleJob)
			r.Get("/events", s.handleEvents)
			r.Get("/report.xlsx", s.handleSpreadsheet)
			r.Get("/report.json", s.handleReport)
			r.Get("/archive.zip", s.handleArchive)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
	})
	return r
}

// Close cancels running jobs, waits for them and removes a temporary work
// directory.
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	if s.tempDir {
		s.jobs.purge()
		return os.RemoveAll(s.workDir)
	}
	return nil
}

// NewHTTPServer wraps h in an http.Server that also accepts cleartext
// HTTP/2.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(h, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
