package api

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	goio "io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	"github.com/matzehuels/workbookdeps/pkg/pipeline"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	uploadField     = "file"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.jobs.len(),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if goerrors.As(err, &tooLarge) {
			writeErr(w, r, errors.New(errors.ErrCodeTooLarge, "workbook exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeErr(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "multipart field %q is required", uploadField))
		return
	}
	defer file.Close()

	name := header.Filename
	if err := errors.ValidateWorkbookFilename(name); err != nil {
		writeErr(w, r, err)
		return
	}

	id := s.newID()
	dir := filepath.Join(s.workDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeErr(w, r, errors.Wrap(errors.ErrCodeInternal, err, "create job dir"))
		return
	}
	path := filepath.Join(dir, name)
	if err := saveUpload(file, path); err != nil {
		os.RemoveAll(dir)
		var tooLarge *http.MaxBytesError
		if goerrors.As(err, &tooLarge) {
			writeErr(w, r, errors.New(errors.ErrCodeTooLarge, "workbook exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeErr(w, r, errors.Wrap(errors.ErrCodeInternal, err, "store upload"))
		return
	}

	job := &Job{
		ID:        id,
		Filename:  name,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		dir:       dir,
	}
	s.jobs.add(job)
	s.logger.Info("job queued", "job", id, "file", name, "bytes", header.Size)

	s.wg.Add(1)
	go s.run(id, path)

	snapshot, _ := s.jobs.get(id)
	w.Header().Set("Location", "/api/v1/jobs/"+id)
	writeJSON(w, http.StatusAccepted, snapshot)
}

func saveUpload(src goio.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := goio.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// run analyzes one uploaded workbook and records the outcome on the job.
func (s *Server) run(id, path string) {
	defer s.wg.Done()
	logger := s.logger.With("job", id)

	opts := s.opts.Pipeline
	opts.Observer = func(e pipeline.Event) {
		s.jobs.update(id, func(j *Job) {
			j.Status = StatusRunning
			j.Phase = e.Phase
			j.Progress = max(j.Progress, e.Percent())
		})
	}

	fail := func(err error) {
		logger.Error("job failed", "err", err)
		s.jobs.update(id, func(j *Job) {
			now := time.Now().UTC()
			j.Status = StatusFailed
			j.Error = errorBody(err)
			j.FinishedAt = &now
		})
	}

	res, err := s.runner.AnalyzeFile(s.ctx, path, opts)
	if err != nil {
		fail(err)
		return
	}
	written, err := s.runner.Write(s.ctx, res, filepath.Join(filepath.Dir(path), "out"), opts)
	if err != nil {
		fail(err)
		return
	}

	s.jobs.update(id, func(j *Job) {
		now := time.Now().UTC()
		j.Status = StatusDone
		j.Progress = 100
		j.Workbook = res.Name
		j.Fields = res.Stats.Fields
		j.Sheets = res.Stats.Sheets
		j.Rows = res.Stats.Rows
		j.Diagnostics = res.Stats.Diagnostics
		j.Diagrams = written.Diagrams
		j.FinishedAt = &now
		j.outDir = written.Dir
		j.spreadsheet = written.Spreadsheet
		j.report = written.JSON
	})
	logger.Info("job done", "workbook", res.Name, "diagrams", written.Diagrams)
}

// lookup writes a 404 and returns false if the job is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Job, bool) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.get(id)
	if !ok {
		writeErr(w, r, errors.New(errors.ErrCodeJobNotFound, "job %s not found", id))
	}
	return job, ok
}

// finished writes a 409 and returns false unless the job is done.
func finished(w http.ResponseWriter, r *http.Request, job Job) bool {
	if job.Status != StatusDone {
		writeErr(w, r, errors.New(errors.ErrCodeJobNotReady, "job %s is %s", job.ID, job.Status))
		return false
	}
	return true
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if job, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, job)
	}
}

// handleEvents streams the job as server-sent events until it is done,
// failed or evicted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, changed, ok := s.jobs.watch(id)
	if !ok {
		writeErr(w, r, errors.New(errors.ErrCodeJobNotFound, "job %s not found", id))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErr(w, r, errors.New(errors.ErrCodeUnsupported, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		data, err := json.Marshal(job)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: job\ndata: %s\n\n", data)
		flusher.Flush()
		if job.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-changed:
		}
		if job, changed, ok = s.jobs.watch(id); !ok {
			fmt.Fprint(w, "event: close\ndata: {}\n\n")
			flusher.Flush()
			return
		}
	}
}

func (s *Server) handleSpreadsheet(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok || !finished(w, r, job) {
		return
	}
	w.Header().Set("Content-Type", contentTypeXLSX)
	w.Header().Set("Content-Disposition", attachment(job.Workbook+".xlsx"))
	http.ServeFile(w, r, job.spreadsheet)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok || !finished(w, r, job) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, job.report)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok || !finished(w, r, job) {
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(filepath.Base(job.outDir)+".zip"))
	if err := pipeline.Archive(job.outDir, w); err != nil {
		// Headers are already sent; the client sees a truncated archive.
		s.logger.Error("archive failed", "job", job.ID, "err", err)
	}
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
