package api

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/workbookdeps/pkg/errors"
	wio "github.com/matzehuels/workbookdeps/pkg/io"
	"github.com/matzehuels/workbookdeps/pkg/observability"
	"github.com/matzehuels/workbookdeps/pkg/pipeline"
	"github.com/matzehuels/workbookdeps/pkg/render/nodelink"
)

const salesTWB = `<?xml version='1.0' encoding='utf-8' ?>
<workbook version='18.1'>
  <datasources>
    <datasource caption='Orders' name='federated.1'>
      <column datatype='real' name='[Sales]' role='measure' type='quantitative' />
      <column datatype='real' name='[Profit]' role='measure' type='quantitative' />
      <column caption='Profit Ratio' datatype='real' name='[Calculation_1]' role='measure' type='quantitative'>
        <calculation class='tableau' formula='SUM([Profit])/SUM([Sales])' />
      </column>
    </datasource>
  </datasources>
  <worksheets>
    <worksheet name='Overview'>
      <table>
        <view>
          <datasource-dependencies datasource='federated.1'>
            <column datatype='real' name='[Calculation_1]' role='measure' type='quantitative' />
          </datasource-dependencies>
        </view>
      </table>
    </worksheet>
  </worksheets>
</workbook>
`

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Pipeline.Formats == nil {
		opts.Pipeline = pipeline.DefaultOptions()
		opts.Pipeline.Formats = []nodelink.Format{nodelink.FormatDOT}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	opts.Logger = log.New(io.Discard)

	srv, err := New(pipeline.NewRunner(nil, nil, opts.Logger), opts)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func upload(t *testing.T, url, filename, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/api/v1/workbooks", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func waitDone(t *testing.T, url, id string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/api/v1/jobs/" + id)
		if err != nil {
			return false
		}
		job = decode[Job](t, resp)
		return job.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond)
	return job
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestUploadAndDownload(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp := upload(t, ts.URL, "Sales.twb", salesTWB)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	queued := decode[Job](t, resp)
	require.NotEmpty(t, queued.ID)
	assert.Equal(t, "Sales.twb", queued.Filename)
	assert.Equal(t, "/api/v1/jobs/"+queued.ID, resp.Header.Get("Location"))

	job := waitDone(t, ts.URL, queued.ID)
	require.Equal(t, StatusDone, job.Status, "error: %+v", job.Error)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "Sales", job.Workbook)
	assert.Equal(t, 3, job.Fields)
	assert.Equal(t, 1, job.Sheets)
	assert.Positive(t, job.Diagrams)
	assert.NotNil(t, job.FinishedAt)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/" + job.ID + "/report.json")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report, err := wio.ReadJSON(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "Sales", report.Workbook)
	assert.Len(t, report.Fields, 3)

	resp, err = http.Get(ts.URL + "/api/v1/jobs/" + job.ID + "/report.xlsx")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeXLSX, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Sales.xlsx")
	assert.NotEmpty(t, data)

	resp, err = http.Get(ts.URL + "/api/v1/jobs/" + job.ID + "/archive.zip")
	require.NoError(t, err)
	data, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Sales Files/Fields/Sales.xlsx")
	assert.Contains(t, names, "Sales Files/Fields/report.json")
	assert.Contains(t, names, "Sales Files/Graphs/Sheets/Overview.dot")
}

func TestUploadRejected(t *testing.T) {
	_, ts := newTestServer(t, Options{MaxUploadBytes: 512})

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		code     string
	}{
		{"bad extension", "notes.txt", "hello", http.StatusBadRequest, string(errors.ErrCodeInvalidWorkbook)},
		{"too large", "Big.twb", strings.Repeat("x", 4096), http.StatusRequestEntityTooLarge, string(errors.ErrCodeTooLarge)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, ts.URL, tt.filename, tt.content)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[errorResponse](t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}

	t.Run("missing file field", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/workbooks", "text/plain", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decode[errorResponse](t, resp)
		assert.Equal(t, string(errors.ErrCodeInvalidInput), body.Error.Code)
	})
}

func TestMalformedWorkbookFails(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp := upload(t, ts.URL, "Broken.twb", "<workbook><datasources>")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	queued := decode[Job](t, resp)

	job := waitDone(t, ts.URL, queued.ID)
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, string(errors.ErrCodeInvalidWorkbook), job.Error.Code)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/" + job.ID + "/report.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestUnknownJob(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	for _, path := range []string{"", "/events", "/report.xlsx", "/report.json", "/archive.zip"} {
		resp, err := http.Get(ts.URL + "/api/v1/jobs/missing" + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		body := decode[errorResponse](t, resp)
		assert.Equal(t, string(errors.ErrCodeJobNotFound), body.Error.Code)
	}
}

func TestJobNotReady(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	srv.jobs.add(&Job{ID: "pending", Status: StatusRunning})

	resp, err := http.Get(ts.URL + "/api/v1/jobs/pending/archive.zip")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	assert.Equal(t, string(errors.ErrCodeJobNotReady), body.Error.Code)
}

func TestEventsStream(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	srv.jobs.add(&Job{ID: "streamed", Status: StatusQueued})

	resp, err := http.Get(ts.URL + "/api/v1/jobs/streamed/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		srv.jobs.update("streamed", func(j *Job) { j.Status, j.Progress = StatusRunning, 50 })
		srv.jobs.update("streamed", func(j *Job) { j.Status, j.Progress = StatusDone, 100 })
	}()

	var last Job
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			require.NoError(t, json.Unmarshal([]byte(data), &last))
		}
	}
	assert.Equal(t, StatusDone, last.Status)
	assert.Equal(t, 100, last.Progress)
}

func TestJobStoreEviction(t *testing.T) {
	store, err := newJobStore(1)
	require.NoError(t, err)

	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	require.NoError(t, os.MkdirAll(first, 0o755))

	store.add(&Job{ID: "first", dir: first})
	_, changed, ok := store.watch("first")
	require.True(t, ok)

	store.add(&Job{ID: "second"})

	_, ok = store.get("first")
	assert.False(t, ok)
	assert.NoDirExists(t, first)
	select {
	case <-changed:
	default:
		t.Error("watchers of an evicted job were not woken")
	}
	assert.False(t, store.update("first", func(*Job) {}))
	assert.Equal(t, 1, store.len())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeJobNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeJobNotReady, "x"), http.StatusConflict},
		{errors.New(errors.ErrCodeTooLarge, "x"), http.StatusRequestEntityTooLarge},
		{errors.New(errors.ErrCodeInvalidWorkbook, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInvalidFormat, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeDuplicateField, "x"), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeRender, "x"), http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu     sync.Mutex
	routes []string
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
}

func TestHTTPHooksSeeRoutePatterns(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	_, ts := newTestServer(t, Options{})
	resp, err := http.Get(ts.URL + "/api/v1/jobs/abc/report.json")
	require.NoError(t, err)
	resp.Body.Close()

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	assert.Equal(t, []string{"GET /api/v1/jobs/{id}/report.json"}, hooks.routes)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/workbooks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://example.test", resp.Header.Get("Access-Control-Allow-Origin"))
}
