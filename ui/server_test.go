package ui

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gradegrid/adapters/excel"
	"gradegrid/domain/grid"
	"gradegrid/internal/gateway"
	"gradegrid/internal/staging"
)

const semesterCSV = ",,,Algebra,,,,,Physics,,,,,TOTAL CREDIT\n" +
	",,,CS101,,,,,PH102\n" +
	",\n" +
	",,,4,,,,,3\n" +
	"S.No,Roll No\n" +
	"1,S001,,,,,A,,,,,B+\n" +
	"2,S002,,,,,,,,,,C\n"

type countingHeartbeat struct {
	mu     sync.Mutex
	opened int
	closed int
}

func (h *countingHeartbeat) Opened() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened++
}

func (h *countingHeartbeat) Closed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
}

type testEnv struct {
	server    *Server
	storage   *staging.StorageConfig
	heartbeat *countingHeartbeat
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	storage := &staging.StorageConfig{
		UploadsDir:   filepath.Join(root, "uploads"),
		DownloadsDir: filepath.Join(root, "downloads"),
	}
	cfg := excel.DefaultExcelConfig()
	pipeline := gateway.NewService(
		staging.NewStager(storage),
		excel.NewDataReader(cfg),
		excel.NewDataWriter(cfg),
		gateway.Config{PreviewRows: 1},
	)

	heartbeat := &countingHeartbeat{}
	server, err := NewServer(os.DirFS(".."), pipeline, heartbeat, Config{MaxUploadBytes: maxUpload})
	require.NoError(t, err)

	return &testEnv{server: server, storage: storage, heartbeat: heartbeat}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func (e *testEnv) assertStagingEmpty(t *testing.T) {
	t.Helper()
	for _, dir := range []string{e.storage.UploadsDir, e.storage.DownloadsDir} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "leftover files in %s", dir)
	}
}

func uploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Grade Sheet Converter")
	assert.Contains(t, body, `action="/upload"`)
	// instructions are rendered from markdown, not escaped
	assert.Contains(t, body, "How it works</h2>")
	assert.Contains(t, body, "<strong>Convert and download</strong>")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	for _, path := range []string{"/static/app.css", "/static/app.js"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Body.Bytes(), path)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUploadReturnsTransformedWorkbook(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(uploadRequest(t, "/upload", "file", "semester.csv", []byte(semesterCSV)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.ms-excel", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="transformed_data.xls"`, w.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"TransformedData"}, f.GetSheetList())
	rows, err := f.GetRows("TransformedData")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		grid.Header,
		{"S001", "4", "CS101", "Algebra"},
		{"S001", "3", "PH102", "Physics"},
		{"S002", "3", "PH102", "Physics"},
	}, rows)

	env.assertStagingEmpty(t)
}

func TestUploadMalformedSheet(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	noMarker := strings.Replace(semesterCSV, "TOTAL CREDIT", "Remarks", 1)

	w := env.do(uploadRequest(t, "/upload", "file", "semester.csv", []byte(noMarker)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	env.assertStagingEmpty(t)
}

func TestUploadUndecodableFile(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(uploadRequest(t, "/upload", "file", "semester.xlsx", []byte("not a workbook")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", w.Body.String())
	env.assertStagingEmpty(t)
}

func TestUploadMissingFileField(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(uploadRequest(t, "/upload", "attachment", "semester.csv", []byte(semesterCSV)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file uploaded", w.Body.String())
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, 1024)
	big := bytes.Repeat([]byte(semesterCSV), 64)

	w := env.do(uploadRequest(t, "/upload", "file", "semester.csv", big))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(uploadRequest(t, "/api/preview", "file", "semester.csv", []byte(semesterCSV)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var preview gateway.Preview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))

	assert.Equal(t, grid.Header, preview.Header)
	assert.Equal(t, [][]string{{"S001", "4", "CS101", "Algebra"}}, preview.Rows)
	assert.True(t, preview.Truncated)
	assert.Equal(t, 3, preview.Summary.Rows)
	assert.Equal(t, 2, preview.Summary.Students)
	assert.Equal(t, 2, preview.Summary.Courses)

	env.assertStagingEmpty(t)
}

func TestPreviewMalformedSheet(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(uploadRequest(t, "/api/preview", "file", "semester.csv", []byte("a,b\n")))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestWindowHeartbeat(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodPost, "/api/shell/opened", nil)).Code)
	assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodPost, "/api/shell/opened", nil)).Code)
	assert.Equal(t, http.StatusNoContent, env.do(httptest.NewRequest(http.MethodPost, "/api/shell/closed", nil)).Code)

	assert.Equal(t, 2, env.heartbeat.opened)
	assert.Equal(t, 1, env.heartbeat.closed)
}
