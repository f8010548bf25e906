package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videotoolbox/config"
	"videotoolbox/task"
	"videotoolbox/youtube"
)

type mockRunner struct {
	runFunc func(ctx context.Context, inputPath, outputPath string, opts []string, progress func(int)) error
}

func (m *mockRunner) Run(ctx context.Context, inputPath, outputPath string, opts []string, progress func(int)) error {
	if m.runFunc != nil {
		return m.runFunc(ctx, inputPath, outputPath, opts, progress)
	}
	return nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *task.Manager, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		PublicDir:     t.TempDir(),
		MaxUploadSize: 10 * 1024 * 1024,
	}
	for _, dir := range []string{cfg.TempDir(), cfg.DownloadsDir(), cfg.OutputsDir()} {
		require.NoError(t, os.MkdirAll(dir, 0o750))
	}
	provider := &youtube.StubProvider{Tick: time.Millisecond}
	reg := task.NewRegistry()
	manager := task.NewManager(cfg, reg, &mockRunner{}, provider)
	return SetupRouter(manager, provider, cfg), manager, cfg
}

func multipartBody(t *testing.T, fields map[string]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake video bytes"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type taskEnvelope struct {
	Success bool      `json:"success"`
	Data    task.Task `json:"data"`
	Error   string    `json:"error"`
}

func postMultipart(t *testing.T, router *gin.Engine, path string, fields map[string]string, filename string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, filename)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)
	return w
}

func TestHandleConvert(t *testing.T) {
	router, manager, _ := setupTestRouter(t)

	w := postMultipart(t, router, "/api/video/convert", map[string]string{"outputFormat": "mp4"}, "input.mkv")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp taskEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, task.StatusPending, resp.Data.Status)
	assert.Equal(t, 0, resp.Data.Progress)
	assert.Equal(t, "mp4", resp.Data.OutputFormat)

	_, found := manager.Get(task.KindConvert, resp.Data.ID)
	assert.True(t, found)
}

func TestHandleConvertValidation(t *testing.T) {
	router, manager, _ := setupTestRouter(t)

	t.Run("bad format", func(t *testing.T) {
		w := postMultipart(t, router, "/api/video/convert", map[string]string{"outputFormat": "exe"}, "input.mp4")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := postMultipart(t, router, "/api/video/convert", map[string]string{"outputFormat": "mp4"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad extension", func(t *testing.T) {
		w := postMultipart(t, router, "/api/video/convert", map[string]string{"outputFormat": "mp4"}, "input.exe")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.Empty(t, manager.List(task.KindConvert), "rejected submissions must not create tasks")
}

func TestHandleTrimValidation(t *testing.T) {
	router, manager, _ := setupTestRouter(t)

	w := postMultipart(t, router, "/api/video/trim",
		map[string]string{"startTime": "5", "endTime": "2", "outputFormat": "mp4"}, "input.mp4")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, manager.List(task.KindTrim))

	w = postMultipart(t, router, "/api/video/trim",
		map[string]string{"startTime": "2", "endTime": "5", "outputFormat": "mp4"}, "input.mp4")
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp taskEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, task.StatusPending, resp.Data.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, manager.Wait(ctx))

	done, found := manager.Get(task.KindTrim, resp.Data.ID)
	require.True(t, found)
	assert.Equal(t, task.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Contains(t, done.OutputPath, ".mp4")
}

func TestHandleScreenshotValidation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := postMultipart(t, router, "/api/video/screenshot",
		map[string]string{"timestamp": "-1", "format": "jpg", "quality": "high"}, "input.mp4")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postMultipart(t, router, "/api/video/screenshot",
		map[string]string{"timestamp": "3", "format": "bmp", "quality": "high"}, "input.mp4")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postMultipart(t, router, "/api/video/screenshot",
		map[string]string{"timestamp": "3", "format": "png", "quality": "medium"}, "input.mp4")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleCompressValidation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := postMultipart(t, router, "/api/video/compress",
		map[string]string{"compressionLevel": "extreme"}, "input.mp4")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postMultipart(t, router, "/api/video/compress",
		map[string]string{"compressionLevel": "high", "resolution": "480p"}, "input.mp4")
	assert.Equal(t, http.StatusAccepted, w.Code)

	// resolution defaults to original
	w = postMultipart(t, router, "/api/video/compress",
		map[string]string{"compressionLevel": "light"}, "input.mp4")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleStatus(t *testing.T) {
	router, manager, _ := setupTestRouter(t)

	w := postMultipart(t, router, "/api/video/convert", map[string]string{"outputFormat": "webm"}, "input.mp4")
	require.Equal(t, http.StatusAccepted, w.Code)
	var created taskEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, manager.Wait(ctx))

	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/video/convert/"+created.Data.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var polled taskEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polled))
	assert.Equal(t, created.Data.ID, polled.Data.ID)
	assert.Equal(t, task.StatusCompleted, polled.Data.Status)

	// unknown id
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/video/convert/nonexistent", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a convert id is not visible under another kind
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/video/trim/"+created.Data.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleVideoInfo(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/video/info?url="+url.QueryEscape("https://youtu.be/dQw4w9WgXcQ"), nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool              `json:"success"`
		Data    youtube.VideoInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dQw4w9WgXcQ", resp.Data.VideoID)
	assert.NotEmpty(t, resp.Data.Formats)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/video/info", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDownloadStart(t *testing.T) {
	router, manager, _ := setupTestRouter(t)

	body := bytes.NewBufferString(`{"url": "https://youtu.be/dQw4w9WgXcQ", "itag": 22}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/video/download", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp taskEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Encoding)
	assert.Equal(t, 22, resp.Data.Encoding.Itag)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, manager.Wait(ctx))

	done, _ := manager.Get(task.KindDownload, resp.Data.ID)
	assert.Equal(t, task.StatusCompleted, done.Status)

	// unknown itag
	body = bytes.NewBufferString(`{"url": "https://youtu.be/dQw4w9WgXcQ", "itag": 999}`)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/video/download", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleFileDownloadPathEscape(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	for _, p := range []string{
		"../../etc/passwd",
		"outputs/../../secret",
		"outputs/a/../../../deep/escape",
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/download?path="+url.QueryEscape(p), nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %q must be rejected", p)
	}

	// inside the root but absent
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/download?path=outputs/missing.mp4", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListTasks(t *testing.T) {
	router, manager, _ := setupTestRouter(t)

	for i := 0; i < 2; i++ {
		w := postMultipart(t, router, "/api/video/convert", map[string]string{"outputFormat": "mp4"}, "input.mp4")
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	w := postMultipart(t, router, "/api/video/screenshot",
		map[string]string{"timestamp": "1", "format": "jpg", "quality": "low"}, "input.mp4")
	require.Equal(t, http.StatusAccepted, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, manager.Wait(ctx))

	w2 := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/tasks?kind=convert", nil)
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)

	var resp struct {
		Data []task.Task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestAuthMiddleware(t *testing.T) {
	router, _, cfg := setupTestRouter(t)
	cfg.AuthEnable = true
	cfg.AuthKey = "secret"

	t.Run("health stays open", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/health", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/tasks", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("correct token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
