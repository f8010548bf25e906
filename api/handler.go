package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"videotoolbox/config"
	"videotoolbox/ffmpeg"
	"videotoolbox/task"
	"videotoolbox/youtube"
)

type Handler struct {
	manager  *task.Manager
	provider youtube.Provider
	cfg      *config.Config
}

func NewHandler(m *task.Manager, provider youtube.Provider, cfg *config.Config) *Handler {
	return &Handler{manager: m, provider: provider, cfg: cfg}
}

var outputFormats = map[string]bool{
	"mp4": true, "mov": true, "avi": true, "mkv": true, "webm": true, "gif": true,
}

var imageFormats = map[string]bool{"jpg": true, "png": true}

var qualityTiers = map[string]bool{"low": true, "medium": true, "high": true}

var compressionLevels = map[string]bool{"light": true, "medium": true, "high": true}

var resolutions = map[string]bool{"original": true, "1080p": true, "720p": true, "480p": true}

var uploadExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Video Toolbox API is running"})
}

// saveUpload stages the multipart file under the temp area with a fresh
// unique name, keeping the original extension.
func (h *Handler) saveUpload(c *gin.Context) (string, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "No file was uploaded.")
		return "", false
	}
	if file.Size > h.cfg.MaxUploadSize {
		respondError(c, http.StatusBadRequest, "The uploaded file exceeds the size limit.")
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !uploadExtensions[ext] {
		respondError(c, http.StatusBadRequest, "Unsupported file type. Only MP4, MOV, AVI, MKV and WebM files are accepted.")
		return "", false
	}

	dst := filepath.Join(h.cfg.TempDir(), uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		log.Error().Err(err).Msg("could not stage uploaded file")
		respondError(c, http.StatusInternalServerError, "Failed to store the uploaded file.")
		return "", false
	}
	return dst, true
}

func (h *Handler) handleConvert(c *gin.Context) {
	outputFormat := c.PostForm("outputFormat")
	if !outputFormats[outputFormat] {
		respondError(c, http.StatusBadRequest, "A valid output format is required (mp4, mov, avi, mkv, webm, gif).")
		return
	}
	inputPath, ok := h.saveUpload(c)
	if !ok {
		return
	}
	t := h.manager.StartConvert(inputPath, outputFormat)
	respondData(c, http.StatusAccepted, t)
}

func (h *Handler) handleTrim(c *gin.Context) {
	startTime, err := strconv.ParseFloat(c.PostForm("startTime"), 64)
	if err != nil || startTime < 0 {
		respondError(c, http.StatusBadRequest, "startTime must be a number greater than or equal to 0.")
		return
	}
	endTime, err := strconv.ParseFloat(c.PostForm("endTime"), 64)
	if err != nil || endTime <= startTime {
		respondError(c, http.StatusBadRequest, "endTime must be greater than startTime.")
		return
	}
	outputFormat := c.PostForm("outputFormat")
	if !outputFormats[outputFormat] {
		respondError(c, http.StatusBadRequest, "A valid output format is required (mp4, mov, avi, mkv, webm, gif).")
		return
	}
	inputPath, ok := h.saveUpload(c)
	if !ok {
		return
	}
	t := h.manager.StartTrim(inputPath, startTime, endTime, outputFormat)
	respondData(c, http.StatusAccepted, t)
}

func (h *Handler) handleScreenshot(c *gin.Context) {
	timestamp, err := strconv.ParseFloat(c.PostForm("timestamp"), 64)
	if err != nil || timestamp < 0 {
		respondError(c, http.StatusBadRequest, "timestamp must be a number greater than or equal to 0.")
		return
	}
	format := c.PostForm("format")
	if !imageFormats[format] {
		respondError(c, http.StatusBadRequest, "A valid image format is required (jpg, png).")
		return
	}
	quality := c.PostForm("quality")
	if !qualityTiers[quality] {
		respondError(c, http.StatusBadRequest, "A valid quality is required (low, medium, high).")
		return
	}
	inputPath, ok := h.saveUpload(c)
	if !ok {
		return
	}
	t := h.manager.StartScreenshot(inputPath, timestamp, format, quality)
	respondData(c, http.StatusAccepted, t)
}

func (h *Handler) handleCompress(c *gin.Context) {
	level := c.PostForm("compressionLevel")
	if !compressionLevels[level] {
		respondError(c, http.StatusBadRequest, "A valid compression level is required (light, medium, high).")
		return
	}
	resolution := c.DefaultPostForm("resolution", "original")
	if !resolutions[resolution] {
		respondError(c, http.StatusBadRequest, "A valid resolution is required (original, 1080p, 720p, 480p).")
		return
	}
	inputPath, ok := h.saveUpload(c)
	if !ok {
		return
	}
	t := h.manager.StartCompress(inputPath, level, resolution)
	respondData(c, http.StatusAccepted, t)
}

// handleStatus serves the polling endpoint shared by all kinds. The snapshot
// shape is identical at every lifecycle stage.
func (h *Handler) handleStatus(kind task.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, found := h.manager.Get(kind, c.Param("id"))
		if !found {
			respondError(c, http.StatusNotFound, "No such task.")
			return
		}
		respondData(c, http.StatusOK, t)
	}
}

func (h *Handler) handleListTasks(c *gin.Context) {
	kind := task.Kind(c.Query("kind"))
	tasks := h.manager.List(kind)
	if tasks == nil {
		tasks = []task.Task{}
	}
	respondData(c, http.StatusOK, tasks)
}

func (h *Handler) handleVideoInfo(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		respondError(c, http.StatusBadRequest, "The url parameter is required.")
		return
	}
	info, err := h.provider.VideoInfo(c.Request.Context(), url)
	if err != nil {
		log.Warn().Str("url", url).Err(err).Msg("video info lookup failed")
		respondError(c, http.StatusBadRequest, "Could not retrieve video information.")
		return
	}
	respondData(c, http.StatusOK, info)
}

type downloadRequest struct {
	URL  string `json:"url" binding:"required"`
	Itag int    `json:"itag" binding:"required"`
}

func (h *Handler) handleDownloadStart(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "url and itag are required.")
		return
	}
	info, err := h.provider.VideoInfo(c.Request.Context(), req.URL)
	if err != nil {
		log.Warn().Str("url", req.URL).Err(err).Msg("video info lookup failed")
		respondError(c, http.StatusBadRequest, "Could not retrieve video information.")
		return
	}
	var encoding *youtube.VideoFormat
	for i := range info.Formats {
		if info.Formats[i].Itag == req.Itag {
			encoding = &info.Formats[i]
			break
		}
	}
	if encoding == nil {
		respondError(c, http.StatusBadRequest, "The requested format is not available for this video.")
		return
	}
	t := h.manager.StartDownload(req.URL, *encoding)
	respondData(c, http.StatusAccepted, t)
}

// handleFileDownload streams a produced artifact. The client-supplied path
// must resolve inside the public uploads root; any escape attempt is
// rejected before touching the filesystem.
func (h *Handler) handleFileDownload(c *gin.Context) {
	rel := c.Query("path")
	full, err := ffmpeg.ResolveWithin(h.cfg.PublicDir, rel)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid file path.")
		return
	}
	info, err := os.Stat(full)
	if err != nil {
		respondError(c, http.StatusNotFound, "File not found.")
		return
	}
	if info.IsDir() {
		respondError(c, http.StatusBadRequest, "The requested path is not a file.")
		return
	}
	c.FileAttachment(full, filepath.Base(full))
}
