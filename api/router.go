package api

import (
	"github.com/gin-gonic/gin"

	"videotoolbox/config"
	"videotoolbox/task"
	"videotoolbox/youtube"
)

func SetupRouter(m *task.Manager, provider youtube.Provider, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())

	h := NewHandler(m, provider, cfg)

	api := r.Group("/api")
	api.GET("/health", h.handleHealth)

	authed := api.Group("")
	authed.Use(AuthMiddleware(cfg))
	{
		video := authed.Group("/video")
		{
			video.POST("/convert", h.handleConvert)
			video.GET("/convert/:id", h.handleStatus(task.KindConvert))
			video.POST("/trim", h.handleTrim)
			video.GET("/trim/:id", h.handleStatus(task.KindTrim))
			video.POST("/screenshot", h.handleScreenshot)
			video.GET("/screenshot/:id", h.handleStatus(task.KindScreenshot))
			video.POST("/compress", h.handleCompress)
			video.GET("/compress/:id", h.handleStatus(task.KindCompress))
			video.GET("/info", h.handleVideoInfo)
			video.POST("/download", h.handleDownloadStart)
			video.GET("/download/:id", h.handleStatus(task.KindDownload))
		}
		authed.GET("/tasks", h.handleListTasks)
		authed.GET("/download", h.handleFileDownload)
	}
	return r
}
