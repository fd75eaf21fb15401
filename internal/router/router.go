package router

import (
	"net/http"
	"reels-generator/internal/handler"

	"github.com/gin-gonic/gin"
)

func SetupRouter(r *gin.Engine, hdl *handler.Handler) {
	api := r.Group("/api")
	{
		api.POST("/video/task", hdl.StartVideoTask)
		api.GET("/video/task", hdl.GetVideoTask)
		api.GET("/video/history", hdl.GetTaskHistory)
		api.DELETE("/video/task/:taskId", hdl.DeleteTask)
		api.POST("/video/task/:taskId/retry", hdl.RetryTask)
		api.GET("/video/task/:taskId/events", hdl.TaskEvents)
		api.POST("/file", hdl.UploadFile)
		api.GET("/file/*filepath", hdl.DownloadFile)
		api.HEAD("/file/*filepath", hdl.DownloadFile)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
}
