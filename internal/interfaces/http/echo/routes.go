package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, syncHandler *SyncHandler, jobHandler *JobHandler) {
	server.POST("/api/v1/feeds/:id/sync", syncHandler.TriggerSync)
	server.GET("/api/v1/jobs/:id", jobHandler.GetJob)
	server.POST("/api/v1/jobs/:id/cancel", jobHandler.CancelJob)
	server.GET("/api/v1/jobs/:id/rows", jobHandler.ListJobRows)
}
