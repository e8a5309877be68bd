package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/price", handler.QueryPrice)
		api.GET("/regions", handler.GetRegions)
		api.GET("/cache/:region", handler.GetCacheInfo)
		api.PUT("/cache/ttl", handler.SetCacheTTL)
		api.POST("/refresh", handler.Refresh)
		api.GET("/history", handler.GetHistory)
		api.GET("/monitors", handler.ListMonitorRules)
		api.POST("/monitors", handler.CreateMonitorRule)
		api.DELETE("/monitors/:id", handler.DeleteMonitorRule)
	}
}
