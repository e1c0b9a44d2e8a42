package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes binds the admin API routes to the handler.
func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/stats", h.GetStats)
	router.GET("/parameters", h.GetParameters)
	router.GET("/items/:id", h.GetItem)
	router.POST("/items/:id/forcepoll", h.ForcePollItem)
}
