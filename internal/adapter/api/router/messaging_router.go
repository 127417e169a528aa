package router

import (
	"github.com/labstack/echo/v4"

	"clubportal/internal/adapter/api/handler"
	"clubportal/internal/adapter/api/middleware"
)

// SetupMessagingRouter wires the messaging endpoints. All of them require an
// authenticated staff account.
func SetupMessagingRouter(e *echo.Echo, messagingHandler *handler.MessagingHandler, authMiddleware *middleware.AuthMiddleware, staffMiddleware *middleware.StaffMiddleware) {
	group := e.Group("/v1/messages")
	group.Use(authMiddleware.Authenticate)
	group.Use(staffMiddleware.StaffOnly)

	group.GET("/conversations", messagingHandler.Conversations)               // GET  /v1/messages/conversations
	group.GET("/conversations/:counterpartId", messagingHandler.Thread)       // GET  /v1/messages/conversations/:counterpartId
	group.POST("", messagingHandler.Compose)                                  // POST /v1/messages
	group.PUT("/:id/read", messagingHandler.MarkRead)                         // PUT  /v1/messages/:id/read
	group.GET("/:id/attachment", messagingHandler.Attachment)                 // GET  /v1/messages/:id/attachment
	group.GET("/recipients", messagingHandler.Recipients)                     // GET  /v1/messages/recipients?role=
}
