package handler

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"clubportal/internal/domain/entity"
	ws "clubportal/internal/infrastructure/websocket"
	"clubportal/internal/usecase"
	"clubportal/pkg/errors"
	"clubportal/pkg/logger"
	"clubportal/pkg/response"
)

type MessagingHandler struct {
	messaging   *usecase.MessagingService
	wsManager   *ws.Manager
	maxFileSize int64
}

func NewMessagingHandler(messaging *usecase.MessagingService, wsManager *ws.Manager, maxFileSize int64) *MessagingHandler {
	return &MessagingHandler{
		messaging:   messaging,
		wsManager:   wsManager,
		maxFileSize: maxFileSize,
	}
}

type composeRequest struct {
	RecipientIDs []string `json:"recipient_ids" validate:"required,min=1,dive,required"`
	Text         string   `json:"text"`
}

// Conversations returns the viewer's aggregated conversation list.
func (h *MessagingHandler) Conversations(c echo.Context) error {
	viewerID := c.Get("uid").(string)

	conversations, err := h.messaging.Conversations(c.Request().Context(), viewerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversations)
}

// Thread returns the chronological thread with one counterpart and marks its
// unread inbound messages as read.
func (h *MessagingHandler) Thread(c echo.Context) error {
	viewerID := c.Get("uid").(string)
	counterpartID := c.Param("counterpartId")

	messages, err := h.messaging.Thread(c.Request().Context(), viewerID, counterpartID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// Compose sends a message to one or many recipients. JSON for text-only
// sends, multipart when a file rides along.
func (h *MessagingHandler) Compose(c echo.Context) error {
	viewerID := c.Get("uid").(string)

	input, err := h.bindComposeInput(c)
	if err != nil {
		return response.Error(c, err)
	}

	result, err := h.messaging.Compose(c.Request().Context(), viewerID, *input)
	if err != nil {
		return response.Error(c, err)
	}

	if sender, ok := c.Get("profile").(*entity.UserProfile); ok {
		NotifyRecipients(h.wsManager, sender, result)
	}

	return response.Created(c, result)
}

func (h *MessagingHandler) bindComposeInput(c echo.Context) (*usecase.ComposeInput, error) {
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var req composeRequest
		if err := c.Bind(&req); err != nil {
			return nil, errors.BadRequest("Invalid request body", err)
		}
		if err := c.Validate(&req); err != nil {
			return nil, err
		}
		return &usecase.ComposeInput{
			RecipientIDs: req.RecipientIDs,
			Text:         req.Text,
		}, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.BadRequest("Invalid multipart form", err)
	}

	input := &usecase.ComposeInput{
		RecipientIDs: form.Value["recipient_ids"],
		Text:         c.FormValue("text"),
	}

	if files := form.File["file"]; len(files) > 0 {
		fileHeader := files[0]
		if fileHeader.Size > h.maxFileSize {
			return nil, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%dMB)", h.maxFileSize/(1024*1024)), nil)
		}

		file, err := fileHeader.Open()
		if err != nil {
			logger.Error("Failed to open uploaded file: %v", err)
			return nil, errors.BadRequest("Missing or invalid file", err)
		}

		input.Attachment = &usecase.AttachmentInput{
			File:        file,
			FileName:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
		}
	}

	return input, nil
}

// MarkRead marks a single message as read for its receiver.
func (h *MessagingHandler) MarkRead(c echo.Context) error {
	viewerID := c.Get("uid").(string)
	messageID := c.Param("id")

	if err := h.messaging.MarkRead(c.Request().Context(), viewerID, messageID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"read": true})
}

// Attachment resolves a message's attachment to a signed download URL.
func (h *MessagingHandler) Attachment(c echo.Context) error {
	viewerID := c.Get("uid").(string)
	messageID := c.Param("id")

	url, err := h.messaging.AttachmentURL(c.Request().Context(), viewerID, messageID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"url": url})
}

// Recipients lists compose-recipient candidates, optionally filtered by role.
func (h *MessagingHandler) Recipients(c echo.Context) error {
	viewerID := c.Get("uid").(string)
	role := c.QueryParam("role")

	candidates, err := h.messaging.Recipients(c.Request().Context(), viewerID, role)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, candidates)
}
