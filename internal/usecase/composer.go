package usecase

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/samber/lo"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	"clubportal/internal/domain/service"
	"clubportal/internal/infrastructure/ratelimit"
	"clubportal/pkg/errors"
	"clubportal/pkg/logger"
)

type AttachmentInput struct {
	File        io.Reader
	FileName    string
	ContentType string
}

type ComposeInput struct {
	RecipientIDs []string
	Text         string
	Attachment   *AttachmentInput
}

// Delivery is the per-recipient outcome of a fan-out. Each create succeeds
// or fails independently; there is no transactional grouping.
type Delivery struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (d Delivery) Failed() bool {
	return d.Error != ""
}

type ComposeResult struct {
	Attachment *entity.Attachment `json:"attachment,omitempty"`
	Deliveries []Delivery         `json:"deliveries"`
}

func (r *ComposeResult) AllFailed() bool {
	return !lo.SomeBy(r.Deliveries, func(d Delivery) bool { return !d.Failed() })
}

// Composer validates and submits a new message to one counterpart (thread
// reply) or to a recipient set (broadcast compose). An attachment is
// uploaded once and its URL reused across every fanned-out record.
type Composer struct {
	messages repository.MessageRepository
	uploader service.AttachmentUploader
	limiter  *ratelimit.RateLimiter
}

func NewComposer(messages repository.MessageRepository, uploader service.AttachmentUploader, limiter *ratelimit.RateLimiter) *Composer {
	return &Composer{
		messages: messages,
		uploader: uploader,
		limiter:  limiter,
	}
}

func (c *Composer) Send(ctx context.Context, viewerID string, input ComposeInput) (*ComposeResult, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" && input.Attachment == nil {
		return nil, errors.BadRequest("A message needs text or an attachment", nil)
	}

	// A "select all" recipient set may include the sender; drop it rather
	// than failing the whole compose.
	recipients := lo.Uniq(lo.Filter(input.RecipientIDs, func(id string, _ int) bool {
		return id != "" && id != viewerID
	}))
	if len(recipients) == 0 {
		return nil, errors.BadRequest("At least one recipient is required", nil)
	}

	action := "send_message"
	if len(recipients) > 1 {
		action = "broadcast"
	}
	if allowed, wait := c.limiter.Allow(viewerID, action); !allowed {
		logger.Warn("Compose rate limited: user %s must wait %v", viewerID, wait)
		return nil, errors.TooManyRequests("Sending too quickly. Please wait before sending again")
	}

	var attachment *entity.Attachment
	if input.Attachment != nil {
		uploaded, err := c.uploader.Upload(ctx, input.Attachment.File, input.Attachment.FileName, input.Attachment.ContentType)
		if err != nil {
			// No message is sent without its attachment; the whole
			// composition aborts before any create.
			logger.Error("Attachment upload failed for user %s: %v", viewerID, err)
			return nil, errors.Internal("Failed to upload attachment", err)
		}
		attachment = uploaded
	}

	deliveries := make([]Delivery, len(recipients))

	var wg sync.WaitGroup
	for i, recipientID := range recipients {
		wg.Add(1)
		go func(i int, recipientID string) {
			defer wg.Done()

			message := &entity.Message{
				SenderID:   viewerID,
				ReceiverID: recipientID,
				Text:       text,
			}
			if attachment != nil {
				message.FileURL = attachment.URL
				message.FileName = attachment.FileName
			}

			id, err := c.messages.Create(ctx, message)
			if err != nil {
				logger.Error("Fan-out create failed for recipient %s: %v", recipientID, err)
				deliveries[i] = Delivery{RecipientID: recipientID, Error: "delivery failed"}
				return
			}
			deliveries[i] = Delivery{RecipientID: recipientID, MessageID: id}
		}(i, recipientID)
	}
	wg.Wait()

	result := &ComposeResult{
		Attachment: attachment,
		Deliveries: deliveries,
	}

	if result.AllFailed() {
		return result, errors.Internal("Message could not be delivered to any recipient", nil)
	}

	return result, nil
}
